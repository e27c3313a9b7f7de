package models

// UploadURLsInput requests Count signed upload URLs. ContentTypes is optional
// and, when present, parallel to the generated URLs.
type UploadURLsInput struct {
	Count        int      `json:"count"`
	ContentTypes []string `json:"contentTypes"`
}

// UploadURL is a write-capable, time-limited URL for one object key.
type UploadURL struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}
