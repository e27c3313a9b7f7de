package validation

import (
	"fmt"
	"path"
	"strings"
)

// ImageKeyPrefix is the key prefix under which userID's uploads live.
func ImageKeyPrefix(userID string) string {
	return "images/" + userID + "/"
}

// ContentTypeExtension returns the file extension for an allowed content type.
func ContentTypeExtension(contentType string) (string, bool) {
	ext, ok := allowedContentTypes[contentType]
	return ext, ok
}

// ResolveUploadContentTypes validates an upload request and returns one
// content type per requested URL.
func ResolveUploadContentTypes(count int, contentTypes []string) ([]string, error) {
	if count < MinUploadCount || count > MaxUploadCount {
		return nil, fmt.Errorf("count must be between %d and %d", MinUploadCount, MaxUploadCount)
	}
	out := make([]string, count)
	if len(contentTypes) == 0 {
		for i := range out {
			out[i] = DefaultContentType
		}
		return out, nil
	}
	if len(contentTypes) != count {
		return nil, fmt.Errorf("contentTypes length (%d) must equal count (%d)", len(contentTypes), count)
	}
	for i, ct := range contentTypes {
		ct = strings.ToLower(strings.TrimSpace(ct))
		if _, ok := allowedContentTypes[ct]; !ok {
			return nil, fmt.Errorf("unsupported content type %q", contentTypes[i])
		}
		out[i] = ct
	}
	return out, nil
}

// ValidateOwnedKey checks that key is a clean object key under userID's prefix.
func ValidateOwnedKey(key, userID string) error {
	if userID == "" {
		return fmt.Errorf("owner is required")
	}
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return fmt.Errorf("invalid object key %q", key)
	}
	if !strings.HasPrefix(key, ImageKeyPrefix(userID)) || len(key) == len(ImageKeyPrefix(userID)) {
		return fmt.Errorf("object key %q does not belong to the caller", key)
	}
	return nil
}

// ValidateImageKeys checks the image keys attached to a post.
func ValidateImageKeys(keys []string, userID string) error {
	if len(keys) > MaxImagesPerPost {
		return fmt.Errorf("too many images (max %d)", MaxImagesPerPost)
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if err := ValidateOwnedKey(k, userID); err != nil {
			return err
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate image key %q", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ContentTypeForKey returns the allowed content type matching key's
// extension, or the empty string.
func ContentTypeForKey(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	for ct, e := range allowedContentTypes {
		if e == ext {
			return ct
		}
	}
	return ""
}
