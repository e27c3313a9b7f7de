package models

// Caller is the verified identity the auth middleware hands to the backend.
type Caller struct {
	UserID   string `json:"userId"`
	IsAdmin  bool   `json:"isAdmin"`
	Nickname string `json:"nickname,omitempty"`
}

// Authenticated reports whether the caller carries a user id.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}
