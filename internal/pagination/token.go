// Package pagination encodes provider-native list cursors as opaque tokens.
//
// A token is a base64url (unpadded) JSON envelope. Callers only ever see the
// token string, so switching the underlying store never changes the cursor
// format they hold. Tokens from another provider or another envelope version
// decode to nil and pagination restarts from the first page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// Version is the current envelope version.
const Version = 1

// ErrInvalidToken is returned by Parse for any token that cannot be used.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is a position in the (created_at DESC, post_id DESC) ordering.
// Keyset stores fill CreatedAt and PostID; Cosmos DB fills Continuation.
type Cursor struct {
	Version      int    `json:"v"`
	Provider     string `json:"p"`
	CreatedAt    string `json:"c,omitempty"`
	PostID       string `json:"i,omitempty"`
	Continuation string `json:"t,omitempty"`
}

// Keyset returns a keyset cursor positioned after (createdAt, postID).
func Keyset(provider, createdAt, postID string) *Cursor {
	return &Cursor{Version: Version, Provider: provider, CreatedAt: createdAt, PostID: postID}
}

// Continuation returns a cursor wrapping a store continuation token.
func Continuation(provider, token string) *Cursor {
	return &Cursor{Version: Version, Provider: provider, Continuation: token}
}

// IsKeyset reports whether the cursor carries a (created_at, post_id) pair.
func (c *Cursor) IsKeyset() bool {
	return c != nil && c.CreatedAt != "" && c.PostID != ""
}

// Encode serializes c. A nil cursor encodes to the empty string.
func Encode(c *Cursor) (string, error) {
	if c == nil {
		return "", nil
	}
	if c.Version == 0 {
		c.Version = Version
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Parse decodes token and checks that it belongs to provider.
func Parse(token, provider string) (*Cursor, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Accept padded tokens produced by generic base64 encoders.
		raw, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return nil, ErrInvalidToken
		}
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidToken
	}
	if c.Version != Version || c.Provider != provider {
		return nil, ErrInvalidToken
	}
	if !c.IsKeyset() && c.Continuation == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// Decode is Parse without the error: unusable tokens yield nil.
func Decode(token, provider string) *Cursor {
	c, err := Parse(token, provider)
	if err != nil {
		return nil
	}
	return c
}
