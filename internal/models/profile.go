package models

import "time"

// Profile is the per-user profile. A user who never wrote one gets a Profile
// with only UserID set.
type Profile struct {
	UserID    string     `json:"userId"`
	Nickname  string     `json:"nickname"`
	Bio       string     `json:"bio,omitempty"`
	AvatarKey string     `json:"avatarKey,omitempty"`
	AvatarURL string     `json:"avatarUrl,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// UpdateProfileInput is an upsert patch; nil fields keep their stored value.
type UpdateProfileInput struct {
	Nickname  *string `json:"nickname"`
	Bio       *string `json:"bio"`
	AvatarKey *string `json:"avatarKey"`
}
