package backend

import (
	"context"
	"errors"
	"strings"

	"simplesns/internal/models"
	"simplesns/internal/repository"
	"simplesns/internal/validation"
)

// GetProfile returns userID's profile. A user without one gets a profile
// carrying only the user id.
func (s *Service) GetProfile(ctx context.Context, userID string) (profile *models.Profile, err error) {
	ctx, done := s.observe(ctx, "get_profile")
	defer done(&err)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, models.NewValidationError("user id is required")
	}
	profile, err = s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &models.Profile{UserID: userID}, nil
	}
	profile.AvatarURL = s.objectURL(ctx, profile.AvatarKey)
	return profile, nil
}

// UpdateProfile upserts the caller's profile. Fields left nil keep their
// stored value and created_at never changes after the first write.
func (s *Service) UpdateProfile(ctx context.Context, caller models.Caller, in models.UpdateProfileInput) (profile *models.Profile, err error) {
	ctx, done := s.observe(ctx, "update_profile")
	defer done(&err)

	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	var nickname string
	if in.Nickname != nil {
		nickname = strings.TrimSpace(*in.Nickname)
		if nickname != "" {
			if err := validation.ValidateNickname(nickname); err != nil {
				return nil, models.NewValidationError(err.Error())
			}
		}
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	if in.AvatarKey != nil && *in.AvatarKey != "" {
		if err := validation.ValidateOwnedKey(*in.AvatarKey, caller.UserID); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if s.objects == nil {
			return nil, models.NewConfigurationError("image storage is not configured")
		}
	}

	existing, err := s.loadProfile(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	profile = &models.Profile{UserID: caller.UserID}
	if existing != nil {
		*profile = *existing
		profile.AvatarURL = ""
	}

	if nickname == "" {
		nickname = profile.Nickname
	}
	if nickname == "" {
		nickname = strings.TrimSpace(caller.Nickname)
	}
	if err := validation.ValidateNickname(nickname); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	profile.Nickname = nickname
	if in.Bio != nil {
		profile.Bio = *in.Bio
	}
	if in.AvatarKey != nil {
		profile.AvatarKey = *in.AvatarKey
	}

	now := s.timestamp()
	if profile.CreatedAt == nil {
		profile.CreatedAt = &now
	}
	profile.UpdatedAt = &now

	err = s.call(ctx, func(ctx context.Context) error {
		return s.profiles.Put(ctx, profile)
	})
	if err != nil {
		return nil, upstream("update_profile", err)
	}
	s.profileCache.Invalidate(ctx, caller.UserID)

	profile.AvatarURL = s.objectURL(ctx, profile.AvatarKey)
	return profile, nil
}

// CreateUploadURLs issues count signed PUT URLs under the caller's image
// prefix, each bound to its content type.
func (s *Service) CreateUploadURLs(ctx context.Context, caller models.Caller, in models.UploadURLsInput) (urls []models.UploadURL, err error) {
	ctx, done := s.observe(ctx, "create_upload_urls")
	defer done(&err)

	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	contentTypes, err := validation.ResolveUploadContentTypes(in.Count, in.ContentTypes)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if s.objects == nil {
		return nil, models.NewConfigurationError("image storage is not configured")
	}

	urls = make([]models.UploadURL, 0, len(contentTypes))
	for _, ct := range contentTypes {
		ext, _ := validation.ContentTypeExtension(ct)
		key := validation.ImageKeyPrefix(caller.UserID) + s.newID() + "." + ext

		var signed string
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			signed, err = s.objects.SignPut(ctx, key, ct, s.urlTTL)
			return err
		})
		if err != nil {
			return nil, upstream("create_upload_urls", err)
		}
		urls = append(urls, models.UploadURL{URL: signed, Key: key, ContentType: ct})
	}
	return urls, nil
}

// loadProfile reads through the profile cache. A missing profile is (nil, nil).
func (s *Service) loadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if cached, ok := s.profileCache.Get(ctx, userID); ok {
		return cached, nil
	}
	var profile *models.Profile
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.profiles.Get(ctx, userID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, upstream("get_profile", err)
	}
	s.profileCache.Set(ctx, profile)
	return profile, nil
}
