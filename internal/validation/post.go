// Package validation checks caller input before any store access.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinListLimit     = 1
	MaxListLimit     = 50
	DefaultListLimit = 20
	MaxContentLength = 10000
	MaxTagsPerPost   = 10
	MaxTagLength     = 50
	MaxImagesPerPost = 16
	MinUploadCount   = 1
	MaxUploadCount   = 16
	MaxNicknameLen   = 100
	MaxBioLen        = 500
)

// DefaultContentType is used for upload slots with no declared content type.
const DefaultContentType = "image/jpeg"

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
	"image/heif": "heif",
}

var disallowedContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[\s>].*?</script\s*>`),
	regexp.MustCompile(`(?i)<script\b`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	// Event-handler attributes inside markup (onclick=, onerror=, ...).
	regexp.MustCompile(`(?i)<[^>]*\bon[a-z]+\s*=`),
}

var tagRegex = regexp.MustCompile(`^[\p{L}\p{N}_.\-]+$`)

// ValidateListLimit rejects page sizes outside [MinListLimit, MaxListLimit].
func ValidateListLimit(limit int) error {
	if limit < MinListLimit || limit > MaxListLimit {
		return fmt.Errorf("limit must be between %d and %d", MinListLimit, MaxListLimit)
	}
	return nil
}

// ValidatePostContent requires non-blank content within MaxContentLength
// characters that carries none of the disallowed script/markup patterns.
func ValidatePostContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("content too long (max %d characters)", MaxContentLength)
	}
	for _, p := range disallowedContentPatterns {
		if p.MatchString(content) {
			return fmt.Errorf("content contains potentially unsafe patterns")
		}
	}
	return nil
}

// NormalizeTags trims tags and rejects empty, oversized, malformed or
// duplicate entries. A nil slice normalizes to an empty one.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) > MaxTagsPerPost {
		return nil, fmt.Errorf("too many tags (max %d)", MaxTagsPerPost)
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			return nil, fmt.Errorf("tags cannot be empty")
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, fmt.Errorf("tag %q too long (max %d characters)", tag, MaxTagLength)
		}
		if !tagRegex.MatchString(tag) {
			return nil, fmt.Errorf("tag %q contains invalid characters", tag)
		}
		if _, dup := seen[tag]; dup {
			return nil, fmt.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}
