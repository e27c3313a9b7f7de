package server

import (
	"simplesns/internal/middleware"
	"simplesns/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// LimitsResponse tells clients the service limits and which optional
// features are on for them. The web client reads it once at startup.
type LimitsResponse struct {
	MaxImagesPerPost int             `json:"maxImagesPerPost"`
	MaxUploadCount   int             `json:"maxUploadCount"`
	MaxContentLength int             `json:"maxContentLength"`
	MaxTagsPerPost   int             `json:"maxTagsPerPost"`
	MaxListLimit     int             `json:"maxListLimit"`
	Features         map[string]bool `json:"features"`
}

// GetLimits handles GET /limits
func (s *Server) GetLimits(c *fiber.Ctx) error {
	return c.JSON(LimitsResponse{
		MaxImagesPerPost: validation.MaxImagesPerPost,
		MaxUploadCount:   validation.MaxUploadCount,
		MaxContentLength: validation.MaxContentLength,
		MaxTagsPerPost:   validation.MaxTagsPerPost,
		MaxListLimit:     validation.MaxListLimit,
		Features:         s.flags.Snapshot(middleware.CallerFrom(c).UserID),
	})
}
