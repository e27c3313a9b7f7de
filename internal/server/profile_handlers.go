package server

import (
	"simplesns/internal/middleware"
	"simplesns/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.backend.GetProfile(c.UserContext(), middleware.CallerFrom(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles POST and PUT /profile
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req models.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, invalidBody())
	}

	profile, err := s.backend.UpdateProfile(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// CreateUploadURLs handles POST /uploads and POST /uploads/presigned-urls
func (s *Server) CreateUploadURLs(c *fiber.Ctx) error {
	var req models.UploadURLsInput
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, invalidBody())
	}

	urls, err := s.backend.CreateUploadURLs(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"urls": urls})
}
