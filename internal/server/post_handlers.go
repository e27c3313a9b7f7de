package server

import (
	"simplesns/internal/middleware"
	"simplesns/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListPosts handles GET /posts?limit&nextToken&tag
func (s *Server) ListPosts(c *fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return respondError(c, err)
	}

	page, err := s.backend.ListPosts(c.UserContext(), models.ListPostsInput{
		Limit:  limit,
		Cursor: c.Query("nextToken"),
		Tag:    c.Query("tag"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.backend.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req models.CreatePostInput
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, invalidBody())
	}

	post, err := s.backend.CreatePost(c.UserContext(), middleware.CallerFrom(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req models.UpdatePostInput
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, invalidBody())
	}

	post, err := s.backend.UpdatePost(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID := c.Params("id")
	if err := s.backend.DeletePost(c.UserContext(), middleware.CallerFrom(c), postID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "deleted",
		"postId": postID,
	})
}
