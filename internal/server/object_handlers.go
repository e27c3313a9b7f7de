package server

import (
	"bytes"
	"errors"
	"net/url"
	"strconv"

	"simplesns/internal/models"
	"simplesns/internal/objectstore"
	"simplesns/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func objectKey(c *fiber.Ctx) (string, error) {
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || key == "" {
		return "", models.NewValidationError("Invalid object key")
	}
	return key, nil
}

// PutObject handles PUT /objects/* for the local object store. The signed
// token binds key, method and content type.
func (s *Server) PutObject(c *fiber.Ctx) error {
	key, err := objectKey(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.objects.Verify(c.Query("token"), fiber.MethodPut, key, c.Get(fiber.HeaderContentType)); err != nil {
		return respondError(c, models.NewForbiddenError("Invalid or expired upload URL"))
	}

	if err := s.objects.Write(key, bytes.NewReader(c.Body())); err != nil {
		if errors.Is(err, objectstore.ErrObjectTooLarge) {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(models.ErrorResponse{Error: "Object too large"})
		}
		return respondError(c, models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusOK)
}

// GetObject handles GET /objects/* for the local object store.
func (s *Server) GetObject(c *fiber.Ctx) error {
	key, err := objectKey(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.objects.Verify(c.Query("token"), fiber.MethodGet, key, ""); err != nil {
		return respondError(c, models.NewForbiddenError("Invalid or expired object URL"))
	}

	f, err := s.objects.Open(key)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return respondError(c, models.NewNotFoundError("Object", key))
	}
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return respondError(c, models.NewInternalError(err))
	}

	contentType := validation.ContentTypeForKey(key)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age="+strconv.Itoa(int(s.config.PresignedURLTTL().Seconds())))
	return c.SendStream(f, int(info.Size()))
}
