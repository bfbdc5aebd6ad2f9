package server

import (
	"io"
	"strings"

	"sutnist/internal/models"
	"sutnist/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ImageUploadResponse is the API response after uploading an image. Ref goes into post images
// or the profile avatar.
type ImageUploadResponse struct {
	ID        uint   `json:"id"`
	Hash      string `json:"hash"`
	Ref       string `json:"ref"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
}

// UploadImage handles POST /api/images
// @Summary Upload an image
// @Description jpeg, png, gif or webp; stored as WebP no larger than 1440px
// @Tags images
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Image file"
// @Success 201 {object} ImageUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Unable to read uploaded file"))
	}

	img, err := s.images.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      currentUserID(c),
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ImageUploadResponse{
		ID:        img.ID,
		Hash:      img.Hash,
		Ref:       service.ImageRef(img.Hash),
		Width:     img.Width,
		Height:    img.Height,
		SizeBytes: img.SizeBytes,
		MimeType:  img.MimeType,
	})
}

// GetImage handles GET /api/images/:hash
// @Summary Serve an uploaded image
// @Tags images
// @Produce image/webp
// @Param hash path string true "Content hash"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /images/{hash} [get]
func (s *Server) GetImage(c *fiber.Ctx) error {
	_, path, err := s.images.Resolve(c.UserContext(), strings.TrimSpace(c.Params("hash")))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	// content-addressed, never changes
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(path)
}
