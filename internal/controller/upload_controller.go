package controller

import (
	"errors"
	"mime/multipart"

	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/ingest"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
}

type uploadController struct {
	uploadService service.IUploadService
}

func NewUploadController(uploadService service.IUploadService) IUploadController {
	return &uploadController{
		uploadService: uploadService,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("uploads", c.Upload)
}

// Upload stages a file ahead of a chat request and returns the upload
// id the client passes back in the stream call.
func (c *uploadController) Upload(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file field is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	res, err := c.uploadService.Upload(ctx.Context(), userId, fileHeader.Filename, detectContentType(fileHeader), file)
	if err != nil {
		if errors.Is(err, ingest.ErrFileTooLarge) || errors.Is(err, ingest.ErrTotalTooLarge) {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload file", res))
}

func detectContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
