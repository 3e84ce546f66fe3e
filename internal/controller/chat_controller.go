package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"sync"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/orchestrator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	GetAllSessions(ctx *fiber.Ctx) error
	GetSessionHistory(ctx *fiber.Ctx) error
	DeleteMemory(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	log         logger.ILogger
}

func NewChatController(chatService service.IChatService, log logger.ILogger) IChatController {
	return &chatController{
		chatService: chatService,
		log:         log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("stream", c.Stream)
	h.Get("sessions", c.GetAllSessions)
	h.Get("sessions/:id/history", c.GetSessionHistory)
	h.Delete("memory", c.DeleteMemory)
}

// Stream runs a chat turn and replies with server-sent events. Each
// record is a single data line carrying one JSON event, terminated by
// a blank line. A broken pipe cancels the turn.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.StreamChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if req.Query == "" && len(req.Files) == 0 && len(req.UploadIds) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "query or files required")
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The fiber context is gone once this writer runs; the turn is
		// bound to its own context and cancelled when the pipe breaks.
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		emit := func(event orchestrator.StreamEvent) {
			mu.Lock()
			defer mu.Unlock()

			data, err := json.Marshal(event)
			if err != nil {
				return
			}
			if _, err := w.WriteString("data: "); err != nil {
				cancel()
				return
			}
			if _, err := w.Write(data); err != nil {
				cancel()
				return
			}
			if _, err := w.WriteString("\n\n"); err != nil {
				cancel()
				return
			}
			if err := w.Flush(); err != nil {
				cancel()
			}
		}

		if err := c.chatService.StreamChat(streamCtx, userId, &req, emit); err != nil {
			c.log.Warn("ChatController", "Stream finished with error", map[string]interface{}{
				"user_id": userId.String(),
				"error":   err.Error(),
			})
		}
	}))

	return nil
}

func (c *chatController) GetAllSessions(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	res, err := c.chatService.GetAllSessions(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *chatController) GetSessionHistory(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.chatService.GetSessionHistory(ctx.Context(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}

func (c *chatController) DeleteMemory(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.DeleteMemoryRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	if err := c.chatService.DeleteMemory(ctx.Context(), userId, req.ChatSessionId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete memory", nil))
}
