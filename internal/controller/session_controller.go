package controller

import (
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/pkg/serverutils"
	"algo-collab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Join(ctx *fiber.Ctx) error
	Leave(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	ListActive(ctx *fiber.Ctx) error
	Presence(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
}

func NewSessionController(service service.ISessionService) ISessionController {
	return &sessionController{service: service}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("", c.ListActive)
	h.Post(":id/join", c.Join)
	h.Post(":id/leave", c.Leave)
	h.Post(":id/end", c.End)
	h.Get(":id/presence", c.Presence)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) Join(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.Join(ctx.Context(), userId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success join session", res))
}

func (c *sessionController) Leave(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	c.service.Leave(id, userId)
	return ctx.JSON(serverutils.SuccessResponse[any]("Success leave session", nil))
}

func (c *sessionController) End(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := c.service.End(ctx.Context(), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success end session", nil))
}

func (c *sessionController) ListActive(ctx *fiber.Ctx) error {
	projectId, err := uuid.Parse(ctx.Query("project_id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.ListActive(ctx.Context(), projectId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get active sessions", res))
}

func (c *sessionController) Presence(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res := c.service.GetSessionPresence(id)
	return ctx.JSON(serverutils.SuccessResponse("Success get session presence", res))
}
