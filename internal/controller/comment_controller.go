package controller

import (
	"algo-collab-be/internal/dto"
	"algo-collab-be/internal/pkg/serverutils"
	"algo-collab-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICommentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Reply(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
	Reopen(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	GetFileComments(ctx *fiber.Ctx) error
	GetThread(ctx *fiber.Ctx) error
}

type commentController struct {
	service service.ICommentService
}

func NewCommentController(service service.ICommentService) ICommentController {
	return &commentController{service: service}
}

func (c *commentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/comment/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("", c.GetFileComments)
	h.Get(":id/thread", c.GetThread)
	h.Post(":id/reply", c.Reply)
	h.Post(":id/resolve", c.Resolve)
	h.Post(":id/reopen", c.Reopen)
	h.Delete(":id", c.Delete)
}

func (c *commentController) Create(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.CreateCommentRequest
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
	return ctx.JSON(serverutils.SuccessResponse("Success create comment", res))
}

func (c *commentController) Reply(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	var req dto.ReplyCommentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.RootId = id
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Reply(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success reply comment", res))
}

func (c *commentController) Resolve(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.Resolve(ctx.Context(), userId, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve comment", res))
}

func (c *commentController) Reopen(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.Reopen(ctx.Context(), userId, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success reopen comment", res))
}

func (c *commentController) Delete(ctx *fiber.Ctx) error {
	userIdStr := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	if err := c.service.Delete(ctx.Context(), userId, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete comment", nil))
}

func (c *commentController) GetFileComments(ctx *fiber.Ctx) error {
	projectId, err := uuid.Parse(ctx.Query("project_id"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	filePath := ctx.Query("file_path")
	if filePath == "" {
		return fiber.ErrBadRequest
	}

	res, err := c.service.GetFileComments(ctx.Context(), projectId, filePath)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get file comments", res))
}

func (c *commentController) GetThread(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}

	res, err := c.service.GetThread(ctx.Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get thread", res))
}
