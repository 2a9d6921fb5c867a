package serverutils

import (
	"errors"

	"algo-collab-be/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps errors returned by downstream handlers
// onto HTTP statuses so controllers just return errors.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return ErrorHandler(ctx, err)
	}
}

// ErrorHandler maps the error taxonomy onto HTTP statuses. Also usable
// as the fiber app's ErrorHandler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return ctx.Status(statusFor(appErr.Code)).
			JSON(ErrorResponse(string(appErr.Code), appErr.Message))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).
			JSON(ErrorResponse("HTTP_ERROR", fiberErr.Message))
	}

	return ctx.Status(fiber.StatusInternalServerError).
		JSON(ErrorResponse("INTERNAL", "internal server error"))
}

func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeNotFound:
		return fiber.StatusNotFound
	case apperror.CodeSessionEnded:
		return fiber.StatusGone
	case apperror.CodeConflict:
		return fiber.StatusConflict
	case apperror.CodeInvalid:
		return fiber.StatusBadRequest
	case apperror.CodePersistenceUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
