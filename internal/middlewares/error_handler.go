package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/nomcebo/bankauth/internal/auth"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler maps domain errors onto the HTTP contract. Responses carry
// generic messages only; internal detail stays in the log.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var depErr *auth.DependencyError
	var fiberErr *fiber.Error

	code := fiber.StatusInternalServerError
	message := "Internal server error"
	switch {
	case errors.Is(err, auth.ErrInvalidID):
		code, message = fiber.StatusBadRequest, "Invalid South African ID number format"
	case errors.Is(err, auth.ErrUserExists):
		code, message = fiber.StatusConflict, "User already exists"
	case errors.Is(err, auth.ErrInvalidCredentials):
		code, message = fiber.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, auth.ErrAccountLocked):
		code, message = fiber.StatusLocked, "Account is temporarily locked. Please try again later."
	case errors.Is(err, auth.ErrInvalidToken):
		code, message = fiber.StatusUnauthorized, "Invalid or expired token"
	case errors.As(err, &depErr):
		slog.Error("Collaborator failure", "path", ctx.Path(), "collaborator", depErr.Collaborator, "error", depErr.Err)
		code, message = fiber.StatusServiceUnavailable, "Service temporarily unavailable"
	case errors.As(err, &fiberErr):
		code, message = fiberErr.Code, fiberErr.Message
	default:
		slog.Error("Unhandled error", "path", ctx.Path(), "error", err)
	}

	return ctx.Status(code).JSON(errorResponse{Code: code, Message: message})
}
