package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/nomcebo/bankauth/internal/auth"
)

type AuthHandler struct {
	authService *auth.AuthService
}

func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes mounts the authentication endpoints under /api/auth.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	group := router.Group("/api/auth")
	group.Post("/register", h.PostRegister)
	group.Post("/login", h.PostLogin)
	group.Post("/refresh", h.PostRefresh)
	group.Get("/validate", h.GetValidate)
	group.Post("/logout", h.PostLogout)
	group.Post("/reset-password", h.PostResetPassword)
}

func (h *AuthHandler) PostRegister(ctx *fiber.Ctx) error {
	var req RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.NationalID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing required fields")
	}

	result, err := h.authService.Register(ctx.Context(), auth.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		Address:     req.Address,
		City:        req.City,
		Province:    req.Province,
		PostalCode:  req.PostalCode,
	}, ctx.IP())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(RegisterResponse{
		UserID:                    result.UserID,
		Email:                     result.Email,
		Message:                   result.Message,
		EmailVerificationRequired: result.EmailVerificationRequired,
	})
}

func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if req.Username == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing required fields")
	}

	result, err := h.authService.Login(ctx.Context(), req.Username, req.Password, ctx.IP())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		User: UserInfo{
			Username:    result.User.Username,
			Email:       result.User.Email,
			FirstName:   result.User.FirstName,
			LastName:    result.User.LastName,
			PhoneNumber: result.User.PhoneNumber,
			NationalID:  result.User.NationalID,
			DateOfBirth: result.User.DateOfBirth,
			Roles:       result.User.Roles,
		},
	})
}

func (h *AuthHandler) PostRefresh(ctx *fiber.Ctx) error {
	var req RefreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	pair, err := h.authService.Refresh(ctx.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *AuthHandler) GetValidate(ctx *fiber.Ctx) error {
	token := bearerToken(ctx)
	if token == "" {
		return auth.ErrInvalidToken
	}

	result, err := h.authService.Validate(ctx.Context(), token)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(ValidateResponse{
		Valid:       result.Valid,
		Username:    result.Username,
		Authorities: result.Authorities,
		ExpiresAt:   result.ExpiresAt,
	})
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	if bearerToken(ctx) == "" {
		return auth.ErrInvalidToken
	}
	var req LogoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	result := h.authService.Logout(ctx.Context(), req.RefreshToken, ctx.IP())
	return ctx.Status(fiber.StatusOK).JSON(LogoutResponse{
		Message:   result.Message,
		Timestamp: result.Timestamp,
	})
}

func (h *AuthHandler) PostResetPassword(ctx *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	message, err := h.authService.ResetPassword(ctx.Context(), req.Email, ctx.IP())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusOK).JSON(ResetPasswordResponse{Message: message})
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
