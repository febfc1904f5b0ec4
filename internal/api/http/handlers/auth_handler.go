package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/intervention-service/internal/api/dto"
	"github.com/spec-kit/intervention-service/internal/service"
)

// AuthHandler exposes login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     session.Token,
		ExpiresAt: dto.FormatTime(session.ExpiresAt),
		User:      dto.NewUserResponse(session.User),
	}})
}
