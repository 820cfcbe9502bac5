package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/middleware"
	"github.com/iliyamo/onstream-api/internal/service"
)

// AuthHandler serves /auth.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register creates an account. The response carries the new user id;
// the client logs in separately.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	u, err := h.Auth.Register(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err, "Registration failed")
	}
	return ok(c, http.StatusCreated, "User registered successfully", echo.Map{"user_id": u.ID.Hex()})
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	tok, err := h.Auth.Login(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err, "Login failed")
	}
	return ok(c, http.StatusOK, "Login successful", tok)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	u, err := h.Auth.Me(c.Request().Context(), id.Username)
	if err != nil {
		return respondError(c, err, "Failed to retrieve user info")
	}
	return ok(c, http.StatusOK, "User info retrieved successfully", u)
}
