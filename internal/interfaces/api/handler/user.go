package handler

import (
	"fmt"
	"net/http"

	"medreminder/internal/application/dto"
	"medreminder/internal/application/service"
	"medreminder/internal/interfaces/api/middleware"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/labstack/echo/v4"
)

// UserHandler serves registration and the caller's profile.
type UserHandler struct {
	userService service.UserService
	log         logger.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService service.UserService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		log:         log,
	}
}

// Register handles POST /users. The response carries the API token.
func (h *UserHandler) Register(c echo.Context) error {
	var req dto.RegisterUserRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, fmt.Errorf("%w: malformed request body", appErrors.ErrValidation))
	}

	resp, err := h.userService.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c echo.Context) error {
	user, err := h.userService.GetUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToUserResponse(user))
}
