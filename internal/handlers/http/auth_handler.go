package http

import (
	"net/http"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/services"
	"locallive/internal/core/shell"
	"locallive/internal/infrastructure/middleware"
	"locallive/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	registry    *shell.Registry
	accessTTL   time.Duration
}

func NewAuthHandler(authService services.AuthService, registry *shell.Registry, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		registry:    registry,
		accessTTL:   accessTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
		api.POST("/logout", middleware.AuthMiddleware(h.authService), h.Logout)
	}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,max=254"`
	Password    string `json:"password" binding:"required,max=128"`
	DisplayName string `json:"display_name" binding:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

type TokenResponse struct {
	User         *domain.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int          `json:"expires_in"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		c.Error(err)
		return
	}
	h.respondWithTokens(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	h.respondWithTokens(c, http.StatusOK, user)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("invalid refresh token").WithCause(err))
		return
	}
	user, err := h.authService.User(c.Request.Context(), claims.UserID)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("invalid refresh token").WithCause(err))
		return
	}

	accessToken, err := h.authService.GenerateToken(user)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token").WithCause(err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(h.accessTTL / time.Second),
	})
}

// Logout tears down the caller's session. The tokens stay valid until they
// expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(domain.ErrUnauthenticated)
		return
	}
	h.registry.SignOut(userID)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, user *domain.User) {
	accessToken, err := h.authService.GenerateToken(user)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token").WithCause(err))
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken(user.ID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate refresh token").WithCause(err))
		return
	}

	c.JSON(status, TokenResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(h.accessTTL / time.Second),
	})
}
