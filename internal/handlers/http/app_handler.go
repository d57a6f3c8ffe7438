package http

import (
	"net/http"
	"strconv"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"
	"locallive/internal/core/shell"
	"locallive/internal/infrastructure/geo"
	"locallive/internal/infrastructure/middleware"
	"locallive/pkg/errors"
	"locallive/pkg/validation"

	"github.com/gin-gonic/gin"
)

const contextShell = "shell"

// AppHandler drives the signed-in user's shell and page controllers.
type AppHandler struct {
	authService services.AuthService
	registry    *shell.Registry
}

func NewAppHandler(authService services.AuthService, registry *shell.Registry) *AppHandler {
	return &AppHandler{
		authService: authService,
		registry:    registry,
	}
}

func (h *AppHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(h.authService), h.resolveShell)
	{
		api.GET("/app", h.GetApp)
		api.POST("/app/navigate", h.Navigate)
		api.POST("/app/location", h.ShareLocation)
		api.POST("/app/location/skip", h.SkipLocation)

		api.GET("/home", h.GetHome)
		api.GET("/profile", h.GetProfile)

		api.GET("/live/:id", h.GetLive)
		api.POST("/live/:id/join", h.JoinLive)
		api.POST("/live/:id/leave", h.LeaveLive)
		api.POST("/live/:id/follow", h.ToggleFollow)
		api.POST("/live/:id/bid", h.Bid)
		api.POST("/live/:id/buy", h.BuyNow)
		api.GET("/live/:id/chat", h.GetChat)
		api.POST("/live/:id/chat/message", h.SendMessage)
		api.POST("/live/:id/chat/like", h.SendLike)
		api.POST("/live/:id/chat/gift", h.SendGift)

		api.GET("/kitchen", h.GetKitchen)
		api.POST("/kitchen/dialog", h.OpenDialog)
		api.DELETE("/kitchen/dialog", h.CloseDialog)
		api.POST("/kitchen/stream", h.StartStream)
		api.DELETE("/kitchen/stream", h.StopStream)
		api.POST("/kitchen/microphone", h.ToggleMicrophone)
		api.POST("/kitchen/camera", h.ToggleCamera)
		api.POST("/kitchen/switch-camera", h.SwitchCamera)
	}
}

// resolveShell loads the caller's shell. It runs after AuthMiddleware, so
// the token is known to be valid.
func (h *AppHandler) resolveShell(c *gin.Context) {
	token, _ := middleware.BearerToken(c)
	sh, err := h.registry.ForToken(c.Request.Context(), token)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.Set(contextShell, sh)
	c.Next()
}

func shellFrom(c *gin.Context) *shell.Shell {
	return c.MustGet(contextShell).(*shell.Shell)
}

func (h *AppHandler) GetApp(c *gin.Context) {
	c.JSON(http.StatusOK, shellFrom(c).View())
}

type NavigateRequest struct {
	Page     string          `json:"page" binding:"required"`
	StreamID domain.StreamID `json:"stream_id"`
}

func (h *AppHandler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	sh := shellFrom(c)
	if err := sh.Navigate(c.Request.Context(), req.Page, req.StreamID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sh.View())
}

// LocationRequest carries the fix the client obtained, or the reason it
// could not get one.
type LocationRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

func (h *AppHandler) ShareLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	var source ports.Geolocator = geo.Denied{Reason: req.Error}
	if req.Error == "" && req.Lat != nil && req.Lng != nil {
		if err := validation.ValidateCoordinates(*req.Lat, *req.Lng); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
		source = geo.Fixed{Lat: *req.Lat, Lng: *req.Lng}
	}

	// A failed fix is not a request error: the view carries the prompt and
	// its message.
	sh := shellFrom(c)
	status := http.StatusOK
	if _, err := sh.RequestLocation(c.Request.Context(), source); err != nil {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, sh.View())
}

func (h *AppHandler) SkipLocation(c *gin.Context) {
	sh := shellFrom(c)
	sh.SkipLocation()
	c.JSON(http.StatusOK, sh.View())
}

func (h *AppHandler) GetHome(c *gin.Context) {
	home, err := shellFrom(c).Home()
	if err != nil {
		c.Error(err)
		return
	}

	home.SetSearch(c.Query("q"))
	if name := c.Query("category"); name != "" {
		if err := home.SetCategory(name); err != nil {
			c.Error(err)
			return
		}
	}
	if raw := c.Query("radius"); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.Error(errors.NewInvalidInputError("radius must be a number"))
			return
		}
		if err := home.SetRadius(km); err != nil {
			c.Error(err)
			return
		}
	}
	if c.Query("filters") == "toggle" {
		home.ToggleFilters()
	}

	view, err := home.View(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AppHandler) GetProfile(c *gin.Context) {
	profile, err := shellFrom(c).Profile()
	if err != nil {
		c.Error(err)
		return
	}
	view, err := profile.View(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}
