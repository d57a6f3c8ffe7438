package http

import (
	"locallive/internal/core/domain"
	"locallive/internal/core/services"
	"locallive/internal/infrastructure/feed"
	"locallive/internal/infrastructure/middleware"
	"locallive/pkg/errors"
	"locallive/pkg/validation"

	"github.com/gin-gonic/gin"
)

// FeedHandler upgrades live feed subscriptions. Signed-out clients get a
// read-only feed.
type FeedHandler struct {
	hub         *feed.Hub
	streams     *services.StreamService
	authService services.AuthService
}

func NewFeedHandler(hub *feed.Hub, streams *services.StreamService, authService services.AuthService) *FeedHandler {
	return &FeedHandler{
		hub:         hub,
		streams:     streams,
		authService: authService,
	}
}

func (h *FeedHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", middleware.OptionalAuthMiddleware(h.authService), h.ServeFeed)
}

func (h *FeedHandler) ServeFeed(c *gin.Context) {
	channel := c.Query("channel")
	if err := validation.ValidateChannel(channel); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	stream, err := h.streams.GetByChannel(c.Request.Context(), channel)
	if err != nil {
		c.Error(err)
		return
	}

	var actor *domain.Actor
	if userID, ok := middleware.UserID(c); ok {
		actor = &domain.Actor{
			ID:       userID,
			Username: c.GetString(middleware.ContextUsername),
			IsHost:   stream.SellerID == domain.SellerID(userID),
		}
		if actor.Username == "" {
			actor.Username = "Anonymous"
		}
	}

	h.hub.Serve(c.Writer, c.Request, channel, actor)
}
