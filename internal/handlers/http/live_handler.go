package http

import (
	"net/http"

	"locallive/internal/core/controllers"
	"locallive/internal/core/domain"
	"locallive/pkg/errors"

	"github.com/gin-gonic/gin"
)

func (h *AppHandler) live(c *gin.Context) (*controllers.LiveStreamController, bool) {
	live, err := shellFrom(c).Live(c.Request.Context(), domain.StreamID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return nil, false
	}
	return live, true
}

func (h *AppHandler) GetLive(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	view, err := live.View(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AppHandler) JoinLive(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	if err := live.Join(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	h.GetLive(c)
}

func (h *AppHandler) LeaveLive(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	if err := live.Leave(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AppHandler) ToggleFollow(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": live.ToggleFollow()})
}

func (h *AppHandler) Bid(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	auction, err := live.Bid(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, auction)
}

func (h *AppHandler) BuyNow(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	auction, err := live.BuyNow(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, auction)
}

func (h *AppHandler) GetChat(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	lines, err := live.Chat(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": lines,
		"total":  len(lines),
	})
}

type MessageRequest struct {
	Text string `json:"text" binding:"max=1000"`
}

type GiftRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (h *AppHandler) SendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	live, ok := h.live(c)
	if !ok {
		return
	}
	h.respondLine(c, func() (*controllers.ChatLine, error) {
		return live.SendMessage(c.Request.Context(), req.Text)
	})
}

func (h *AppHandler) SendLike(c *gin.Context) {
	live, ok := h.live(c)
	if !ok {
		return
	}
	h.respondLine(c, func() (*controllers.ChatLine, error) {
		return live.SendLike(c.Request.Context())
	})
}

func (h *AppHandler) SendGift(c *gin.Context) {
	var req GiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	live, ok := h.live(c)
	if !ok {
		return
	}
	h.respondLine(c, func() (*controllers.ChatLine, error) {
		return live.SendGift(c.Request.Context(), req.Amount)
	})
}

func (h *AppHandler) respondLine(c *gin.Context, send func() (*controllers.ChatLine, error)) {
	line, err := send()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, line)
}
