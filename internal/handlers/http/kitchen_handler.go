package http

import (
	"net/http"

	"locallive/internal/core/controllers"
	"locallive/pkg/errors"

	"github.com/gin-gonic/gin"
)

func (h *AppHandler) kitchen(c *gin.Context) (*controllers.KitchenController, bool) {
	kitchen, err := shellFrom(c).Kitchen()
	if err != nil {
		c.Error(err)
		return nil, false
	}
	return kitchen, true
}

func (h *AppHandler) GetKitchen(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	view, err := kitchen.View(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AppHandler) OpenDialog(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	kitchen.OpenDialog()
	h.GetKitchen(c)
}

func (h *AppHandler) CloseDialog(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	kitchen.CloseDialog()
	h.GetKitchen(c)
}

type GoLiveRequest struct {
	Title       string `json:"title" binding:"max=200"`
	Description string `json:"description" binding:"max=2000"`
	Category    string `json:"category"`
}

func (h *AppHandler) StartStream(c *gin.Context) {
	var req GoLiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	if err := kitchen.SetForm(req.Title, req.Description, req.Category); err != nil {
		c.Error(err)
		return
	}

	stream, err := kitchen.StartStream(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stream": stream})
}

func (h *AppHandler) StopStream(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	if err := kitchen.StopStream(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AppHandler) ToggleMicrophone(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": kitchen.ToggleMicrophone(c.Request.Context())})
}

func (h *AppHandler) ToggleCamera(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": kitchen.ToggleCamera(c.Request.Context())})
}

func (h *AppHandler) SwitchCamera(c *gin.Context) {
	kitchen, ok := h.kitchen(c)
	if !ok {
		return
	}
	if err := kitchen.SwitchCamera(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
