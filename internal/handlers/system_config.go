package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mergewise/mergewise/internal/services"
	"github.com/mergewise/mergewise/pkg/response"
)

// SystemConfigHandler exposes the stored tunables.
type SystemConfigHandler struct {
	configs *services.SystemConfigService
}

func NewSystemConfigHandler(configs *services.SystemConfigService) *SystemConfigHandler {
	return &SystemConfigHandler{configs: configs}
}

func (h *SystemConfigHandler) List(c *gin.Context) {
	items, err := h.configs.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

type setConfigRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

func (h *SystemConfigHandler) Set(c *gin.Context) {
	var req setConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "key and value are required")
		return
	}

	if err := h.configs.Set(req.Key, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
