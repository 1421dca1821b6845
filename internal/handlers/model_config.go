package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/services"
	"github.com/mergewise/mergewise/pkg/response"
)

// ModelConfigHandler exposes the model endpoint configuration CRUD.
type ModelConfigHandler struct {
	configs *services.ModelConfigService
}

func NewModelConfigHandler(configs *services.ModelConfigService) *ModelConfigHandler {
	return &ModelConfigHandler{configs: configs}
}

func (h *ModelConfigHandler) List(c *gin.Context) {
	configs, err := h.configs.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, configs)
}

type createModelConfigRequest struct {
	Name        string  `json:"name" binding:"required"`
	Provider    string  `json:"provider"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model" binding:"required"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsDefault   bool    `json:"is_default"`
}

func (h *ModelConfigHandler) Create(c *gin.Context) {
	var req createModelConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	mc := &models.ModelConfig{
		Name:        req.Name,
		Provider:    req.Provider,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		IsDefault:   req.IsDefault,
		IsActive:    true,
	}
	if err := h.configs.Create(mc); err != nil {
		response.Error(c, err)
		return
	}
	mc.APIKeyMask = mc.MaskAPIKey()
	response.Created(c, mc)
}

func (h *ModelConfigHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid model config id")
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	allowed := map[string]bool{
		"name": true, "provider": true, "base_url": true, "api_key": true,
		"model": true, "max_tokens": true, "temperature": true,
		"is_default": true, "is_active": true,
	}
	for k := range updates {
		if !allowed[k] {
			delete(updates, k)
		}
	}

	mc, err := h.configs.Update(id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "model config not found")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, mc)
}

func (h *ModelConfigHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid model config id")
		return
	}

	if err := h.configs.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "model config not found")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *ModelConfigHandler) SetDefault(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid model config id")
		return
	}

	if err := h.configs.SetDefault(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "model config not found")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
