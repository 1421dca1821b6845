package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/middleware"
	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/services"
	"github.com/mergewise/mergewise/pkg/response"
)

// RepositoryHandler exposes the watched-repository CRUD endpoints.
type RepositoryHandler struct {
	repos *services.RepositoryService
}

func NewRepositoryHandler(repos *services.RepositoryService) *RepositoryHandler {
	return &RepositoryHandler{repos: repos}
}

func (h *RepositoryHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	params := services.RepositoryListParams{
		Page:     page,
		PageSize: pageSize,
		Keyword:  c.Query("keyword"),
	}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		params.Active = &active
	}

	repos, total, err := h.repos.List(params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, response.PageData{Total: total, Page: page, PageSize: pageSize, Items: repos})
}

func (h *RepositoryHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	repo, err := h.repos.GetByID(id)
	if err != nil {
		response.NotFound(c, "repository not found")
		return
	}
	response.Success(c, repo)
}

type createRepositoryRequest struct {
	Name            string `json:"name" binding:"required"`
	URL             string `json:"url" binding:"required"`
	GitLabProjectID int    `json:"gitlab_project_id" binding:"required,min=1"`
	AccessToken     string `json:"access_token" binding:"required"`
	WebhookSecret   string `json:"webhook_secret"`
	AutoReview      *bool  `json:"auto_review"`
	BranchPattern   string `json:"branch_pattern"`
	CustomPrompt    string `json:"custom_prompt"`
	PromptMode      string `json:"prompt_mode"`
	ModelConfigID   *uint  `json:"model_config_id"`
}

func (h *RepositoryHandler) Create(c *gin.Context) {
	var req createRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	repo := &models.Repository{
		Name:            req.Name,
		URL:             req.URL,
		GitLabProjectID: req.GitLabProjectID,
		AccessToken:     req.AccessToken,
		WebhookSecret:   req.WebhookSecret,
		Active:          true,
		AutoReview:      req.AutoReview == nil || *req.AutoReview,
		BranchPattern:   req.BranchPattern,
		CustomPrompt:    req.CustomPrompt,
		PromptMode:      req.PromptMode,
		ModelConfigID:   req.ModelConfigID,
		CreatedBy:       middleware.GetUserID(c),
	}
	if err := h.repos.Create(repo); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, repo)
}

func (h *RepositoryHandler) Update(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	// only whitelisted columns are updatable
	allowed := map[string]bool{
		"name": true, "url": true, "access_token": true, "webhook_secret": true,
		"active": true, "auto_review": true, "branch_pattern": true,
		"custom_prompt": true, "prompt_mode": true, "model_config_id": true,
	}
	for k := range updates {
		if !allowed[k] {
			delete(updates, k)
		}
	}

	repo, err := h.repos.Update(id, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "repository not found")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, repo)
}

func (h *RepositoryHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	if err := h.repos.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "repository not found")
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
