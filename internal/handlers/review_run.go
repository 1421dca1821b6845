package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/review"
	"github.com/mergewise/mergewise/internal/services"
	"github.com/mergewise/mergewise/internal/vcs"
	"github.com/mergewise/mergewise/pkg/response"
)

// ReviewRunHandler exposes run listing, inspection, retry and manual
// triggering.
type ReviewRunHandler struct {
	runs    *services.ReviewRunService
	repos   *services.RepositoryService
	trigger *review.Trigger
}

func NewReviewRunHandler(runs *services.ReviewRunService, repos *services.RepositoryService, trigger *review.Trigger) *ReviewRunHandler {
	return &ReviewRunHandler{runs: runs, repos: repos, trigger: trigger}
}

// List handles GET /api/runs.
func (h *ReviewRunHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	repoID, _ := strconv.Atoi(c.DefaultQuery("repository_id", "0"))

	runs, total, err := h.runs.List(services.ReviewRunListParams{
		Page:         page,
		PageSize:     pageSize,
		RepositoryID: uint(repoID),
		Status:       c.Query("status"),
		EventType:    c.Query("event_type"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.PageData{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Items:    runs,
	})
}

// Get handles GET /api/runs/:id, returning the run with its findings and
// the raw per-file prompts and responses.
func (h *ReviewRunHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid run id")
		return
	}

	run, findings, err := h.runs.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "run not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"run":       run,
		"findings":  findings,
		"responses": run.ResponseMap(),
		"prompts":   run.PromptMap(),
	})
}

// Retry handles POST /api/runs/:id/retry. Pending runs are rejected with
// a conflict; terminal runs are reset and re-dispatched.
func (h *ReviewRunHandler) Retry(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid run id")
		return
	}

	run, err := h.runs.Reset(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "run not found")
			return
		}
		response.Error(c, err)
		return
	}

	h.trigger.Launch(run.ID)
	response.Success(c, &review.TriggerResult{Started: true, RunID: run.ID})
}

type manualTriggerRequest struct {
	MRNumber int `json:"mr_number" binding:"required,min=1"`
}

// TriggerManual handles POST /api/repositories/:id/review: fetch the
// merge request metadata and start a run, same path as the webhook.
func (h *ReviewRunHandler) TriggerManual(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.BadRequest(c, "invalid repository id")
		return
	}

	var req manualTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "mr_number is required")
		return
	}

	repo, err := h.repos.GetByID(id)
	if err != nil {
		response.NotFound(c, "repository not found")
		return
	}

	info, err := vcs.ParseProjectURL(repo.URL)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	client := vcs.NewGitLabClient(info.BaseURL, repo.GitLabProjectID, repo.AccessToken)

	meta, err := client.GetChangeMetadata(c.Request.Context(), req.MRNumber)
	if err != nil {
		response.BadRequest(c, "failed to fetch merge request: "+err.Error())
		return
	}

	res, err := h.trigger.StartManual(repo, req.MRNumber, meta)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !res.Started {
		response.Conflict(c, res.Reason)
		return
	}
	response.Success(c, res)
}

func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
