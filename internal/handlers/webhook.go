package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/review"
	"github.com/mergewise/mergewise/pkg/logger"
	"github.com/mergewise/mergewise/pkg/response"
)

// WebhookHandler receives GitLab webhooks and hands them to the trigger.
// Every policy decline is still a 200 acknowledgment; only malformed
// payloads and bad secrets are rejected.
type WebhookHandler struct {
	db      *gorm.DB
	trigger *review.Trigger
}

func NewWebhookHandler(db *gorm.DB, trigger *review.Trigger) *WebhookHandler {
	return &WebhookHandler{db: db, trigger: trigger}
}

type mrWebhookPayload struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		ID int `json:"id"`
	} `json:"project"`
	User struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
	ObjectAttributes struct {
		IID          int    `json:"iid"`
		Title        string `json:"title"`
		Description  string `json:"description"`
		Action       string `json:"action"`
		SourceBranch string `json:"source_branch"`
		TargetBranch string `json:"target_branch"`
		LastCommit   struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
}

type pushWebhookPayload struct {
	ObjectKind   string `json:"object_kind"`
	ProjectID    int    `json:"project_id"`
	Ref          string `json:"ref"`
	CheckoutSHA  string `json:"checkout_sha"`
	UserName     string `json:"user_name"`
	UserUsername string `json:"user_username"`
	Commits      []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"commits"`
}

// HandleGitLab is the single webhook endpoint. The event kind comes from
// the X-Gitlab-Event header; the shared secret, when configured on the
// repository, from X-Gitlab-Token.
func (h *WebhookHandler) HandleGitLab(c *gin.Context) {
	delivery := uuid.NewString()
	event := c.GetHeader("X-Gitlab-Event")
	logger.Infof("[Webhook] delivery %s: %s", delivery, event)

	switch event {
	case "Merge Request Hook":
		h.handleMergeRequest(c, delivery)
	case "Push Hook":
		h.handlePush(c, delivery)
	default:
		// unknown hooks are acknowledged so GitLab does not retry them
		response.Success(c, &review.TriggerResult{Started: false, Reason: "event not handled"})
	}
}

func (h *WebhookHandler) handleMergeRequest(c *gin.Context, delivery string) {
	var payload mrWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid webhook payload")
		return
	}

	if !h.secretOK(c, payload.Project.ID) {
		return
	}

	res, err := h.trigger.HandleMergeRequest(&review.MergeRequestEvent{
		ProjectID:    payload.Project.ID,
		MRNumber:     payload.ObjectAttributes.IID,
		Action:       payload.ObjectAttributes.Action,
		SourceBranch: payload.ObjectAttributes.SourceBranch,
		TargetBranch: payload.ObjectAttributes.TargetBranch,
		CommitSHA:    payload.ObjectAttributes.LastCommit.ID,
		Author:       payload.User.Name,
		AuthorHandle: payload.User.Username,
		Title:        payload.ObjectAttributes.Title,
		Description:  payload.ObjectAttributes.Description,
	})
	if err != nil {
		logger.Errorf("[Webhook] delivery %s failed: %v", delivery, err)
		response.ServerError(c, "failed to process event")
		return
	}
	response.Success(c, res)
}

func (h *WebhookHandler) handlePush(c *gin.Context, delivery string) {
	var payload pushWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "invalid webhook payload")
		return
	}

	if !h.secretOK(c, payload.ProjectID) {
		return
	}

	sha := payload.CheckoutSHA
	message := ""
	if len(payload.Commits) > 0 {
		last := payload.Commits[len(payload.Commits)-1]
		if sha == "" {
			sha = last.ID
		}
		message = strings.SplitN(last.Message, "\n", 2)[0]
	}

	res, err := h.trigger.HandlePush(&review.PushEvent{
		ProjectID:    payload.ProjectID,
		Branch:       strings.TrimPrefix(payload.Ref, "refs/heads/"),
		CommitSHA:    sha,
		Author:       payload.UserName,
		AuthorHandle: payload.UserUsername,
		Message:      message,
	})
	if err != nil {
		logger.Errorf("[Webhook] delivery %s failed: %v", delivery, err)
		response.ServerError(c, "failed to process event")
		return
	}
	response.Success(c, res)
}

// secretOK verifies the webhook token when the repository has one
// configured. Unknown repositories pass here and are declined by the
// trigger with a neutral acknowledgment.
func (h *WebhookHandler) secretOK(c *gin.Context, projectID int) bool {
	var repo models.Repository
	if err := h.db.Where("gitlab_project_id = ?", projectID).First(&repo).Error; err != nil {
		return true
	}
	if repo.WebhookSecret == "" {
		return true
	}
	if c.GetHeader("X-Gitlab-Token") != repo.WebhookSecret {
		c.JSON(http.StatusUnauthorized, response.Response{Code: 401, Message: "invalid webhook token"})
		return false
	}
	return true
}
