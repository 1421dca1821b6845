package review

import (
	"time"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/vcs"
	"github.com/mergewise/mergewise/pkg/logger"
)

// MergeRequestEvent is the trigger-relevant slice of a merge request
// webhook payload.
type MergeRequestEvent struct {
	ProjectID    int
	MRNumber     int
	Action       string
	SourceBranch string
	TargetBranch string
	CommitSHA    string
	Author       string
	AuthorHandle string
	Title        string
	Description  string
}

// PushEvent is the trigger-relevant slice of a push webhook payload.
// Branch is the plain branch name, without the refs/heads/ prefix.
type PushEvent struct {
	ProjectID    int
	Branch       string
	CommitSHA    string
	Author       string
	AuthorHandle string
	Message      string
}

// TriggerResult tells the webhook handler what happened. Declined events
// are not errors; the handler acknowledges them with started=false.
type TriggerResult struct {
	Started bool   `json:"started"`
	RunID   uint   `json:"run_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Trigger decides whether an incoming event starts a pipeline run and
// creates the run record. The launch callback receives the new run id;
// it must not block.
type Trigger struct {
	db          *gorm.DB
	dedupWindow time.Duration
	launch      func(runID uint)
}

func NewTrigger(db *gorm.DB, dedupWindow time.Duration, launch func(runID uint)) *Trigger {
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}
	return &Trigger{db: db, dedupWindow: dedupWindow, launch: launch}
}

func declined(reason string) *TriggerResult {
	return &TriggerResult{Started: false, Reason: reason}
}

// HandleMergeRequest applies the trigger checks for a merge request event
// and starts a run when they all pass. Returns an error only on storage
// failures; every policy decline is a normal result.
func (t *Trigger) HandleMergeRequest(ev *MergeRequestEvent) (*TriggerResult, error) {
	repo, res := t.resolveRepository(ev.ProjectID)
	if res != nil {
		return res, nil
	}

	switch ev.Action {
	case "open", "update", "reopen", "":
	case "close", "closed":
		logger.Infof("[Trigger] MR !%d action %q ignored", ev.MRNumber, ev.Action)
		return declined("close action ignored"), nil
	default:
		return declined("action not reviewable"), nil
	}

	if !MatchesBranch(ev.TargetBranch, repo.BranchPattern) {
		logger.Infof("[Trigger] MR !%d target branch %q does not match pattern %q", ev.MRNumber, ev.TargetBranch, repo.BranchPattern)
		return declined("branch does not match watch pattern"), nil
	}

	// Webhook retries arrive within seconds; a pending run for the same
	// change inside the window means this event is a duplicate.
	var existing models.ReviewRun
	err := t.db.Where("repository_id = ? AND mr_number = ? AND status = ? AND created_at > ?",
		repo.ID, ev.MRNumber, models.RunStatusPending, time.Now().Add(-t.dedupWindow)).
		First(&existing).Error
	if err == nil {
		logger.Infof("[Trigger] MR !%d already has pending run %d, skipping", ev.MRNumber, existing.ID)
		return &TriggerResult{Started: false, RunID: existing.ID, Reason: "duplicate event"}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	run := &models.ReviewRun{
		RepositoryID: repo.ID,
		EventType:    models.EventMergeRequest,
		MRNumber:     ev.MRNumber,
		SourceBranch: ev.SourceBranch,
		TargetBranch: ev.TargetBranch,
		CommitSHA:    ev.CommitSHA,
		ShortSHA:     shortSHA(ev.CommitSHA),
		Author:       ev.Author,
		AuthorHandle: ev.AuthorHandle,
		Title:        ev.Title,
		Description:  ev.Description,
		Status:       models.RunStatusPending,
	}
	if err := t.db.Create(run).Error; err != nil {
		return nil, err
	}

	logger.Infof("[Trigger] Started run %d for MR !%d on %s", run.ID, ev.MRNumber, repo.Name)
	t.dispatch(run.ID)
	return &TriggerResult{Started: true, RunID: run.ID}, nil
}

// HandlePush applies the trigger checks for a push event. A commit that
// already has a run, in any state, is never re-reviewed.
func (t *Trigger) HandlePush(ev *PushEvent) (*TriggerResult, error) {
	repo, res := t.resolveRepository(ev.ProjectID)
	if res != nil {
		return res, nil
	}

	if ev.CommitSHA == "" {
		return declined("push has no commit"), nil
	}
	if !MatchesBranch(ev.Branch, repo.BranchPattern) {
		logger.Infof("[Trigger] push to %q does not match pattern %q", ev.Branch, repo.BranchPattern)
		return declined("branch does not match watch pattern"), nil
	}

	var count int64
	if err := t.db.Model(&models.ReviewRun{}).
		Where("repository_id = ? AND commit_sha = ?", repo.ID, ev.CommitSHA).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		logger.Infof("[Trigger] commit %s already reviewed, skipping", shortSHA(ev.CommitSHA))
		return declined("commit already reviewed"), nil
	}

	run := &models.ReviewRun{
		RepositoryID: repo.ID,
		EventType:    models.EventPush,
		SourceBranch: ev.Branch,
		CommitSHA:    ev.CommitSHA,
		ShortSHA:     shortSHA(ev.CommitSHA),
		Author:       ev.Author,
		AuthorHandle: ev.AuthorHandle,
		Title:        ev.Message,
		Status:       models.RunStatusPending,
	}
	if err := t.db.Create(run).Error; err != nil {
		return nil, err
	}

	logger.Infof("[Trigger] Started run %d for commit %s on %s", run.ID, run.ShortSHA, repo.Name)
	t.dispatch(run.ID)
	return &TriggerResult{Started: true, RunID: run.ID}, nil
}

// StartManual creates a run for an explicitly requested merge request.
// It skips the auto-review and branch checks but keeps the duplicate
// guard, since a double-click should not start two runs.
func (t *Trigger) StartManual(repo *models.Repository, mrIID int, meta *vcs.ChangeMetadata) (*TriggerResult, error) {
	var existing models.ReviewRun
	err := t.db.Where("repository_id = ? AND mr_number = ? AND status = ? AND created_at > ?",
		repo.ID, mrIID, models.RunStatusPending, time.Now().Add(-t.dedupWindow)).
		First(&existing).Error
	if err == nil {
		return &TriggerResult{Started: false, RunID: existing.ID, Reason: "run already pending"}, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	run := &models.ReviewRun{
		RepositoryID: repo.ID,
		EventType:    models.EventMergeRequest,
		MRNumber:     mrIID,
		SourceBranch: meta.SourceBranch,
		TargetBranch: meta.TargetBranch,
		CommitSHA:    meta.SHA,
		ShortSHA:     shortSHA(meta.SHA),
		Title:        meta.Title,
		Description:  meta.Description,
		Status:       models.RunStatusPending,
	}
	if err := t.db.Create(run).Error; err != nil {
		return nil, err
	}

	logger.Infof("[Trigger] Started manual run %d for MR !%d on %s", run.ID, mrIID, repo.Name)
	t.dispatch(run.ID)
	return &TriggerResult{Started: true, RunID: run.ID}, nil
}

// Launch re-dispatches an existing run, used by the retry endpoint after
// a reset.
func (t *Trigger) Launch(runID uint) {
	t.dispatch(runID)
}

func (t *Trigger) resolveRepository(projectID int) (*models.Repository, *TriggerResult) {
	var repo models.Repository
	err := t.db.Where("gitlab_project_id = ? AND active = ?", projectID, true).First(&repo).Error
	if err != nil {
		logger.Infof("[Trigger] no active repository for project %d", projectID)
		return nil, declined("no matching repository")
	}
	if !repo.AutoReview {
		logger.Infof("[Trigger] auto review disabled for %s", repo.Name)
		return nil, declined("auto review disabled")
	}
	return &repo, nil
}

func (t *Trigger) dispatch(runID uint) {
	if t.launch != nil {
		t.launch(runID)
	}
}
