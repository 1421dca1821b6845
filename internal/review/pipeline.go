package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mergewise/mergewise/internal/llm"
	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/vcs"
	"github.com/mergewise/mergewise/pkg/logger"
)

// State enumerates the pipeline stages. The driver loop in Execute owns
// all transitions; stages never jump on their own.
type State int

const (
	StateFetchDiff State = iota
	StateSummarize
	StateReview
	StateAggregate
	StatePublish
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFetchDiff:
		return "fetch_diff"
	case StateSummarize:
		return "generate_summary"
	case StateReview:
		return "review"
	case StateAggregate:
		return "aggregate"
	case StatePublish:
		return "publish"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Options tune the pipeline. Zero values fall back to the defaults used
// across the service (batch above 20 files, keep 5 critical findings).
type Options struct {
	BatchThreshold int
	CriticalCap    int
	// FallbackModel is used when no model configuration exists in the
	// database, typically on a fresh install configured via file or env.
	FallbackModel llm.ModelSpec
}

// Pipeline executes review runs against one repository's VCS client.
type Pipeline struct {
	db    *gorm.DB
	vcs   vcs.Client
	model llm.Invoker
	opts  Options
}

func NewPipeline(db *gorm.DB, client vcs.Client, invoker llm.Invoker, opts Options) *Pipeline {
	if opts.BatchThreshold <= 0 {
		opts.BatchThreshold = 20
	}
	if opts.CriticalCap <= 0 {
		opts.CriticalCap = 5
	}
	return &Pipeline{db: db, vcs: client, model: invoker, opts: opts}
}

// runState is the in-memory working set of one execution. The driver owns
// it; stages read and write fields but never advance fileIndex.
type runState struct {
	run  *models.ReviewRun
	repo *models.Repository

	spec   llm.ModelSpec
	system string

	meta  *vcs.ChangeMetadata
	diffs []vcs.ChangeDiff
	batch bool

	fileIndex int

	critical   int
	normal     int
	suggestion int
	items      []CriticalItem

	prompts   map[string]string
	responses map[string]string
	batchText string

	findings []models.Finding
}

// Execute drives a run through all stages. Any stage error marks the run
// failed and stops; there is no pipeline-level retry.
func (p *Pipeline) Execute(ctx context.Context, runID uint) error {
	st := &runState{
		prompts:   make(map[string]string),
		responses: make(map[string]string),
	}

	state := StateFetchDiff
	for state != StateDone {
		logger.Debugf("[Pipeline] run %d entering %s", runID, state)

		var err error
		switch state {
		case StateFetchDiff:
			err = p.fetchDiff(ctx, runID, st)
			state = StateSummarize
		case StateSummarize:
			err = p.generateSummary(ctx, st)
			state = StateReview
		case StateReview:
			if st.batch {
				err = p.reviewBatch(ctx, st)
				state = StateAggregate
			} else {
				err = p.reviewFile(ctx, st)
				if err == nil {
					st.fileIndex++
					state = nextReviewState(st.fileIndex, st.run.TotalFiles)
				}
			}
		case StateAggregate:
			err = p.aggregate(st)
			state = StatePublish
		case StatePublish:
			err = p.publish(ctx, st)
			state = StateDone
		}

		if err != nil {
			p.fail(runID, st, err)
			return err
		}
	}

	logger.Infof("[Pipeline] run %d completed: %d files, critical=%d normal=%d suggestion=%d",
		runID, st.run.ReviewedFiles, st.critical, st.normal, st.suggestion)
	return nil
}

// nextReviewState is a pure function of the loop index and the total file
// count, so the continuation decision carries no hidden state.
func nextReviewState(index, total int) State {
	if index < total {
		return StateReview
	}
	return StateAggregate
}

func (p *Pipeline) fetchDiff(ctx context.Context, runID uint, st *runState) error {
	var run models.ReviewRun
	if err := p.db.Preload("Repository").First(&run, runID).Error; err != nil {
		return fmt.Errorf("load run %d: %w", runID, err)
	}
	if run.Repository == nil {
		return fmt.Errorf("run %d has no repository", runID)
	}
	st.run = &run
	st.repo = run.Repository

	run.Status = models.RunStatusPending
	run.StartedAt = time.Now()

	spec, err := p.resolveModelSpec(st.repo)
	if err != nil {
		return err
	}
	st.spec = spec
	st.system = EffectiveSystemPrompt(st.repo)

	var diffs []vcs.ChangeDiff
	if run.EventType == models.EventMergeRequest {
		meta, err := p.vcs.GetChangeMetadata(ctx, run.MRNumber)
		if err != nil {
			return fmt.Errorf("fetch MR !%d metadata: %w", run.MRNumber, err)
		}
		st.meta = meta
		if run.Title == "" {
			run.Title = meta.Title
		}
		if run.Description == "" {
			run.Description = meta.Description
		}
		if run.SourceBranch == "" {
			run.SourceBranch = meta.SourceBranch
		}
		if run.TargetBranch == "" {
			run.TargetBranch = meta.TargetBranch
		}
		if run.CommitSHA == "" {
			run.CommitSHA = meta.SHA
			run.ShortSHA = shortSHA(meta.SHA)
		}

		diffs, err = p.vcs.GetFullDiff(ctx, run.MRNumber)
		if err != nil {
			return fmt.Errorf("fetch MR !%d diff: %w", run.MRNumber, err)
		}
	} else {
		if run.CommitSHA == "" {
			return errors.New("push run has no commit SHA")
		}
		diffs, err = p.vcs.GetCommitDiff(ctx, run.CommitSHA)
		if err != nil {
			return fmt.Errorf("fetch commit %s diff: %w", run.ShortSHA, err)
		}
	}

	for _, d := range diffs {
		if d.DeletedFile {
			continue
		}
		st.diffs = append(st.diffs, d)
	}
	if len(st.diffs) == 0 {
		return errors.New("change contains no reviewable files")
	}

	run.TotalFiles = len(st.diffs)
	run.ReviewedFiles = 0
	st.batch = run.TotalFiles > p.opts.BatchThreshold

	p.ensurePlaceholder(ctx, st)

	return p.db.Save(&run).Error
}

// ensurePlaceholder posts the in-progress comment for merge request runs
// so the final publish can update it in place. Best effort: failure here
// only means publish will create the comment instead.
func (p *Pipeline) ensurePlaceholder(ctx context.Context, st *runState) {
	run := st.run
	if run.EventType != models.EventMergeRequest || run.PlaceholderDiscussionID != "" {
		return
	}
	ref, err := p.vcs.CreateDiscussion(ctx, run.MRNumber, PlaceholderBody, nil, nil)
	if err != nil {
		logger.Warnf("[Pipeline] run %d: placeholder creation failed: %v", run.ID, err)
		return
	}
	run.PlaceholderDiscussionID = ref.DiscussionID
	run.PlaceholderNoteID = ref.NoteID
}

// resolveModelSpec picks the effective model: the repository's explicit
// override, then the default config row, then any active row, then the
// file-level fallback.
func (p *Pipeline) resolveModelSpec(repo *models.Repository) (llm.ModelSpec, error) {
	var mc models.ModelConfig

	if repo.ModelConfigID != nil {
		err := p.db.Where("id = ? AND is_active = ?", *repo.ModelConfigID, true).First(&mc).Error
		if err == nil {
			return specFromModelConfig(&mc), nil
		}
		logger.Warnf("[Pipeline] repository %d: model config %d unavailable, falling back", repo.ID, *repo.ModelConfigID)
	}

	if err := p.db.Where("is_default = ? AND is_active = ?", true, true).First(&mc).Error; err == nil {
		return specFromModelConfig(&mc), nil
	}
	if err := p.db.Where("is_active = ?", true).Order("id").First(&mc).Error; err == nil {
		return specFromModelConfig(&mc), nil
	}

	fb := p.opts.FallbackModel
	if fb.Model == "" {
		return llm.ModelSpec{}, errors.New("no model configured")
	}
	return fb, nil
}

func specFromModelConfig(mc *models.ModelConfig) llm.ModelSpec {
	return llm.ModelSpec{
		Provider:    mc.Provider,
		BaseURL:     mc.BaseURL,
		APIKey:      mc.APIKey,
		Model:       mc.Model,
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
	}
}

func (p *Pipeline) generateSummary(ctx context.Context, st *runState) error {
	user := BuildSummaryPrompt(st.run.Title, st.run.Description, st.diffs)
	text, err := p.model.Invoke(ctx, summarySystemPrompt, user, st.spec)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	st.run.Summary = strings.TrimSpace(text)
	// Persisted immediately so the synopsis survives later stage failures.
	return p.db.Model(st.run).Update("summary", st.run.Summary).Error
}

func (p *Pipeline) reviewFile(ctx context.Context, st *runState) error {
	d := st.diffs[st.fileIndex]
	path := d.Path()

	user := BuildFilePrompt(st.run.Title, st.run.Summary, d)
	text, err := p.model.Invoke(ctx, st.system, user, st.spec)
	if err != nil {
		return fmt.Errorf("review %s: %w", path, err)
	}

	st.prompts[path] = user
	st.responses[path] = text
	st.accumulate(ParseFindings(text, path, p.opts.CriticalCap), path)

	st.run.ReviewedFiles++
	return p.db.Model(st.run).Update("reviewed_files", st.run.ReviewedFiles).Error
}

func (p *Pipeline) reviewBatch(ctx context.Context, st *runState) error {
	user := BuildBatchPrompt(st.run.Title, st.run.Summary, st.diffs)
	text, err := p.model.Invoke(ctx, st.system, user, st.spec)
	if err != nil {
		return fmt.Errorf("batch review: %w", err)
	}

	st.prompts[models.BatchReviewKey] = user
	st.responses[models.BatchReviewKey] = text
	st.batchText = text
	st.accumulate(ParseFindings(text, "", p.opts.CriticalCap), "")

	st.run.ReviewedFiles = st.run.TotalFiles
	return p.db.Model(st.run).Update("reviewed_files", st.run.ReviewedFiles).Error
}

func (st *runState) accumulate(res ParseResult, path string) {
	if res.Critical+res.Normal+res.Suggestion == 0 && len(res.Items) == 0 {
		logger.Warnf("[Pipeline] run %d: no recognizable findings in response for %q", st.run.ID, path)
	}
	st.critical += res.Critical
	st.normal += res.Normal
	st.suggestion += res.Suggestion
	st.items = append(st.items, res.Items...)
}

func (p *Pipeline) aggregate(st *runState) error {
	run := st.run
	run.CriticalIssues = st.critical
	run.NormalIssues = st.normal
	run.Suggestions = st.suggestion
	run.ModelProvider = llm.ResolveProvider(st.spec)
	run.ModelName = st.spec.Model
	run.SetPromptMap(st.prompts)
	run.SetResponseMap(st.responses)

	now := time.Now()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now

	if err := p.db.Save(run).Error; err != nil {
		return fmt.Errorf("persist aggregate: %w", err)
	}

	items := st.items
	if len(items) > p.opts.CriticalCap {
		items = items[:p.opts.CriticalCap]
	}
	for _, item := range items {
		st.findings = append(st.findings, models.Finding{
			ReviewRunID: run.ID,
			FilePath:    item.FilePath,
			StartLine:   item.Line,
			EndLine:     item.LineEnd,
			Severity:    models.SeverityCritical,
			Content:     item.Content,
			DiffHunk:    st.diffFor(item.FilePath),
		})
	}
	if len(st.findings) > 0 {
		if err := p.db.Create(&st.findings).Error; err != nil {
			return fmt.Errorf("persist findings: %w", err)
		}
	}
	return nil
}

func (st *runState) diffFor(path string) string {
	for _, d := range st.diffs {
		if d.Path() == path {
			return d.Diff
		}
	}
	return ""
}

func (p *Pipeline) publish(ctx context.Context, st *runState) error {
	run := st.run
	body := FormatComment(CommentData{
		Run:       run,
		RepoURL:   strings.TrimSuffix(st.repo.URL, ".git"),
		Findings:  st.findings,
		BatchText: st.batchText,
	})

	commentID := ""
	if run.EventType == models.EventMergeRequest {
		if run.PlaceholderDiscussionID != "" {
			ref := vcs.CommentRef{DiscussionID: run.PlaceholderDiscussionID, NoteID: run.PlaceholderNoteID}
			if err := p.vcs.UpdateDiscussionNote(ctx, run.MRNumber, ref, body); err != nil {
				return fmt.Errorf("update review comment: %w", err)
			}
			commentID = run.PlaceholderDiscussionID
		} else {
			ref, err := p.vcs.CreateDiscussion(ctx, run.MRNumber, body, nil, nil)
			if err != nil {
				return fmt.Errorf("post review comment: %w", err)
			}
			run.PlaceholderDiscussionID = ref.DiscussionID
			run.PlaceholderNoteID = ref.NoteID
			commentID = ref.DiscussionID
			if err := p.db.Model(run).Updates(map[string]interface{}{
				"placeholder_discussion_id": run.PlaceholderDiscussionID,
				"placeholder_note_id":       run.PlaceholderNoteID,
			}).Error; err != nil {
				return err
			}
		}
	} else {
		if _, err := p.vcs.CreateCommitComment(ctx, run.CommitSHA, body); err != nil {
			return fmt.Errorf("post commit comment: %w", err)
		}
	}

	if len(st.findings) > 0 {
		if err := p.db.Model(&models.Finding{}).
			Where("review_run_id = ? AND posted = ?", run.ID, false).
			Updates(map[string]interface{}{"posted": true, "comment_id": commentID}).Error; err != nil {
			return fmt.Errorf("mark findings posted: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) fail(runID uint, st *runState, cause error) {
	logger.Errorf("[Pipeline] run %d failed: %v", runID, cause)

	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.RunStatusFailed,
		"error_message": cause.Error(),
		"completed_at":  now,
	}
	if err := p.db.Model(&models.ReviewRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		logger.Errorf("[Pipeline] run %d: persisting failure state also failed: %v", runID, err)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
