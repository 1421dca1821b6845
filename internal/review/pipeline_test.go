package review

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mergewise/mergewise/internal/llm"
	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/vcs"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Repository{}, &models.ModelConfig{},
		&models.ReviewRun{}, &models.Finding{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRepoAndRun(t *testing.T, db *gorm.DB, mrNumber int) (*models.Repository, *models.ReviewRun) {
	t.Helper()
	repo := &models.Repository{
		Name:            "app",
		URL:             "https://gitlab.example.com/group/app",
		GitLabProjectID: 42,
		Active:          true,
		AutoReview:      true,
	}
	if err := db.Create(repo).Error; err != nil {
		t.Fatalf("seed repo: %v", err)
	}
	mc := &models.ModelConfig{
		Name: "default", Provider: "openai", Model: "gpt-4o",
		APIKey: "k", IsDefault: true, IsActive: true,
	}
	if err := db.Create(mc).Error; err != nil {
		t.Fatalf("seed model config: %v", err)
	}

	run := &models.ReviewRun{
		RepositoryID: repo.ID,
		EventType:    models.EventMergeRequest,
		MRNumber:     mrNumber,
		Status:       models.RunStatusPending,
		Title:        "Add login",
	}
	if mrNumber == 0 {
		run.EventType = models.EventPush
		run.CommitSHA = "abc123def4567890"
		run.ShortSHA = "abc123de"
	}
	if err := db.Create(run).Error; err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return repo, run
}

// fakeVCS records calls and serves canned diffs.
type fakeVCS struct {
	diffs []vcs.ChangeDiff

	createDiscussions int
	updateNotes       int
	commitComments    int
	lastBody          string
}

func (f *fakeVCS) GetChangeMetadata(ctx context.Context, mrIID int) (*vcs.ChangeMetadata, error) {
	return &vcs.ChangeMetadata{
		Title: "Add login", SourceBranch: "feature/login", TargetBranch: "main",
		SHA: "abc123def4567890",
	}, nil
}

func (f *fakeVCS) GetFullDiff(ctx context.Context, mrIID int) ([]vcs.ChangeDiff, error) {
	return f.diffs, nil
}

func (f *fakeVCS) GetCommitDiff(ctx context.Context, sha string) ([]vcs.ChangeDiff, error) {
	return f.diffs, nil
}

func (f *fakeVCS) CreateDiscussion(ctx context.Context, mrIID int, body string, pos *vcs.Position, refs *vcs.DiffRefs) (*vcs.CommentRef, error) {
	f.createDiscussions++
	f.lastBody = body
	return &vcs.CommentRef{DiscussionID: fmt.Sprintf("disc%d", f.createDiscussions), NoteID: 100 + f.createDiscussions}, nil
}

func (f *fakeVCS) UpdateDiscussionNote(ctx context.Context, mrIID int, ref vcs.CommentRef, body string) error {
	f.updateNotes++
	f.lastBody = body
	return nil
}

func (f *fakeVCS) CreateCommitComment(ctx context.Context, sha, body string) (*vcs.CommentRef, error) {
	f.commitComments++
	f.lastBody = body
	return &vcs.CommentRef{}, nil
}

func (f *fakeVCS) UpdateCommitComment(ctx context.Context, sha string, ref vcs.CommentRef, body string) (*vcs.CommentRef, error) {
	return f.CreateCommitComment(ctx, sha, body)
}

// fakeInvoker returns the summary response for the first call and the
// review response for every later call.
type fakeInvoker struct {
	summary  string
	review   string
	calls    int
	lastSpec llm.ModelSpec
}

func (f *fakeInvoker) Invoke(ctx context.Context, system, user string, spec llm.ModelSpec) (string, error) {
	f.calls++
	f.lastSpec = spec
	if f.calls == 1 {
		return f.summary, nil
	}
	return f.review, nil
}

func nDiffs(n int) []vcs.ChangeDiff {
	diffs := make([]vcs.ChangeDiff, n)
	for i := range diffs {
		diffs[i] = vcs.ChangeDiff{
			NewPath: fmt.Sprintf("pkg/file%d.go", i),
			Diff:    "@@ -1 +1 @@\n-old\n+new",
		}
	}
	return diffs
}

func TestPipelinePerFileRun(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)

	fv := &fakeVCS{diffs: nDiffs(3)}
	fi := &fakeInvoker{
		summary: "Reworks the login flow.",
		review:  "statistics: critical=0 normal=1 suggestion=0",
	}
	p := NewPipeline(db, fv, fi, Options{})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var got models.ReviewRun
	if err := db.First(&got, run.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Fatalf("status = %q, want completed (err=%q)", got.Status, got.ErrorMessage)
	}
	if got.TotalFiles != 3 || got.ReviewedFiles != 3 {
		t.Errorf("files = %d/%d, want 3/3", got.ReviewedFiles, got.TotalFiles)
	}
	if got.NormalIssues != 3 || got.CriticalIssues != 0 || got.Suggestions != 0 {
		t.Errorf("counts = %d/%d/%d, want 0 critical, 3 normal, 0 suggestions",
			got.CriticalIssues, got.NormalIssues, got.Suggestions)
	}
	if fi.calls != 4 {
		t.Errorf("model calls = %d, want 1 summary + 3 reviews", fi.calls)
	}
	if got.Summary != "Reworks the login flow." {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.ModelProvider != "openai" || got.ModelName != "gpt-4o" {
		t.Errorf("model identity = %s/%s", got.ModelProvider, got.ModelName)
	}
	if len(got.ResponseMap()) != 3 {
		t.Errorf("response map has %d entries, want 3", len(got.ResponseMap()))
	}

	// placeholder created once at start, updated once at publish
	if fv.createDiscussions != 1 || fv.updateNotes != 1 {
		t.Errorf("discussions: create=%d update=%d, want 1/1", fv.createDiscussions, fv.updateNotes)
	}
	if got.PlaceholderDiscussionID == "" {
		t.Error("placeholder reference not stored")
	}
}

func TestPipelineBatchMode(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)

	fv := &fakeVCS{diffs: nDiffs(25)}
	fi := &fakeInvoker{
		summary: "Large refactor.",
		review:  "statistics: critical=1 normal=2 suggestion=0\npkg/file3.go:10 unchecked error",
	}
	p := NewPipeline(db, fv, fi, Options{BatchThreshold: 20})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fi.calls != 2 {
		t.Fatalf("model calls = %d, want summary + single batch call", fi.calls)
	}

	var got models.ReviewRun
	db.First(&got, run.ID)
	if got.ReviewedFiles != 25 || got.TotalFiles != 25 {
		t.Errorf("files = %d/%d, want 25/25", got.ReviewedFiles, got.TotalFiles)
	}
	if _, ok := got.ResponseMap()[models.BatchReviewKey]; !ok {
		t.Error("batch response not recorded under the batch key")
	}
	if !strings.Contains(fv.lastBody, "unchecked error") {
		t.Error("published body should embed the batch findings text")
	}
}

func TestPipelineRepublishUpdatesInPlace(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)

	fv := &fakeVCS{diffs: nDiffs(2)}
	fi := &fakeInvoker{summary: "s", review: "statistics: critical=0 normal=0 suggestion=1"}
	p := NewPipeline(db, fv, fi, Options{})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	// simulated retry: the stored placeholder must be reused, not recreated
	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if fv.createDiscussions != 1 {
		t.Errorf("create called %d times, want at most 1 per run", fv.createDiscussions)
	}
	if fv.updateNotes != 2 {
		t.Errorf("update called %d times, want 2", fv.updateNotes)
	}
}

func TestPipelineCriticalFindingsCap(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)

	var sb strings.Builder
	sb.WriteString("statistics: critical=8 normal=0 suggestion=0\n")
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&sb, "pkg/file0.go:%d issue %d\n", i, i)
	}

	fv := &fakeVCS{diffs: nDiffs(1)}
	fi := &fakeInvoker{summary: "s", review: sb.String()}
	p := NewPipeline(db, fv, fi, Options{CriticalCap: 5})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var count int64
	db.Model(&models.Finding{}).Where("review_run_id = ?", run.ID).Count(&count)
	if count > 5 {
		t.Errorf("persisted %d findings, cap is 5", count)
	}

	var got models.ReviewRun
	db.First(&got, run.ID)
	if got.CriticalIssues != 8 {
		t.Errorf("critical count = %d, want 8 (cap bounds findings, not counts)", got.CriticalIssues)
	}

	var posted int64
	db.Model(&models.Finding{}).Where("review_run_id = ? AND posted = ?", run.ID, true).Count(&posted)
	if posted != count {
		t.Errorf("posted = %d of %d findings", posted, count)
	}
}

func TestPipelinePushRunUsesCommitComment(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 0)

	fv := &fakeVCS{diffs: nDiffs(1)}
	fi := &fakeInvoker{summary: "s", review: "statistics: critical=0 normal=1 suggestion=0"}
	p := NewPipeline(db, fv, fi, Options{})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if fv.commitComments != 1 {
		t.Errorf("commit comments = %d, want 1", fv.commitComments)
	}
	if fv.createDiscussions != 0 {
		t.Error("push run must not open merge request discussions")
	}
}

func TestPipelineZeroFilesFails(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)

	fv := &fakeVCS{diffs: []vcs.ChangeDiff{{NewPath: "gone.go", DeletedFile: true}}}
	fi := &fakeInvoker{}
	p := NewPipeline(db, fv, fi, Options{})

	if err := p.Execute(context.Background(), run.ID); err == nil {
		t.Fatal("want error for change with no reviewable files")
	}

	var got models.ReviewRun
	db.First(&got, run.ID)
	if got.Status != models.RunStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Error("error message not persisted")
	}
	if fi.calls != 0 {
		t.Error("no model call should happen for an empty change")
	}
}

func TestPipelineRepositoryModelOverride(t *testing.T) {
	db := setupTestDB(t)
	repo, run := seedRepoAndRun(t, db, 7)

	override := &models.ModelConfig{
		Name: "claude", Provider: "anthropic", Model: "claude-sonnet-4-5",
		APIKey: "k2", IsActive: true,
	}
	if err := db.Create(override).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(repo).Update("model_config_id", override.ID).Error; err != nil {
		t.Fatal(err)
	}

	fv := &fakeVCS{diffs: nDiffs(1)}
	fi := &fakeInvoker{summary: "s", review: "statistics: critical=0 normal=0 suggestion=0"}
	p := NewPipeline(db, fv, fi, Options{})

	if err := p.Execute(context.Background(), run.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fi.lastSpec.Model != "claude-sonnet-4-5" || fi.lastSpec.Provider != "anthropic" {
		t.Errorf("spec = %s/%s, want the repository override", fi.lastSpec.Provider, fi.lastSpec.Model)
	}
}

func TestPipelineNoModelConfigured(t *testing.T) {
	db := setupTestDB(t)
	_, run := seedRepoAndRun(t, db, 7)
	db.Where("1 = 1").Delete(&models.ModelConfig{})

	fv := &fakeVCS{diffs: nDiffs(1)}
	p := NewPipeline(db, fv, &fakeInvoker{}, Options{})

	if err := p.Execute(context.Background(), run.ID); err == nil {
		t.Fatal("want error when no model is configured anywhere")
	}
}

func TestNextReviewState(t *testing.T) {
	if nextReviewState(1, 3) != StateReview {
		t.Error("mid-loop index should continue reviewing")
	}
	if nextReviewState(3, 3) != StateAggregate {
		t.Error("exhausted index should aggregate")
	}
}
