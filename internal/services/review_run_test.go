package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/pkg/response"
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
		&models.User{}, &models.Repository{}, &models.ModelConfig{},
		&models.ReviewRun{}, &models.Finding{}, &models.SystemConfig{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCompletedRun(t *testing.T, db *gorm.DB) *models.ReviewRun {
	t.Helper()
	repo := &models.Repository{Name: "app", URL: "https://g.example.com/g/app", GitLabProjectID: 1, Active: true}
	if err := db.Create(repo).Error; err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	run := &models.ReviewRun{
		RepositoryID: repo.ID,
		EventType:    models.EventMergeRequest,
		MRNumber:     3,
		Status:       models.RunStatusCompleted,
		TotalFiles:   2, ReviewedFiles: 2,
		CriticalIssues: 1, NormalIssues: 2,
		Summary:                 "done",
		PlaceholderDiscussionID: "disc1",
		PlaceholderNoteID:       10,
		CompletedAt:             &now,
	}
	if err := db.Create(run).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Finding{
		ReviewRunID: run.ID, FilePath: "a.go", StartLine: 5,
		Severity: models.SeverityCritical, Content: "bad",
	}).Error; err != nil {
		t.Fatal(err)
	}
	return run
}

func TestReviewRunResetClearsDerivedState(t *testing.T) {
	db := setupTestDB(t)
	run := seedCompletedRun(t, db)
	svc := NewReviewRunService(db)

	reset, err := svc.Reset(run.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if reset.Status != models.RunStatusPending {
		t.Errorf("status = %q, want pending", reset.Status)
	}

	var got models.ReviewRun
	db.First(&got, run.ID)
	if got.TotalFiles != 0 || got.CriticalIssues != 0 || got.Summary != "" || got.ErrorMessage != "" {
		t.Errorf("derived fields not cleared: %+v", got)
	}
	if got.PlaceholderDiscussionID != "disc1" || got.PlaceholderNoteID != 10 {
		t.Error("placeholder reference must survive a reset")
	}
	if got.CompletedAt != nil {
		t.Error("completed_at not cleared")
	}

	var findings int64
	db.Model(&models.Finding{}).Where("review_run_id = ?", run.ID).Count(&findings)
	if findings != 0 {
		t.Errorf("findings = %d, want deleted on reset", findings)
	}
}

func TestReviewRunResetRejectsPending(t *testing.T) {
	db := setupTestDB(t)
	run := seedCompletedRun(t, db)
	db.Model(&models.ReviewRun{}).Where("id = ?", run.ID).Update("status", models.RunStatusPending)

	_, err := NewReviewRunService(db).Reset(run.ID)
	var appErr *response.AppError
	if !errors.As(err, &appErr) || appErr.HTTPStatus != 409 {
		t.Fatalf("want conflict for pending run, got %v", err)
	}
}

func TestReviewRunListFilters(t *testing.T) {
	db := setupTestDB(t)
	run := seedCompletedRun(t, db)
	db.Create(&models.ReviewRun{
		RepositoryID: run.RepositoryID, EventType: models.EventPush,
		CommitSHA: "fff", Status: models.RunStatusFailed,
	})

	svc := NewReviewRunService(db)

	all, total, err := svc.List(ReviewRunListParams{})
	if err != nil || total != 2 || len(all) != 2 {
		t.Fatalf("List all = %d/%d, %v", len(all), total, err)
	}
	if all[0].Repository == nil {
		t.Error("repository not preloaded")
	}

	failed, total, err := svc.List(ReviewRunListParams{Status: models.RunStatusFailed})
	if err != nil || total != 1 || failed[0].EventType != models.EventPush {
		t.Fatalf("status filter broken: %d, %v", total, err)
	}
}

func TestMarkStaleFailed(t *testing.T) {
	db := setupTestDB(t)
	run := seedCompletedRun(t, db)
	db.Model(&models.ReviewRun{}).Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":     models.RunStatusPending,
			"created_at": time.Now().Add(-2 * time.Hour),
		})

	n, err := NewReviewRunService(db).MarkStaleFailed(30)
	if err != nil || n != 1 {
		t.Fatalf("MarkStaleFailed = %d, %v", n, err)
	}

	var got models.ReviewRun
	db.First(&got, run.ID)
	if got.Status != models.RunStatusFailed || got.ErrorMessage == "" {
		t.Errorf("stale run not failed: %+v", got)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	db := setupTestDB(t)
	run := seedCompletedRun(t, db)
	db.Model(&models.ReviewRun{}).Where("id = ?", run.ID).
		Update("created_at", time.Now().AddDate(0, 0, -120))

	n, err := NewReviewRunService(db).CleanupOlderThan(90)
	if err != nil || n != 1 {
		t.Fatalf("CleanupOlderThan = %d, %v", n, err)
	}

	var findings int64
	db.Model(&models.Finding{}).Count(&findings)
	if findings != 0 {
		t.Error("orphaned findings left behind")
	}
}
