package services

import "testing"

func TestSystemConfigGetInt(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSystemConfigService(db)

	if got := svc.GetInt("review.batch_threshold", 20); got != 20 {
		t.Errorf("missing key should yield fallback, got %d", got)
	}

	if err := svc.Set("review.batch_threshold", "30"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := svc.GetInt("review.batch_threshold", 20); got != 30 {
		t.Errorf("GetInt = %d, want 30", got)
	}

	if err := svc.Set("review.batch_threshold", "15"); err != nil {
		t.Fatalf("Set upsert: %v", err)
	}
	if got := svc.GetInt("review.batch_threshold", 20); got != 15 {
		t.Errorf("upsert value = %d, want 15", got)
	}

	svc.Set("bad", "not-a-number")
	if got := svc.GetInt("bad", 7); got != 7 {
		t.Errorf("unparseable value should yield fallback, got %d", got)
	}
}
