package review

import "testing"

func TestParseFindingsStatisticsLine(t *testing.T) {
	text := `The change looks mostly fine.

statistics: critical=2 normal=3 suggestion=1

src/auth/login.go:42 token comparison is not constant time
src/auth/login.go:57-60 session id generated from math/rand
`
	res := ParseFindings(text, "src/auth/login.go", 5)

	if res.Critical != 2 || res.Normal != 3 || res.Suggestion != 1 {
		t.Fatalf("counts = %d/%d/%d, want 2/3/1", res.Critical, res.Normal, res.Suggestion)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(res.Items))
	}
	if res.Items[0].FilePath != "src/auth/login.go" || res.Items[0].Line != 42 || res.Items[0].LineEnd != 0 {
		t.Errorf("first item = %+v", res.Items[0])
	}
	if res.Items[1].Line != 57 || res.Items[1].LineEnd != 60 {
		t.Errorf("second item range = %d-%d, want 57-60", res.Items[1].Line, res.Items[1].LineEnd)
	}
}

func TestParseFindingsCountsVerbatimDespiteNoise(t *testing.T) {
	text := "noise before\nStatistics: critical=0, normal=1, suggestion=0\nnoise after 12: something"
	res := ParseFindings(text, "a.go", 5)
	if res.Critical != 0 || res.Normal != 1 || res.Suggestion != 0 {
		t.Fatalf("counts = %d/%d/%d, want 0/1/0", res.Critical, res.Normal, res.Suggestion)
	}
}

func TestParseFindingsChineseLabels(t *testing.T) {
	res := ParseFindings("统计：严重问题=1，一般问题=2，建议=3", "a.go", 5)
	if res.Critical != 1 || res.Normal != 2 || res.Suggestion != 3 {
		t.Fatalf("counts = %d/%d/%d, want 1/2/3", res.Critical, res.Normal, res.Suggestion)
	}
}

func TestParseFindingsItemCap(t *testing.T) {
	text := `statistics: critical=4 normal=0 suggestion=0
a.go:1 first
a.go:2 second
a.go:3 third
a.go:4 fourth
`
	res := ParseFindings(text, "a.go", 2)
	if len(res.Items) != 2 {
		t.Fatalf("items = %d, want cap of 2", len(res.Items))
	}
	if res.Critical != 4 {
		t.Errorf("critical count = %d, want 4 (cap bounds items, not counts)", res.Critical)
	}
}

func TestParseFindingsLegacyFallback(t *testing.T) {
	text := `Review of the change:

12: [critical] possible null dereference
30: variable shadowing makes this hard to follow
45: consider extracting this into a helper
`
	res := ParseFindings(text, "pkg/store/cache.go", 5)

	if res.Critical != 1 || res.Normal != 1 || res.Suggestion != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/1", res.Critical, res.Normal, res.Suggestion)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(res.Items))
	}
	item := res.Items[0]
	if item.FilePath != "pkg/store/cache.go" || item.Line != 12 {
		t.Errorf("item = %+v, want default path at line 12", item)
	}
}

func TestParseFindingsLegacyFileHeading(t *testing.T) {
	text := `internal/api/server.go
10: [critical] handler writes after response committed

internal/api/router.go
22: [suggestion] route names could be constants
`
	res := ParseFindings(text, "", 5)
	if res.Critical != 1 || res.Suggestion != 1 {
		t.Fatalf("counts = %d/%d/%d", res.Critical, res.Normal, res.Suggestion)
	}
	if len(res.Items) != 1 || res.Items[0].FilePath != "internal/api/server.go" {
		t.Fatalf("items = %+v, want heading path applied", res.Items)
	}
}

func TestParseFindingsLegacyKeywordHeuristics(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"sql injection via string concatenation", "critical"},
		{"goroutine leak when ctx is never cancelled", "critical"},
		{"you might want to rename this", "suggestion"},
		{"this loop recomputes the key every pass", "normal"},
		{"[建议] 可以使用 errors.Join", "suggestion"},
	}
	for _, tt := range tests {
		if got := inferSeverity(tt.content); got != tt.want {
			t.Errorf("inferSeverity(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestParseFindingsZeroStatsTriggersFallback(t *testing.T) {
	text := `statistics: critical=0 normal=0 suggestion=0
15: [critical] password logged in plain text
`
	res := ParseFindings(text, "auth.go", 5)
	if res.Critical != 1 {
		t.Fatalf("critical = %d, want fallback to pick up the tagged line", res.Critical)
	}
}

func TestParseFindingsUnparseableInput(t *testing.T) {
	res := ParseFindings("the model rambled about nothing useful here", "a.go", 5)
	if res.Critical != 0 || res.Normal != 0 || res.Suggestion != 0 || len(res.Items) != 0 {
		t.Fatalf("want all-zero result, got %+v", res)
	}
}
