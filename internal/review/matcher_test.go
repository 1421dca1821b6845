package review

import "testing"

func TestMatchesBranch(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		pattern string
		want    bool
	}{
		{"empty pattern matches all", "feature/login", "", true},
		{"whitespace pattern matches all", "main", "   ", true},
		{"single star matches all", "anything", "*", true},
		{"exact match", "main", "main", true},
		{"exact mismatch", "develop", "main", false},
		{"prefix glob", "release/1.2", "release/*", true},
		{"prefix glob mismatch", "hotfix/1.2", "release/*", false},
		{"suffix glob", "foo-stable", "*-stable", true},
		{"middle glob", "feat-123-login", "feat-*-login", true},
		{"anchored, not substring", "prefix-main-suffix", "main", false},
		{"star matches zero chars", "release/", "release/*", true},
		{"comma OR second wins", "develop", "main,develop", true},
		{"comma OR with globs", "feature/x", "main,release/*,feature/*", true},
		{"comma OR no match", "junk", "main,release/*", false},
		{"spaces around sub-patterns", "develop", " main , develop ", true},
		{"regex metachars treated literally", "a.b", "a.b", true},
		{"regex metachars do not wildcard", "axb", "a.b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesBranch(tt.branch, tt.pattern); got != tt.want {
				t.Errorf("MatchesBranch(%q, %q) = %v, want %v", tt.branch, tt.pattern, got, tt.want)
			}
		})
	}
}
