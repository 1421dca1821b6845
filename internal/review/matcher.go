package review

import (
	"regexp"
	"strings"
)

// MatchesBranch reports whether a branch name matches a watch-pattern
// list. The pattern is a comma-separated set of globs where `*` matches
// zero or more characters, anchored to the full name. An empty pattern
// matches everything; any single sub-pattern matching is sufficient.
// Malformed patterns degrade to literal comparison instead of failing.
func MatchesBranch(branch, pattern string) bool {
	if strings.TrimSpace(pattern) == "" {
		return true
	}

	for _, sub := range strings.Split(pattern, ",") {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}
		if matchGlob(branch, sub) {
			return true
		}
	}
	return false
}

func matchGlob(name, glob string) bool {
	if !strings.Contains(glob, "*") {
		return name == glob
	}

	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(glob, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return name == glob
	}
	return re.MatchString(name)
}
