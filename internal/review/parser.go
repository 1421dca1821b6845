package review

import (
	"regexp"
	"strconv"
	"strings"
)

// CriticalItem is one critical finding extracted from model output.
type CriticalItem struct {
	FilePath string
	Line     int
	LineEnd  int // 0 when the finding covers a single line
	Content  string
}

// ParseResult holds the severity counts and the ordered critical items
// extracted from one model response.
type ParseResult struct {
	Critical   int
	Normal     int
	Suggestion int
	Items      []CriticalItem
}

var (
	// statistics: critical=2 normal=1 suggestion=3 (labels may be Chinese)
	statsRe = regexp.MustCompile(`(?i)(?:statistics|统计)\s*[:：]\s*(?:critical|严重问题|严重)\s*=\s*(\d+)\s*[,，;；]?\s*(?:normal|一般问题|一般)\s*=\s*(\d+)\s*[,，;；]?\s*(?:suggestions?|建议)\s*=\s*(\d+)`)

	// src/auth/login.go:42-48 token never expires
	criticalItemRe = regexp.MustCompile(`^\s*(?:[-*]\s*)?([^\s:]*[A-Za-z_][^\s:]*):(\d+)(?:-(\d+))?\s+(\S.*)$`)

	// 42: [critical] possible nil dereference  (legacy dialect)
	legacyLineRe = regexp.MustCompile(`^\s*(?:[-*]\s*)?(?:[Ll]ine\s*|第\s*)?(\d+)(?:\s*[-~]\s*(\d+))?\s*(?:行)?\s*[:：]\s*(\S.*)$`)

	// a bare file path on its own line sets the path for following items
	legacyFileRe = regexp.MustCompile(`^\s*(?:#+\s*)?(?:[Ff]ile|文件)?\s*[:：]?\s*([\w./\-]*[A-Za-z_][\w./\-]*\.[A-Za-z][A-Za-z0-9]*)\s*[:：]?\s*$`)
)

// ParseFindings extracts severity counts and critical items from a model
// response. It first looks for the strict statistics line, then scans for
// path:line critical entries up to maxItems; when no usable statistics
// line exists it falls back to the legacy per-line dialect with bracketed
// severity tags or keyword heuristics. It never fails: unparseable input
// yields zero counts and no items.
func ParseFindings(text, defaultPath string, maxItems int) ParseResult {
	if maxItems <= 0 {
		maxItems = 5
	}

	lines := strings.Split(text, "\n")
	var res ParseResult

	statsFound := false
	for _, line := range lines {
		if m := statsRe.FindStringSubmatch(line); m != nil {
			res.Critical, _ = strconv.Atoi(m[1])
			res.Normal, _ = strconv.Atoi(m[2])
			res.Suggestion, _ = strconv.Atoi(m[3])
			statsFound = true
			break
		}
	}

	for _, line := range lines {
		if len(res.Items) >= maxItems {
			break
		}
		if statsRe.MatchString(line) {
			continue
		}
		m := criticalItemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := CriticalItem{
			FilePath: m[1],
			Content:  strings.TrimSpace(m[4]),
		}
		item.Line, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			item.LineEnd, _ = strconv.Atoi(m[3])
		}
		res.Items = append(res.Items, item)
	}

	if statsFound && res.Critical+res.Normal+res.Suggestion > 0 {
		return res
	}

	parseLegacy(lines, defaultPath, maxItems, &res)
	return res
}

// parseLegacy scans the legacy dialect: numbered lines with bracketed
// severity tags, optionally grouped under bare file-path heading lines.
func parseLegacy(lines []string, defaultPath string, maxItems int, res *ParseResult) {
	currentPath := defaultPath
	for _, line := range lines {
		if m := legacyFileRe.FindStringSubmatch(line); m != nil {
			currentPath = m[1]
			continue
		}
		m := legacyLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		content := strings.TrimSpace(m[3])
		severity := inferSeverity(content)
		switch severity {
		case "critical":
			res.Critical++
			if len(res.Items) < maxItems {
				item := CriticalItem{FilePath: currentPath, Content: content}
				item.Line, _ = strconv.Atoi(m[1])
				if m[2] != "" {
					item.LineEnd, _ = strconv.Atoi(m[2])
				}
				res.Items = append(res.Items, item)
			}
		case "suggestion":
			res.Suggestion++
		default:
			res.Normal++
		}
	}
}

var (
	criticalTags   = []string{"[critical]", "[severe]", "[blocker]", "[high]", "[严重]", "【严重】"}
	normalTags     = []string{"[normal]", "[medium]", "[一般]", "【一般】"}
	suggestionTags = []string{"[suggestion]", "[minor]", "[low]", "[style]", "[nit]", "[建议]", "【建议】"}

	criticalWords = []string{
		"security", "vulnerab", "injection", "overflow", "crash", "panic",
		"null pointer", "nil pointer", "null dereference", "nil dereference",
		"deadlock", "race condition", "data loss", "corrupt", "leak",
		"安全", "漏洞", "崩溃", "泄漏",
	}
	suggestionWords = []string{
		"consider", "could", "might", "may want", "suggest", "recommend",
		"optional", "prefer", "readability", "style", "建议", "可以", "考虑",
	}
)

// inferSeverity classifies one legacy finding line: explicit bracketed
// tags win, then keyword heuristics, defaulting to normal.
func inferSeverity(content string) string {
	lower := strings.ToLower(content)

	for _, tag := range criticalTags {
		if strings.Contains(lower, tag) {
			return "critical"
		}
	}
	for _, tag := range normalTags {
		if strings.Contains(lower, tag) {
			return "normal"
		}
	}
	for _, tag := range suggestionTags {
		if strings.Contains(lower, tag) {
			return "suggestion"
		}
	}

	for _, w := range criticalWords {
		if strings.Contains(lower, w) {
			return "critical"
		}
	}
	for _, w := range suggestionWords {
		if strings.Contains(lower, w) {
			return "suggestion"
		}
	}
	return "normal"
}
