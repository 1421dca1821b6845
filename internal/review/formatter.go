package review

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/mergewise/mergewise/internal/models"
)

// PlaceholderBody is posted when a run starts; publish updates this
// comment in place with the final result.
const PlaceholderBody = "## 🤖 MergeWise Code Review\n\n_Review in progress..._"

// CommentData is everything the formatter needs to render the single
// outbound comment for a run.
type CommentData struct {
	Run       *models.ReviewRun
	RepoURL   string // project web URL, no trailing slash
	Findings  []models.Finding
	BatchText string // raw batch response, empty in per-file mode
}

// FormatComment renders the aggregated result into one Markdown body.
// Output is deterministic for identical inputs so re-publication after a
// retry replaces the comment with byte-identical content.
func FormatComment(d CommentData) string {
	run := d.Run
	var b strings.Builder

	b.WriteString("## 🤖 MergeWise Code Review\n\n")
	fmt.Fprintf(&b, "**Files:** %d/%d reviewed | **Critical:** %d | **Normal:** %d | **Suggestions:** %d\n",
		run.ReviewedFiles, run.TotalFiles, run.CriticalIssues, run.NormalIssues, run.Suggestions)

	if strings.TrimSpace(run.Summary) != "" {
		b.WriteString("\n### Summary\n\n")
		b.WriteString(strings.TrimSpace(run.Summary))
		b.WriteString("\n")
	}

	if d.BatchText != "" {
		b.WriteString("\n### Findings\n\n")
		b.WriteString(strings.TrimSpace(d.BatchText))
		b.WriteString("\n")
	} else if len(d.Findings) > 0 {
		b.WriteString("\n### Critical findings\n")
		writeGroupedFindings(&b, d)
	}

	if run.ModelProvider != "" || run.ModelName != "" {
		fmt.Fprintf(&b, "\n---\n_Reviewed by %s/%s_\n", run.ModelProvider, run.ModelName)
	}
	return b.String()
}

func writeGroupedFindings(b *strings.Builder, d CommentData) {
	findings := make([]models.Finding, len(d.Findings))
	copy(findings, d.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].FilePath != findings[j].FilePath {
			return findings[i].FilePath < findings[j].FilePath
		}
		return findings[i].StartLine < findings[j].StartLine
	})

	lastPath := ""
	for _, f := range findings {
		if f.FilePath != lastPath {
			fmt.Fprintf(b, "\n**`%s`**\n", f.FilePath)
			lastPath = f.FilePath
		}
		label := lineLabel(f.StartLine, f.EndLine)
		link := diffLink(d.RepoURL, d.Run, f)
		if link != "" {
			fmt.Fprintf(b, "- [%s](%s) %s\n", label, link, f.Content)
		} else {
			fmt.Fprintf(b, "- %s %s\n", label, f.Content)
		}
	}
}

func lineLabel(start, end int) string {
	if end > 0 && end != start {
		return fmt.Sprintf("L%d-%d", start, end)
	}
	return fmt.Sprintf("L%d", start)
}

// diffLink builds a deep link into the host's diff viewer. GitLab anchors
// diff lines as <sha1(file path)>_<old>_<new>; the merge-request diff view
// is used when the run has a change id, the commit view otherwise.
func diffLink(repoURL string, run *models.ReviewRun, f models.Finding) string {
	if repoURL == "" {
		return ""
	}
	sum := sha1.Sum([]byte(f.FilePath))
	anchor := fmt.Sprintf("%s_%d_%d", hex.EncodeToString(sum[:]), f.StartLine, f.StartLine)

	base := strings.TrimSuffix(repoURL, "/")
	if run.MRNumber > 0 {
		return fmt.Sprintf("%s/-/merge_requests/%d/diffs#%s", base, run.MRNumber, anchor)
	}
	if run.CommitSHA != "" {
		return fmt.Sprintf("%s/-/commit/%s#%s", base, run.CommitSHA, anchor)
	}
	return ""
}
