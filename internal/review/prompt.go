package review

import (
	"fmt"
	"strings"

	"github.com/mergewise/mergewise/internal/models"
	"github.com/mergewise/mergewise/internal/vcs"
)

// baseSystemPrompt is the built-in reviewer instruction. Repositories may
// extend or replace it via their custom prompt setting. The output format
// it mandates is what ParseFindings expects.
const baseSystemPrompt = `You are a senior code reviewer. Review the supplied diff for correctness, security, concurrency and maintainability problems. Be specific and reference line numbers from the new side of the diff.

Severity levels:
- critical: bugs, security flaws, data loss, races, crashes
- normal: real problems that will not break production immediately
- suggestion: style, naming, readability, optional improvements

End your review with exactly one line of the form:
statistics: critical=<n> normal=<n> suggestion=<n>

List each critical finding on its own line as:
<file-path>:<line> <short description>
or <file-path>:<start>-<end> <short description> for a range.`

// summarySystemPrompt drives the change-synopsis call.
const summarySystemPrompt = `You are a senior code reviewer. Summarize what this change does in 3-5 sentences of plain prose. Mention the areas touched and the apparent intent. Do not list findings, do not output statistics.`

// EffectiveSystemPrompt resolves the reviewer instruction for a
// repository: a custom prompt either replaces the built-in one or is
// appended to it, depending on the repository's prompt mode.
func EffectiveSystemPrompt(repo *models.Repository) string {
	custom := strings.TrimSpace(repo.CustomPrompt)
	if custom == "" {
		return baseSystemPrompt
	}
	if repo.PromptMode == models.PromptModeReplace {
		return custom
	}
	return baseSystemPrompt + "\n\nAdditional project instructions:\n" + custom
}

// BuildSummaryPrompt concatenates every file diff into one summary request.
func BuildSummaryPrompt(title, description string, diffs []vcs.ChangeDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if strings.TrimSpace(description) != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	b.WriteString("\nChanged files:\n")
	for _, d := range diffs {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", d.Path(), d.Diff)
	}
	return b.String()
}

// BuildFilePrompt renders the per-file review request: change title, the
// running summary for context, then the file's unified diff.
func BuildFilePrompt(title, summary string, diff vcs.ChangeDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if strings.TrimSpace(summary) != "" {
		fmt.Fprintf(&b, "Change summary: %s\n", summary)
	}
	fmt.Fprintf(&b, "\nFile: %s\n", diff.Path())
	if diff.RenamedFile {
		fmt.Fprintf(&b, "(renamed from %s)\n", diff.OldPath)
	}
	if diff.NewFile {
		b.WriteString("(new file)\n")
	}
	fmt.Fprintf(&b, "\n```diff\n%s\n```\n", diff.Diff)
	return b.String()
}

// BuildBatchPrompt renders all files into one review request, used above
// the batching threshold.
func BuildBatchPrompt(title, summary string, diffs []vcs.ChangeDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	if strings.TrimSpace(summary) != "" {
		fmt.Fprintf(&b, "Change summary: %s\n", summary)
	}
	fmt.Fprintf(&b, "\nReview all %d files below in one pass. Prefix every critical finding with its file path.\n", len(diffs))
	for _, d := range diffs {
		fmt.Fprintf(&b, "\nFile: %s\n```diff\n%s\n```\n", d.Path(), d.Diff)
	}
	return b.String()
}
