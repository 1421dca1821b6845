package vcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mergewise/mergewise/pkg/logger"
)

// Client is the version-control surface the review pipeline depends on.
// Implementations are bound to one project and one credential.
type Client interface {
	GetChangeMetadata(ctx context.Context, mrIID int) (*ChangeMetadata, error)
	GetFullDiff(ctx context.Context, mrIID int) ([]ChangeDiff, error)
	GetCommitDiff(ctx context.Context, sha string) ([]ChangeDiff, error)
	CreateDiscussion(ctx context.Context, mrIID int, body string, pos *Position, refs *DiffRefs) (*CommentRef, error)
	UpdateDiscussionNote(ctx context.Context, mrIID int, ref CommentRef, body string) error
	CreateCommitComment(ctx context.Context, sha, body string) (*CommentRef, error)
	UpdateCommitComment(ctx context.Context, sha string, ref CommentRef, body string) (*CommentRef, error)
}

// GitLabClient talks to the GitLab v4 REST API for a single project.
type GitLabClient struct {
	baseURL    string // e.g. https://gitlab.example.com
	projectID  int
	token      string
	httpClient *http.Client
}

// NewGitLabClient builds a client bound to one project and access token.
// baseURL is the host root, without the /api/v4 suffix.
func NewGitLabClient(baseURL string, projectID int, token string) *GitLabClient {
	return &GitLabClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		projectID:  projectID,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GitLabClient) apiURL(format string, args ...interface{}) string {
	return fmt.Sprintf("%s/api/v4/projects/%d%s", c.baseURL, c.projectID, fmt.Sprintf(format, args...))
}

func (c *GitLabClient) do(ctx context.Context, method, rawURL string, payload interface{}, out interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("PRIVATE-TOKEN", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return resp, fmt.Errorf("gitlab API %s %s returned %d: %s", method, rawURL, resp.StatusCode, truncate(string(data), 300))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("gitlab API response decode failed: %w", err)
		}
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type gitlabMR struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	SourceBranch string   `json:"source_branch"`
	TargetBranch string   `json:"target_branch"`
	SHA          string   `json:"sha"`
	WebURL       string   `json:"web_url"`
	DiffRefs     DiffRefs `json:"diff_refs"`
}

// GetChangeMetadata fetches merge request title, branches and diff refs.
func (c *GitLabClient) GetChangeMetadata(ctx context.Context, mrIID int) (*ChangeMetadata, error) {
	var mr gitlabMR
	if _, err := c.do(ctx, http.MethodGet, c.apiURL("/merge_requests/%d", mrIID), nil, &mr); err != nil {
		return nil, err
	}
	return &ChangeMetadata{
		Title:        mr.Title,
		Description:  mr.Description,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		SHA:          mr.SHA,
		WebURL:       mr.WebURL,
		DiffRefs:     mr.DiffRefs,
	}, nil
}

type gitlabDiff struct {
	Diff        string `json:"diff"`
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
}

// GetFullDiff fetches every changed file across all commits of the merge
// request. The diffs endpoint is cumulative, so multi-commit changes are
// fully covered; pages are followed until exhausted.
func (c *GitLabClient) GetFullDiff(ctx context.Context, mrIID int) ([]ChangeDiff, error) {
	return c.fetchDiffs(ctx, c.apiURL("/merge_requests/%d/diffs", mrIID))
}

// GetCommitDiff fetches the diff of a single pushed commit.
func (c *GitLabClient) GetCommitDiff(ctx context.Context, sha string) ([]ChangeDiff, error) {
	return c.fetchDiffs(ctx, c.apiURL("/repository/commits/%s/diff", url.PathEscape(sha)))
}

func (c *GitLabClient) fetchDiffs(ctx context.Context, rawURL string) ([]ChangeDiff, error) {
	var all []ChangeDiff
	page := 1
	for {
		var diffs []gitlabDiff
		resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s?per_page=100&page=%d", rawURL, page), nil, &diffs)
		if err != nil {
			return nil, err
		}
		for _, d := range diffs {
			all = append(all, ChangeDiff{
				OldPath:     d.OldPath,
				NewPath:     d.NewPath,
				NewFile:     d.NewFile,
				RenamedFile: d.RenamedFile,
				DeletedFile: d.DeletedFile,
				Diff:        d.Diff,
			})
		}
		next := resp.Header.Get("X-Next-Page")
		if next == "" {
			break
		}
		n, err := strconv.Atoi(next)
		if err != nil || n <= page {
			break
		}
		page = n
	}
	return all, nil
}

type gitlabDiscussion struct {
	ID    string `json:"id"`
	Notes []struct {
		ID int `json:"id"`
	} `json:"notes"`
}

// CreateDiscussion posts a merge request discussion, optionally anchored
// to a file and line using the diff refs triple.
func (c *GitLabClient) CreateDiscussion(ctx context.Context, mrIID int, body string, pos *Position, refs *DiffRefs) (*CommentRef, error) {
	payload := map[string]interface{}{"body": body}
	if pos != nil && refs != nil {
		payload["position"] = map[string]interface{}{
			"position_type": "text",
			"new_path":      pos.FilePath,
			"new_line":      pos.NewLine,
			"base_sha":      refs.BaseSHA,
			"head_sha":      refs.HeadSHA,
			"start_sha":     refs.StartSHA,
		}
	}

	var disc gitlabDiscussion
	if _, err := c.do(ctx, http.MethodPost, c.apiURL("/merge_requests/%d/discussions", mrIID), payload, &disc); err != nil {
		return nil, err
	}

	ref := &CommentRef{DiscussionID: disc.ID}
	if len(disc.Notes) > 0 {
		ref.NoteID = disc.Notes[0].ID
	}
	logger.Infof("[VCS] Created discussion %s on MR !%d", disc.ID, mrIID)
	return ref, nil
}

// UpdateDiscussionNote edits an existing discussion note in place.
func (c *GitLabClient) UpdateDiscussionNote(ctx context.Context, mrIID int, ref CommentRef, body string) error {
	rawURL := c.apiURL("/merge_requests/%d/discussions/%s/notes/%d", mrIID, url.PathEscape(ref.DiscussionID), ref.NoteID)
	_, err := c.do(ctx, http.MethodPut, rawURL, map[string]string{"body": body}, nil)
	if err == nil {
		logger.Infof("[VCS] Updated discussion note %d on MR !%d", ref.NoteID, mrIID)
	}
	return err
}

// CreateCommitComment posts a comment on a single commit. GitLab assigns
// no note id to commit comments.
func (c *GitLabClient) CreateCommitComment(ctx context.Context, sha, body string) (*CommentRef, error) {
	rawURL := c.apiURL("/repository/commits/%s/comments", url.PathEscape(sha))
	if _, err := c.do(ctx, http.MethodPost, rawURL, map[string]string{"note": body}, nil); err != nil {
		return nil, err
	}
	logger.Infof("[VCS] Posted comment on commit %s", shortSHA(sha))
	return &CommentRef{}, nil
}

// UpdateCommitComment falls back to posting a new comment: the GitLab API
// has no edit endpoint for commit comments.
func (c *GitLabClient) UpdateCommitComment(ctx context.Context, sha string, _ CommentRef, body string) (*CommentRef, error) {
	return c.CreateCommitComment(ctx, sha, body)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
