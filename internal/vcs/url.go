package vcs

import (
	"fmt"
	"net/url"
	"strings"
)

// ProjectInfo is the result of parsing a project web URL.
type ProjectInfo struct {
	BaseURL     string // scheme://host, the API endpoint root
	ProjectPath string // namespace/name
	Name        string
}

// ParseProjectURL splits a GitLab project URL into the host base URL and
// the project path. The .git suffix is tolerated.
func ParseProjectURL(projectURL string) (*ProjectInfo, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(projectURL), ".git")

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid project URL %q: %w", projectURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid project URL %q: scheme and host required", projectURL)
	}

	path := strings.Trim(u.Path, "/")
	if path == "" || !strings.Contains(path, "/") {
		return nil, fmt.Errorf("invalid project URL %q: need at least namespace/name", projectURL)
	}

	parts := strings.Split(path, "/")
	return &ProjectInfo{
		BaseURL:     u.Scheme + "://" + u.Host,
		ProjectPath: path,
		Name:        parts[len(parts)-1],
	}, nil
}
