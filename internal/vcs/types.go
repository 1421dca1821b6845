package vcs

// DiffRefs is the base/head/start commit triple a merge request diff is
// rendered against. Positioned comments must carry it.
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	HeadSHA  string `json:"head_sha"`
	StartSHA string `json:"start_sha"`
}

// ChangeMetadata describes a merge request.
type ChangeMetadata struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	SHA          string
	WebURL       string
	DiffRefs     DiffRefs
}

// ChangeDiff is one changed file within a change.
type ChangeDiff struct {
	OldPath     string
	NewPath     string
	NewFile     bool
	RenamedFile bool
	DeletedFile bool
	Diff        string
}

// Path returns the file path to display for this diff.
func (d ChangeDiff) Path() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// Position anchors a discussion to a file and line in the diff view.
type Position struct {
	FilePath string
	NewLine  int
}

// CommentRef identifies a posted comment for later update-in-place.
// Commit comments carry no note id; GitLab cannot edit them.
type CommentRef struct {
	DiscussionID string `json:"discussion_id"`
	NoteID       int    `json:"note_id"`
}

// IsZero reports whether the ref points at nothing.
func (r CommentRef) IsZero() bool {
	return r.DiscussionID == "" && r.NoteID == 0
}
