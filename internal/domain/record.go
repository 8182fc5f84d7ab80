package domain

import "time"

// MRState represents the lifecycle state of a merge request
type MRState string

const (
	MRStateOpened MRState = "opened"
	MRStateMerged MRState = "merged"
	MRStateClosed MRState = "closed"
)

// CommitRecord represents a single commit fetched from GitLab
type CommitRecord struct {
	SHA          string    `json:"sha"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	FilesChanged int       `json:"files_changed"`
	Message      string    `json:"message"`
	ParentCount  int       `json:"parent_count"`
	ProjectID    int       `json:"project_id"`
}

// DiffSize returns the total lines touched by the commit
func (c *CommitRecord) DiffSize() int {
	return c.Additions + c.Deletions
}

// IsMergeCommit reports whether the commit has more than one parent
func (c *CommitRecord) IsMergeCommit() bool {
	return c.ParentCount > 1
}

// NoteRecord represents a comment (note) on a merge request
type NoteRecord struct {
	Author       string    `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	Body         string    `json:"body"`
	System       bool      `json:"system"`
	Resolvable   bool      `json:"resolvable"`
	Resolved     bool      `json:"resolved"`
	DiscussionID string    `json:"discussion_id"`
}

// ApprovalRecord represents an approval given on a merge request
type ApprovalRecord struct {
	Approver   string    `json:"approver"`
	ApprovedAt time.Time `json:"approved_at"`
}

// MergeRequestRecord represents a merge request with its nested
// commits, notes and approvals as fetched for one request
type MergeRequestRecord struct {
	IID          int              `json:"iid"`
	ProjectID    int              `json:"project_id"`
	ProjectPath  string           `json:"project_path"`
	Title        string           `json:"title"`
	Author       string           `json:"author"`
	SourceBranch string           `json:"source_branch"`
	TargetBranch string           `json:"target_branch"`
	Labels       []string         `json:"labels"`
	State        MRState          `json:"state"`
	Draft        bool             `json:"draft"`
	CreatedAt    time.Time        `json:"created_at"`
	MergedAt     *time.Time       `json:"merged_at,omitempty"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
	MergedBy     string           `json:"merged_by,omitempty"`
	HasConflicts bool             `json:"has_conflicts"`
	Squash       bool             `json:"squash"`
	Additions    int              `json:"additions"`
	Deletions    int              `json:"deletions"`
	FilesChanged int              `json:"files_changed"`
	Commits      []CommitRecord   `json:"commits,omitempty"`
	Notes        []NoteRecord     `json:"notes,omitempty"`
	Approvals    []ApprovalRecord `json:"approvals,omitempty"`
}

// DiffSize returns the total lines touched by the merge request
func (m *MergeRequestRecord) DiffSize() int {
	return m.Additions + m.Deletions
}

// IsMerged reports whether the MR is merged with a consistent merge
// timestamp. An MR whose merged_at precedes created_at is treated as
// invalid upstream data and excluded from every metric population.
func (m *MergeRequestRecord) IsMerged() bool {
	if m.State != MRStateMerged || m.MergedAt == nil {
		return false
	}
	return !m.MergedAt.Before(m.CreatedAt)
}

// JobRecord represents a single CI job within a pipeline
type JobRecord struct {
	Name            string     `json:"name"`
	Stage           string     `json:"stage"`
	Status          string     `json:"status"`
	DurationSec     *float64   `json:"duration_sec,omitempty"`
	QueuedSec       *float64   `json:"queued_sec,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// QueueSeconds returns the time the job spent queued. It prefers the
// explicit queued duration and falls back to started minus created.
func (j *JobRecord) QueueSeconds() (float64, bool) {
	if j.QueuedSec != nil {
		return *j.QueuedSec, true
	}
	if j.CreatedAt != nil && j.StartedAt != nil && !j.StartedAt.Before(*j.CreatedAt) {
		return j.StartedAt.Sub(*j.CreatedAt).Seconds(), true
	}
	return 0, false
}

// RunSeconds returns the job execution duration, falling back to
// finished minus started when the explicit duration is absent.
func (j *JobRecord) RunSeconds() (float64, bool) {
	if j.DurationSec != nil {
		return *j.DurationSec, true
	}
	if j.StartedAt != nil && j.FinishedAt != nil && !j.FinishedAt.Before(*j.StartedAt) {
		return j.FinishedAt.Sub(*j.StartedAt).Seconds(), true
	}
	return 0, false
}

// PipelineRecord represents a CI pipeline run
type PipelineRecord struct {
	ID         int         `json:"id"`
	ProjectID  int         `json:"project_id"`
	SHA        string      `json:"sha"`
	Ref        string      `json:"ref"`
	Status     string      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Coverage   *float64    `json:"coverage,omitempty"`
	Jobs       []JobRecord `json:"jobs,omitempty"`
}

// Succeeded reports whether the pipeline finished with status success
func (p *PipelineRecord) Succeeded() bool {
	return p.Status == "success"
}
