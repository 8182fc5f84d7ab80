package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

func TestToCommitRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	commit := &gitlab.Commit{
		ID:         "abc123",
		AuthorName: "alice",
		Message:    "feat: add parser",
		CreatedAt:  &created,
		ParentIDs:  []string{"p1", "p2"},
		Stats:      &gitlab.CommitStats{Additions: 10, Deletions: 4},
	}

	record := toCommitRecord(commit, 42)

	assert.Equal(t, "abc123", record.SHA)
	assert.Equal(t, "alice", record.Author)
	assert.Equal(t, created, record.Timestamp)
	assert.Equal(t, 10, record.Additions)
	assert.Equal(t, 4, record.Deletions)
	assert.Equal(t, 42, record.ProjectID)
	assert.True(t, record.IsMergeCommit())
}

func TestToMergeRequestRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	merged := created.Add(24 * time.Hour)
	mr := &gitlab.MergeRequest{
		IID:          7,
		Title:        "Add caching",
		State:        "merged",
		Draft:        false,
		SourceBranch: "feature/cache",
		TargetBranch: "main",
		CreatedAt:    &created,
		MergedAt:     &merged,
		Squash:       true,
		Author:       &gitlab.BasicUser{Username: "alice"},
	}
	project := &gitlab.Project{ID: 42, PathWithNamespace: "acme/app"}

	record := toMergeRequestRecord(mr, project)

	assert.Equal(t, 7, record.IID)
	assert.Equal(t, 42, record.ProjectID)
	assert.Equal(t, "acme/app", record.ProjectPath)
	assert.Equal(t, "alice", record.Author)
	assert.Equal(t, domain.MRStateMerged, record.State)
	assert.True(t, record.Squash)
	assert.True(t, record.IsMerged())
}

func TestApprovalsFromNotes(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	notes := []domain.NoteRecord{
		{Author: "bob", CreatedAt: ts, Body: "approved this merge request", System: true},
		{Author: "carol", CreatedAt: ts.Add(time.Hour), Body: "Approved this merge request", System: true},
		{Author: "dave", CreatedAt: ts, Body: "approved this merge request", System: false},
		{Author: "erin", CreatedAt: ts, Body: "unapproved this merge request", System: true},
	}

	approvals := approvalsFromNotes(notes)

	// Human comments quoting the phrase and unapprovals do not count.
	require.Len(t, approvals, 2)
	assert.Equal(t, "bob", approvals[0].Approver)
	assert.Equal(t, "carol", approvals[1].Approver)
	assert.Equal(t, ts, approvals[0].ApprovedAt)
}

func TestNewGitLabCollector_NormalizesBaseURL(t *testing.T) {
	t.Parallel()

	col, err := NewGitLabCollector("https://gitlab.example.com/", "token")
	require.NoError(t, err)
	assert.NotNil(t, col)
}
