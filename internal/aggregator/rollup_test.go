package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

func TestRollup_CombinesProjects(t *testing.T) {
	t.Parallel()

	w := testWindow()

	mrA := mergedMR(1, "alice", at(1, 0), at(2, 0))
	mrA.ProjectID = 1
	inA := &domain.Input{
		Window:        w,
		MergeRequests: []domain.MergeRequestRecord{mrA},
		Commits: []domain.CommitRecord{
			{SHA: "a1", Author: "alice", Timestamp: at(1, 0), Additions: 10, ProjectID: 1},
			{SHA: "b1", Author: "bob", Timestamp: at(2, 0), Additions: 20, Deletions: 5, ProjectID: 1},
		},
	}

	mrB := mergedMR(1, "bob", at(3, 0), at(3, 12))
	mrB.ProjectID = 2
	inB := &domain.Input{
		Window:        w,
		MergeRequests: []domain.MergeRequestRecord{mrB},
		Commits: []domain.CommitRecord{
			{SHA: "a2", Author: "alice", Timestamp: at(4, 0), Additions: 30, ProjectID: 2},
		},
	}

	out := Rollup("acme", w, []*domain.Input{inA, inB})

	assert.NotEmpty(t, out.ReportID)
	assert.Equal(t, "acme", out.Subject)
	assert.Equal(t, 2, out.Projects)
	assert.Equal(t, 2, out.Contributors)
	assert.Equal(t, 3, out.TotalCommits)
	assert.Equal(t, 2, out.TotalMergedMRs)
	assert.Equal(t, 65, out.TotalLinesChanged)

	// Alice committed to both projects, bob stayed in one.
	assert.Equal(t, 1, out.CrossProjectContributors)

	// Merge latencies 24h and 12h computed over the union.
	require.NotNil(t, out.TimeToMergeP50Hours)
	assert.InDelta(t, 12.0, *out.TimeToMergeP50Hours, 1e-9)
}

func TestRollup_Empty(t *testing.T) {
	t.Parallel()

	w := testWindow()
	out := Rollup("acme", w, nil)

	assert.Equal(t, 0, out.Projects)
	assert.Equal(t, 0, out.Contributors)
	assert.Nil(t, out.TimeToMergeP50Hours)
	assert.Nil(t, out.TimeToFirstReviewP50Hours)
}
