package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

func flowInput() *domain.Input {
	mr1 := mergedMR(1, "alice", at(2, 10), at(3, 10))
	mr1.Additions, mr1.Deletions = 30, 20
	mr1.Commits = []domain.CommitRecord{
		{SHA: "c1", Author: "alice", Timestamp: at(2, 4)},
	}
	mr1.Notes = []domain.NoteRecord{
		humanNote("bob", at(2, 12), "looks good overall"),
	}

	mr2 := mergedMR(2, "alice", at(4, 0), at(4, 12))
	mr2.ProjectID = 2
	mr2.Additions = 10

	return &domain.Input{
		Window:        testWindow(),
		MergeRequests: []domain.MergeRequestRecord{mr1, mr2},
		Commits: []domain.CommitRecord{
			{SHA: "c9", Author: "alice", Timestamp: at(5, 0), ProjectID: 3},
		},
		OpenMergeRequests: []domain.MergeRequestRecord{
			{IID: 10, Author: "alice", State: domain.MRStateOpened, Draft: true},
			{IID: 11, Author: "alice", State: domain.MRStateOpened, Title: "Tidy config"},
		},
	}
}

func TestFlow_CycleTimes(t *testing.T) {
	t.Parallel()

	out := Flow(flowInput(), testRules(t))

	assert.Equal(t, 2, out.MergedCount)
	assert.Equal(t, 60, out.TotalDiffSize)

	// Coding time: earliest MR commit to MR creation.
	require.NotNil(t, out.CodingTimeP50Hours)
	assert.InDelta(t, 6.0, *out.CodingTimeP50Hours, 1e-9)

	require.NotNil(t, out.TimeToFirstReviewP50Hours)
	assert.InDelta(t, 2.0, *out.TimeToFirstReviewP50Hours, 1e-9)

	// Merge latencies 24h and 12h: nearest-rank P50 is the lower.
	require.NotNil(t, out.TimeToMergeP50Hours)
	assert.InDelta(t, 12.0, *out.TimeToMergeP50Hours, 1e-9)
	require.NotNil(t, out.TimeToMergeP90Hours)
	assert.InDelta(t, 24.0, *out.TimeToMergeP90Hours, 1e-9)
}

func TestFlow_SnapshotAndProjects(t *testing.T) {
	t.Parallel()

	out := Flow(flowInput(), testRules(t))

	assert.Equal(t, 2, out.OpenCount)
	assert.Equal(t, 1, out.DraftCount)
	assert.Equal(t, 3, out.ProjectsTouched, "two MR projects plus one commit-only project")
}

func TestFlow_SubjectFiltersAuthorship(t *testing.T) {
	t.Parallel()

	in := flowInput()
	in.MergeRequests[1].Author = "bob"
	in.Subject = "alice"

	out := Flow(in, testRules(t))
	assert.Equal(t, 1, out.MergedCount)
	assert.Equal(t, 50, out.TotalDiffSize)
}

func TestFlow_TimeToMergeRunsFromReady(t *testing.T) {
	t.Parallel()

	mr := mergedMR(1, "alice", at(1, 0), at(5, 0))
	mr.Notes = []domain.NoteRecord{
		systemNote(at(4, 0), "marked this merge request as ready"),
	}
	in := &domain.Input{Window: testWindow(), MergeRequests: []domain.MergeRequestRecord{mr}}

	out := Flow(in, testRules(t))
	require.NotNil(t, out.TimeToMergeP50Hours)
	assert.InDelta(t, 24.0, *out.TimeToMergeP50Hours, 1e-9, "draft phase is excluded")
}

func TestFlow_EmptyInput(t *testing.T) {
	t.Parallel()

	out := Flow(&domain.Input{Window: testWindow()}, testRules(t))

	assert.Equal(t, 0, out.MergedCount)
	assert.Nil(t, out.TimeToMergeP50Hours)
	assert.Nil(t, out.CodingTimeP50Hours)
}
