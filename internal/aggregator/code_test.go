package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

func codeInput() *domain.Input {
	commits := []domain.CommitRecord{
		{SHA: "c1", Author: "alice", Timestamp: at(1, 0), Additions: 10, Message: "feat: add parser"},
		{SHA: "c2", Author: "alice", Timestamp: at(2, 0), Additions: 60, Deletions: 40, Message: "fix(core): handle nil"},
		{SHA: "c3", Author: "alice", Timestamp: at(3, 0), Additions: 300, Message: "update stuff"},
		{SHA: "c4", Author: "alice", Timestamp: at(4, 0), Additions: 40, Message: "chore: bump deps"},
		{SHA: "c5", Author: "alice", Timestamp: at(5, 0), Additions: 50, Message: "refactor!: split module"},
	}

	mrs := []domain.MergeRequestRecord{
		mergedMR(1, "alice", at(1, 0), at(2, 0)),
		mergedMR(2, "alice", at(2, 0), at(3, 0)),
		mergedMR(3, "alice", at(3, 0), at(4, 0)),
		mergedMR(4, "alice", at(4, 0), at(5, 0)),
	}
	mrs[0].Additions, mrs[0].FilesChanged, mrs[0].SourceBranch, mrs[0].Squash = 50, 3, "feature/a", true
	mrs[1].Additions, mrs[1].FilesChanged, mrs[1].SourceBranch, mrs[1].Squash = 100, 10, "fix/b", true
	mrs[2].Additions, mrs[2].FilesChanged, mrs[2].SourceBranch = 999, 25, "junk"
	mrs[3].Additions, mrs[3].FilesChanged, mrs[3].SourceBranch = 1500, 60, "feature/c"

	return &domain.Input{
		Window:        testWindow(),
		Commits:       commits,
		MergeRequests: mrs,
	}
}

func TestCode_CommitShape(t *testing.T) {
	t.Parallel()

	out := Code(codeInput(), testRules(t))

	assert.Equal(t, 5, out.CommitCount)
	assert.InDelta(t, 0.5, out.CommitsPerDay, 1e-9)
	assert.InDelta(t, 3.5, out.CommitsPerWeek, 1e-9)

	require.NotNil(t, out.CommitSizeP50)
	assert.InDelta(t, 50.0, *out.CommitSizeP50, 1e-9)
	require.NotNil(t, out.CommitSizeP95)
	assert.InDelta(t, 300.0, *out.CommitSizeP95, 1e-9)
	require.NotNil(t, out.CommitSizeAvg)
	assert.InDelta(t, 100.0, *out.CommitSizeAvg, 1e-9)

	require.NotNil(t, out.ConventionalCommitRate)
	assert.InDelta(t, 0.8, *out.ConventionalCommitRate, 1e-9)

	require.NotNil(t, out.AvgMessageLength)
	assert.InDelta(t, 17.6, *out.AvgMessageLength, 1e-9)
}

func TestCode_MRBuckets(t *testing.T) {
	t.Parallel()

	out := Code(codeInput(), testRules(t))

	assert.Equal(t, domain.SizeBuckets{Small: 1, Medium: 1, Large: 1, XL: 1}, out.MRSizeBuckets)
	assert.Equal(t, domain.FileBuckets{XS: 1, S: 1, M: 1, XL: 1}, out.MRFileBuckets)
}

func TestCode_MRRates(t *testing.T) {
	t.Parallel()

	out := Code(codeInput(), testRules(t))

	require.NotNil(t, out.SquashRate)
	assert.InDelta(t, 0.5, *out.SquashRate, 1e-9)
	require.NotNil(t, out.BranchNamingCompliance)
	assert.InDelta(t, 0.75, *out.BranchNamingCompliance, 1e-9)
}

func TestBucketMR_ThresholdEdges(t *testing.T) {
	t.Parallel()

	rs := testRules(t)
	var b domain.SizeBuckets

	// A diff exactly at a cut point belongs to the next bucket up.
	bucketMR(&b, 99, rs.Sizes)
	bucketMR(&b, 100, rs.Sizes)
	bucketMR(&b, 500, rs.Sizes)
	bucketMR(&b, 1000, rs.Sizes)

	assert.Equal(t, domain.SizeBuckets{Small: 1, Medium: 1, Large: 1, XL: 1}, b)
}

func TestBucketFiles_Edges(t *testing.T) {
	t.Parallel()

	var b domain.FileBuckets
	for _, files := range []int{3, 4, 10, 11, 25, 26, 50, 51} {
		bucketFiles(&b, files)
	}
	assert.Equal(t, domain.FileBuckets{XS: 1, S: 2, M: 2, L: 2, XL: 1}, b)
}

func TestCode_EmptyInput(t *testing.T) {
	t.Parallel()

	out := Code(&domain.Input{Window: testWindow()}, testRules(t))

	assert.Equal(t, 0, out.CommitCount)
	assert.Nil(t, out.CommitSizeP50)
	assert.Nil(t, out.SquashRate)
	assert.Nil(t, out.ConventionalCommitRate)
}
