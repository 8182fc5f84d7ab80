package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// testNow anchors every fixture window so tests stay deterministic
var testNow = time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

func testWindow() domain.TimeWindow {
	return domain.NewWindow(10, testNow)
}

// at returns an instant day whole days and hours into the test window
func at(day, hour int) time.Time {
	return testWindow().Start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func testRules(t *testing.T) *config.RuleSet {
	t.Helper()
	rs, err := config.DefaultRules().Compile()
	require.NoError(t, err)
	return rs
}

func mergedMR(iid int, author string, created, merged time.Time) domain.MergeRequestRecord {
	return domain.MergeRequestRecord{
		IID:       iid,
		ProjectID: 1,
		Author:    author,
		State:     domain.MRStateMerged,
		CreatedAt: created,
		MergedAt:  &merged,
	}
}

func humanNote(author string, createdAt time.Time, body string) domain.NoteRecord {
	return domain.NoteRecord{Author: author, CreatedAt: createdAt, Body: body}
}

func systemNote(createdAt time.Time, body string) domain.NoteRecord {
	return domain.NoteRecord{Author: "gitlab", CreatedAt: createdAt, Body: body, System: true}
}

func TestMergedIn_ExcludesOutOfWindowAndInvalid(t *testing.T) {
	t.Parallel()

	w := testWindow()
	inWindow := mergedMR(1, "alice", at(1, 0), at(2, 0))
	outOfWindow := mergedMR(2, "alice", at(1, 0), w.End.Add(time.Hour))
	backdated := mergedMR(3, "alice", at(5, 0), at(4, 0))

	in := &domain.Input{
		Window:        w,
		MergeRequests: []domain.MergeRequestRecord{inWindow, outOfWindow, backdated},
	}

	merged := mergedIn(in)
	require.Len(t, merged, 1)
	require.Equal(t, 1, merged[0].IID)
}

func TestReadyAt_LatestReadyNoteWins(t *testing.T) {
	t.Parallel()

	mr := mergedMR(1, "alice", at(1, 0), at(5, 0))

	require.Equal(t, mr.CreatedAt, readyAt(&mr), "no transition falls back to creation")

	mr.Notes = []domain.NoteRecord{
		systemNote(at(3, 0), "marked this merge request as ready"),
		systemNote(at(2, 0), "marked this merge request as ready"),
	}
	require.Equal(t, at(3, 0), readyAt(&mr))
}

func TestHasDraftTitle(t *testing.T) {
	t.Parallel()

	require.True(t, hasDraftTitle("Draft: add feature"))
	require.True(t, hasDraftTitle("WIP: fix thing"))
	require.True(t, hasDraftTitle("[Draft] something"))
	require.False(t, hasDraftTitle("Undrafted work"))
}

func TestRatio_NilOnEmptyPopulation(t *testing.T) {
	t.Parallel()

	require.Nil(t, ratio(0, 0))

	r := ratio(3, 10)
	require.NotNil(t, r)
	require.InDelta(t, 0.3, *r, 1e-9)
}
