package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/toman-eng/devflow-metrics/internal/domain"
	"github.com/toman-eng/devflow-metrics/internal/stats"
)

// System note fragments GitLab emits on draft state transitions
var (
	readyNoteFragments = []string{
		"marked this merge request as ready",
	}
	draftNoteFragments = []string{
		"marked this merge request as draft",
		"marked this merge request as work in progress",
	}
)

// draftTitlePrefixes mark an MR as draft through its title
var draftTitlePrefixes = []string{"draft:", "wip:", "[draft]", "[wip]"}

// mergedIn returns the MRs merged inside the window, excluding records
// with inconsistent merge timestamps.
func mergedIn(in *domain.Input) []*domain.MergeRequestRecord {
	var out []*domain.MergeRequestRecord
	for i := range in.MergeRequests {
		mr := &in.MergeRequests[i]
		if mr.IsMerged() && in.Window.Contains(*mr.MergedAt) {
			out = append(out, mr)
		}
	}
	return out
}

// authored keeps MRs authored by subject; an empty subject keeps all
func authored(mrs []*domain.MergeRequestRecord, subject string) []*domain.MergeRequestRecord {
	if subject == "" {
		return mrs
	}
	var out []*domain.MergeRequestRecord
	for _, mr := range mrs {
		if mr.Author == subject {
			out = append(out, mr)
		}
	}
	return out
}

// subjectCommits keeps commits authored by subject; empty subject keeps all
func subjectCommits(commits []domain.CommitRecord, subject string) []domain.CommitRecord {
	if subject == "" {
		return commits
	}
	var out []domain.CommitRecord
	for _, c := range commits {
		if c.Author == subject {
			out = append(out, c)
		}
	}
	return out
}

// sortedNotes returns the MR notes ordered by creation time. The
// upstream order is not trusted anywhere a sequence matters.
func sortedNotes(mr *domain.MergeRequestRecord) []domain.NoteRecord {
	notes := make([]domain.NoteRecord, len(mr.Notes))
	copy(notes, mr.Notes)
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	return notes
}

// firstReviewAt returns the earliest human comment from a non-author
func firstReviewAt(mr *domain.MergeRequestRecord) (time.Time, bool) {
	var first time.Time
	found := false
	for _, n := range mr.Notes {
		if n.System || n.Author == mr.Author {
			continue
		}
		if !found || n.CreatedAt.Before(first) {
			first = n.CreatedAt
			found = true
		}
	}
	return first, found
}

// readyAt reconstructs when the MR became ready for review: the latest
// "marked ready" system note, or creation time when no transition was
// recorded.
func readyAt(mr *domain.MergeRequestRecord) time.Time {
	ready := mr.CreatedAt
	for _, n := range sortedNotes(mr) {
		if !n.System {
			continue
		}
		body := strings.ToLower(n.Body)
		for _, frag := range readyNoteFragments {
			if strings.Contains(body, frag) {
				ready = n.CreatedAt
			}
		}
	}
	return ready
}

// hasDraftTitle reports whether the MR title carries a draft prefix
func hasDraftTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, p := range draftTitlePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// ptr returns a pointer to v, for nullable result fields
func ptr[T any](v T) *T {
	return &v
}

// ratio returns part/total, or nil for an empty population
func ratio(part, total int) *float64 {
	if total == 0 {
		return nil
	}
	return ptr(float64(part) / float64(total))
}

// percentileOf wraps stats.Percentile into a nullable result field
func percentileOf(values []float64, p float64) *float64 {
	v, ok := stats.Percentile(values, p)
	if !ok {
		return nil
	}
	return ptr(v)
}

// medianOf wraps stats.Median into a nullable result field
func medianOf(values []float64) *float64 {
	return percentileOf(values, 50)
}

// averageOf wraps stats.Average into a nullable result field
func averageOf(values []float64) *float64 {
	v, ok := stats.Average(values)
	if !ok {
		return nil
	}
	return ptr(v)
}
