package aggregator

import (
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Flow computes throughput and cycle-time metrics over the merged MRs
// of the subject. Intervals that compute negative indicate clock skew
// or backdated data and are excluded from their population rather than
// clamped to zero.
func Flow(in *domain.Input, _ *config.RuleSet) *domain.FlowMetrics {
	merged := authored(mergedIn(in), in.Subject)

	out := &domain.FlowMetrics{MergedCount: len(merged)}

	var coding, firstReview, toMerge []float64
	projects := make(map[int]struct{})

	for _, mr := range merged {
		out.TotalDiffSize += mr.DiffSize()
		projects[mr.ProjectID] = struct{}{}

		// Coding time: earliest commit in the MR to MR creation.
		// MRs without commit data carry no signal and are skipped.
		if len(mr.Commits) > 0 {
			first := mr.Commits[0].Timestamp
			for _, c := range mr.Commits[1:] {
				if c.Timestamp.Before(first) {
					first = c.Timestamp
				}
			}
			if h := mr.CreatedAt.Sub(first).Hours(); h >= 0 {
				coding = append(coding, h)
			}
		}

		if t, ok := firstReviewAt(mr); ok {
			if h := t.Sub(mr.CreatedAt).Hours(); h >= 0 {
				firstReview = append(firstReview, h)
			}
		}

		// Time to merge runs from the moment the MR became ready,
		// not from creation, so long draft phases do not inflate it.
		if h := mr.MergedAt.Sub(readyAt(mr)).Hours(); h >= 0 {
			toMerge = append(toMerge, h)
		}
	}

	for _, c := range subjectCommits(in.Commits, in.Subject) {
		projects[c.ProjectID] = struct{}{}
	}

	out.CodingTimeP50Hours = medianOf(coding)
	out.TimeToFirstReviewP50Hours = medianOf(firstReview)
	out.TimeToFirstReviewP90Hours = percentileOf(firstReview, 90)
	out.TimeToMergeP50Hours = medianOf(toMerge)
	out.TimeToMergeP90Hours = percentileOf(toMerge, 90)
	out.ProjectsTouched = len(projects)

	// Open and draft counts are a snapshot, deliberately not
	// window-filtered.
	for i := range in.OpenMergeRequests {
		mr := &in.OpenMergeRequests[i]
		if in.Subject != "" && mr.Author != in.Subject {
			continue
		}
		out.OpenCount++
		if mr.Draft || hasDraftTitle(mr.Title) {
			out.DraftCount++
		}
	}

	return out
}
