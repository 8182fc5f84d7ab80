package aggregator

import (
	"github.com/google/uuid"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Rollup combines several projects' inputs into one organization-level
// summary. Additive metrics are summed; rate-like metrics are computed
// over the union of the underlying records so the result is a true
// population percentile instead of an average of averages.
func Rollup(subject string, window domain.TimeWindow, inputs []*domain.Input) *domain.RollupReport {
	out := &domain.RollupReport{
		ReportID:    uuid.New().String(),
		Subject:     subject,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		WindowDays:  window.Days,
		Projects:    len(inputs),
	}

	contributors := make(map[string]struct{})
	projectsByAuthor := make(map[string]map[int]struct{})
	var toMerge, firstReview []float64

	touch := func(author string, projectID int) {
		if author == "" {
			return
		}
		contributors[author] = struct{}{}
		set := projectsByAuthor[author]
		if set == nil {
			set = make(map[int]struct{})
			projectsByAuthor[author] = set
		}
		set[projectID] = struct{}{}
	}

	for _, in := range inputs {
		for i := range in.Commits {
			c := &in.Commits[i]
			out.TotalCommits++
			out.TotalLinesChanged += c.DiffSize()
			touch(c.Author, c.ProjectID)
		}
		for _, mr := range mergedIn(in) {
			out.TotalMergedMRs++
			touch(mr.Author, mr.ProjectID)
			if h := mr.MergedAt.Sub(readyAt(mr)).Hours(); h >= 0 {
				toMerge = append(toMerge, h)
			}
			if t, ok := firstReviewAt(mr); ok {
				if h := t.Sub(mr.CreatedAt).Hours(); h >= 0 {
					firstReview = append(firstReview, h)
				}
			}
		}
	}

	out.Contributors = len(contributors)
	out.TimeToMergeP50Hours = medianOf(toMerge)
	out.TimeToFirstReviewP50Hours = medianOf(firstReview)

	for _, set := range projectsByAuthor {
		if len(set) > 1 {
			out.CrossProjectContributors++
		}
	}

	return out
}
