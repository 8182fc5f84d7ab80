package aggregator

import (
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Quality computes rework, revert, conflict and CI-outcome metrics.
func Quality(in *domain.Input, rs *config.RuleSet) *domain.QualityMetrics {
	merged := authored(mergedIn(in), in.Subject)

	out := &domain.QualityMetrics{MergedCount: len(merged)}

	var reworked, hotfix, conflicted int
	for _, mr := range merged {
		if hasRework(mr) {
			reworked++
		}
		if config.MatchesAny(rs.Revert, mr.Title) {
			out.RevertedCount++
		}
		if isHotfix(mr, rs) {
			hotfix++
		}
		if mr.HasConflicts {
			conflicted++
		}
	}
	out.ReworkRatio = ratio(reworked, len(merged))
	out.RevertRate = ratio(out.RevertedCount, len(merged))
	out.HotfixRate = ratio(hotfix, len(merged))
	out.ConflictRate = ratio(conflicted, len(merged))

	firstAttempts := firstAttemptPipelines(in.Pipelines)
	successes := 0
	for _, p := range firstAttempts {
		if p.Succeeded() {
			successes++
		}
	}
	out.FirstAttemptSuccessRate = ratio(successes, len(firstAttempts))

	var durations []float64
	for i := range in.Pipelines {
		p := &in.Pipelines[i]
		if p.FinishedAt == nil {
			continue
		}
		if m := p.FinishedAt.Sub(p.CreatedAt).Minutes(); m >= 0 {
			durations = append(durations, m)
		}
	}
	out.PipelineDurationP50Min = medianOf(durations)
	out.PipelineDurationP95Min = percentileOf(durations, 95)

	return out
}

// hasRework reports whether any commit landed after the first review
// comment, meaning the author pushed changes in response to feedback.
func hasRework(mr *domain.MergeRequestRecord) bool {
	first, ok := firstReviewAt(mr)
	if !ok {
		return false
	}
	for _, c := range mr.Commits {
		if c.Timestamp.After(first) {
			return true
		}
	}
	return false
}

// isHotfix applies the hotfix rule table: label, title and source
// branch are independent signals combined with OR.
func isHotfix(mr *domain.MergeRequestRecord, rs *config.RuleSet) bool {
	for _, l := range mr.Labels {
		if config.MatchesAny(rs.Hotfix, l) {
			return true
		}
	}
	return config.MatchesAny(rs.Hotfix, mr.Title) ||
		config.MatchesAny(rs.Hotfix, mr.SourceBranch)
}

// firstAttemptPipelines keeps the earliest pipeline per SHA; later runs
// on the same SHA are retries, not first attempts.
func firstAttemptPipelines(pipelines []domain.PipelineRecord) []*domain.PipelineRecord {
	earliest := make(map[string]*domain.PipelineRecord)
	for i := range pipelines {
		p := &pipelines[i]
		if cur, ok := earliest[p.SHA]; !ok || p.CreatedAt.Before(cur.CreatedAt) {
			earliest[p.SHA] = p
		}
	}
	out := make([]*domain.PipelineRecord, 0, len(earliest))
	for _, p := range earliest {
		out = append(out, p)
	}
	return out
}
