package aggregator

import (
	"sort"

	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	"github.com/toman-eng/devflow-metrics/internal/stats"
	"github.com/toman-eng/devflow-metrics/internal/trend"
)

// maxFailedJobEntries caps the failed-job leaderboard
const maxFailedJobEntries = 10

// Pipeline computes CI health metrics over the in-window pipelines.
func Pipeline(in *domain.Input, rs *config.RuleSet) *domain.PipelineMetrics {
	out := &domain.PipelineMetrics{PipelineCount: len(in.Pipelines)}

	out.FailedJobs = failedJobLeaderboard(in.Pipelines)
	out.DistinctSHAs, out.RetriedUnits, out.RetryRate = retryStats(in.Pipelines)

	var waits, queues []float64
	mainTotal, mainOK, featTotal, featOK := 0, 0, 0, 0
	stageDur := make(map[string][]float64)

	for i := range in.Pipelines {
		p := &in.Pipelines[i]

		if p.StartedAt != nil {
			if m := p.StartedAt.Sub(p.CreatedAt).Minutes(); m >= 0 {
				waits = append(waits, m)
			}
		}

		if config.MatchesAny(rs.MainBranch, p.Ref) {
			out.DeploymentCount++
			mainTotal++
			if p.Succeeded() {
				mainOK++
			}
		} else {
			featTotal++
			if p.Succeeded() {
				featOK++
			}
		}

		for j := range p.Jobs {
			job := &p.Jobs[j]
			if q, ok := job.QueueSeconds(); ok {
				queues = append(queues, q)
			}
			if d, ok := job.RunSeconds(); ok {
				stage := job.Stage
				if stage == "" {
					stage = "unknown"
				}
				stageDur[stage] = append(stageDur[stage], d)
			}
			switch job.Status {
			case "success":
				out.JobOutcomes.Success++
			case "failed":
				out.JobOutcomes.Failed++
			case "canceled":
				out.JobOutcomes.Canceled++
			case "skipped":
				out.JobOutcomes.Skipped++
			}
		}
	}

	out.WaitTimeP50Min = medianOf(waits)
	out.WaitTimeP95Min = percentileOf(waits, 95)
	out.QueueTimeP50Sec = medianOf(queues)
	out.QueueTimeP90Sec = percentileOf(queues, 90)
	out.MainBranchSuccessRate = ratio(mainOK, mainTotal)
	out.FeatureBranchSuccessRate = ratio(featOK, featTotal)

	out.JobDurationTrends = jobDurationTrends(in)
	if t, ok := coverageTrend(in); ok {
		out.CoverageTrend = ptr(string(t))
	}
	out.StageDurations = stageRows(stageDur)

	return out
}

// failedJobLeaderboard groups jobs by name and returns the top entries
// by failure count, ties broken by name ascending for determinism.
func failedJobLeaderboard(pipelines []domain.PipelineRecord) []domain.JobFailureRate {
	type tally struct{ failed, total int }
	byName := make(map[string]*tally)
	for i := range pipelines {
		for j := range pipelines[i].Jobs {
			job := &pipelines[i].Jobs[j]
			t := byName[job.Name]
			if t == nil {
				t = &tally{}
				byName[job.Name] = t
			}
			t.total++
			if job.Status == "failed" {
				t.failed++
			}
		}
	}

	var rows []domain.JobFailureRate
	for name, t := range byName {
		if t.failed == 0 {
			continue
		}
		rows = append(rows, domain.JobFailureRate{
			Name:         name,
			FailureCount: t.failed,
			TotalRuns:    t.total,
			FailureRate:  float64(t.failed) / float64(t.total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FailureCount != rows[j].FailureCount {
			return rows[i].FailureCount > rows[j].FailureCount
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > maxFailedJobEntries {
		rows = rows[:maxFailedJobEntries]
	}
	return rows
}

// retryStats groups pipelines by SHA; a SHA with more than one run is
// one retried unit regardless of how many extra runs it saw.
func retryStats(pipelines []domain.PipelineRecord) (distinct, retried int, rate *float64) {
	runs := make(map[string]int)
	for i := range pipelines {
		runs[pipelines[i].SHA]++
	}
	distinct = len(runs)
	for _, n := range runs {
		if n > 1 {
			retried++
		}
	}
	rate = ratio(retried, distinct)
	return distinct, retried, rate
}

// jobDurationTrends classifies per-job duration drift between window
// halves. Jobs with fewer runs than the trend minimum stay unreported.
func jobDurationTrends(in *domain.Input) map[string]string {
	type halves struct{ first, second []float64 }
	byName := make(map[string]*halves)

	for i := range in.Pipelines {
		p := &in.Pipelines[i]
		firstHalf := in.Window.InFirstHalf(p.CreatedAt)
		for j := range p.Jobs {
			job := &p.Jobs[j]
			d, ok := job.RunSeconds()
			if !ok {
				continue
			}
			h := byName[job.Name]
			if h == nil {
				h = &halves{}
				byName[job.Name] = h
			}
			if firstHalf {
				h.first = append(h.first, d)
			} else {
				h.second = append(h.second, d)
			}
		}
	}

	trends := make(map[string]string)
	for name, h := range byName {
		firstAvg, ok1 := stats.Average(h.first)
		secondAvg, ok2 := stats.Average(h.second)
		if !ok1 || !ok2 {
			continue
		}
		if t, ok := trend.Classify(firstAvg, secondAvg, len(h.first)+len(h.second), trend.LowerIsBetter); ok {
			trends[name] = string(t)
		}
	}
	if len(trends) == 0 {
		return nil
	}
	return trends
}

// coverageTrend applies the half-split comparison to parsed coverage
// percentages; higher coverage is improving.
func coverageTrend(in *domain.Input) (trend.Trend, bool) {
	var first, second []float64
	for i := range in.Pipelines {
		p := &in.Pipelines[i]
		if p.Coverage == nil {
			continue
		}
		if in.Window.InFirstHalf(p.CreatedAt) {
			first = append(first, *p.Coverage)
		} else {
			second = append(second, *p.Coverage)
		}
	}
	firstAvg, ok1 := stats.Average(first)
	secondAvg, ok2 := stats.Average(second)
	if !ok1 || !ok2 {
		return "", false
	}
	return trend.Classify(firstAvg, secondAvg, len(first)+len(second), trend.HigherIsBetter)
}

func stageRows(byStage map[string][]float64) []domain.StageDuration {
	var rows []domain.StageDuration
	for stage, durations := range byStage {
		mean, ok := stats.Average(durations)
		if !ok {
			continue
		}
		rows = append(rows, domain.StageDuration{
			Stage:          stage,
			JobCount:       len(durations),
			AvgDurationSec: mean,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Stage < rows[j].Stage })
	return rows
}
