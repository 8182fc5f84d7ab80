package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	"github.com/toman-eng/devflow-metrics/internal/stats"
)

// Individual idle gaps are clamped here so abandoned-then-revived MRs
// do not skew the median.
const maxIdleGap = 30 * 24 * time.Hour

// topAuthorCount is the head size for the concentration share
const topAuthorCount = 3

// Advanced computes contribution-concentration, responsiveness and
// review-loop heuristics.
func Advanced(in *domain.Input, rs *config.RuleSet) *domain.AdvancedMetrics {
	out := &domain.AdvancedMetrics{}

	busFactor(in, out)
	responseHours(in, out)

	merged := authored(mergedIn(in), in.Subject)

	var batch, draftHours, iterations, idleGaps []float64
	for _, mr := range merged {
		if len(mr.Commits) > 0 {
			batch = append(batch, float64(len(mr.Commits)))
		}
		if h, ok := draftInterval(mr, in.Window); ok {
			draftHours = append(draftHours, h)
			out.DraftedCount++
		}
		if rounds := reviewRounds(mr); rounds > 0 {
			iterations = append(iterations, float64(rounds))
		}
		idleGaps = append(idleGaps, reviewIdleGaps(mr)...)
	}

	out.BatchSizeP50 = medianOf(batch)
	out.BatchSizeP95 = percentileOf(batch, 95)
	out.DraftDurationP50Hours = medianOf(draftHours)
	out.IterationCountMedian = medianOf(iterations)
	out.IdleTimeP50Hours = medianOf(idleGaps)

	crossTeam(in, rs, out)

	return out
}

// busFactor measures how concentrated file changes are among authors
func busFactor(in *domain.Input, out *domain.AdvancedMetrics) {
	byAuthor := make(map[string]float64)
	for i := range in.Commits {
		c := &in.Commits[i]
		byAuthor[c.Author] += float64(c.FilesChanged)
	}

	totals := make([]float64, 0, len(byAuthor))
	type authorTotal struct {
		author string
		total  float64
	}
	ranked := make([]authorTotal, 0, len(byAuthor))
	var grand float64
	for author, total := range byAuthor {
		totals = append(totals, total)
		ranked = append(ranked, authorTotal{author, total})
		grand += total
	}

	if g, ok := stats.Gini(totals); ok {
		out.BusFactorGini = ptr(g)
	}

	if grand > 0 {
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].total != ranked[j].total {
				return ranked[i].total > ranked[j].total
			}
			return ranked[i].author < ranked[j].author
		})
		head := ranked
		if len(head) > topAuthorCount {
			head = head[:topAuthorCount]
		}
		var top float64
		for _, a := range head {
			top += a.total
		}
		out.TopAuthorsShare = ptr(top / grand * 100)
	}
}

// responseHours buckets the subject's review comments by hour of day
func responseHours(in *domain.Input, out *domain.AdvancedMetrics) {
	for i := range in.MergeRequests {
		mr := &in.MergeRequests[i]
		for _, n := range mr.Notes {
			if n.System || n.Author == mr.Author {
				continue
			}
			if in.Subject != "" && n.Author != in.Subject {
				continue
			}
			if !in.Window.Contains(n.CreatedAt) {
				continue
			}
			out.ResponseHourHistogram[domain.HourBucket(n.CreatedAt)]++
		}
	}
	if peak, ok := stats.PeakBucket(out.ResponseHourHistogram[:]); ok {
		out.PeakResponseHour = ptr(peak)
	}
}

// draftInterval reconstructs the time an MR spent in draft state.
//
// Entry signal precedence is deterministic: explicit draft flag, then
// title prefix, then the earliest draft-transition system note inside
// the window. Exit is the latest ready-transition note inside the
// window, falling back to the merge time when the MR was merged with
// no recorded transition. MRs never marked draft are excluded, not
// counted as zero.
func draftInterval(mr *domain.MergeRequestRecord, w domain.TimeWindow) (float64, bool) {
	var entered time.Time
	haveEntry := false

	switch {
	case mr.Draft:
		entered, haveEntry = mr.CreatedAt, true
	case hasDraftTitle(mr.Title):
		entered, haveEntry = mr.CreatedAt, true
	default:
		for _, n := range mr.Notes {
			if !n.System || !w.Contains(n.CreatedAt) {
				continue
			}
			body := strings.ToLower(n.Body)
			for _, frag := range draftNoteFragments {
				if strings.Contains(body, frag) {
					if !haveEntry || n.CreatedAt.Before(entered) {
						entered = n.CreatedAt
					}
					haveEntry = true
				}
			}
		}
	}
	if !haveEntry {
		return 0, false
	}

	var exited time.Time
	haveExit := false
	for _, n := range mr.Notes {
		if !n.System || !w.Contains(n.CreatedAt) {
			continue
		}
		body := strings.ToLower(n.Body)
		for _, frag := range readyNoteFragments {
			if strings.Contains(body, frag) {
				if !haveExit || n.CreatedAt.After(exited) {
					exited = n.CreatedAt
				}
				haveExit = true
			}
		}
	}
	if !haveExit && mr.IsMerged() {
		exited, haveExit = *mr.MergedAt, true
	}
	if !haveExit || exited.Before(entered) {
		return 0, false
	}
	return exited.Sub(entered).Hours(), true
}

// mrEvent is one entry of the replayed review/commit timeline
type mrEvent struct {
	at     time.Time
	review bool
}

// timeline returns review comments and commits on the MR between ready
// and merge, ordered by time.
func timeline(mr *domain.MergeRequestRecord) []mrEvent {
	start := readyAt(mr)
	end := time.Now().UTC()
	if mr.MergedAt != nil {
		end = *mr.MergedAt
	}

	var events []mrEvent
	for _, n := range mr.Notes {
		if n.System || n.Author == mr.Author {
			continue
		}
		if n.CreatedAt.Before(start) || n.CreatedAt.After(end) {
			continue
		}
		events = append(events, mrEvent{at: n.CreatedAt, review: true})
	}
	for _, c := range mr.Commits {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		events = append(events, mrEvent{at: c.Timestamp})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
	return events
}

// reviewRounds counts review-then-commit cycles: a commit that follows
// one or more review comments closes one round.
func reviewRounds(mr *domain.MergeRequestRecord) int {
	rounds := 0
	awaitingCommit := false
	for _, ev := range timeline(mr) {
		if ev.review {
			awaitingCommit = true
		} else if awaitingCommit {
			rounds++
			awaitingCommit = false
		}
	}
	return rounds
}

// reviewIdleGaps returns the gaps between each review comment and the
// next activity on the MR, clamped to the idle cap.
func reviewIdleGaps(mr *domain.MergeRequestRecord) []float64 {
	events := timeline(mr)
	var gaps []float64
	for i, ev := range events {
		if !ev.review || i+1 >= len(events) {
			continue
		}
		gap := events[i+1].at.Sub(ev.at)
		if gap < 0 {
			continue
		}
		if gap > maxIdleGap {
			gap = maxIdleGap
		}
		gaps = append(gaps, gap.Hours())
	}
	return gaps
}

// crossTeam measures the share of review comments crossing team
// boundaries. Without a team map the capability is unavailable, which
// is a different outcome than a measured zero.
func crossTeam(in *domain.Input, rs *config.RuleSet, out *domain.AdvancedMetrics) {
	if rs.TeamByMember == nil {
		out.CrossTeamAvailable = false
		return
	}
	out.CrossTeamAvailable = true

	cross, total := 0, 0
	for i := range in.MergeRequests {
		mr := &in.MergeRequests[i]
		authorTeam, ok := rs.TeamByMember[mr.Author]
		if !ok {
			continue
		}
		for _, n := range mr.Notes {
			if n.System || n.Author == mr.Author {
				continue
			}
			if in.Subject != "" && n.Author != in.Subject && mr.Author != in.Subject {
				continue
			}
			reviewerTeam, ok := rs.TeamByMember[n.Author]
			if !ok {
				continue
			}
			total++
			if reviewerTeam != authorTeam {
				cross++
			}
		}
	}
	out.CrossTeamRatio = ratio(cross, total)
}
