package aggregator

import (
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Code computes commit and merge-request shape characteristics.
func Code(in *domain.Input, rs *config.RuleSet) *domain.CodeMetrics {
	commits := subjectCommits(in.Commits, in.Subject)
	merged := authored(mergedIn(in), in.Subject)

	out := &domain.CodeMetrics{CommitCount: len(commits)}
	if in.Window.Days > 0 {
		out.CommitsPerDay = float64(len(commits)) / float64(in.Window.Days)
		out.CommitsPerWeek = out.CommitsPerDay * 7
	}

	var sizes []float64
	var msgLengths []float64
	conventional := 0
	for i := range commits {
		c := &commits[i]
		sizes = append(sizes, float64(c.DiffSize()))
		msgLengths = append(msgLengths, float64(len(c.Message)))
		if rs.Conventional.MatchString(c.Message) {
			conventional++
		}
	}
	out.CommitSizeP50 = medianOf(sizes)
	out.CommitSizeP95 = percentileOf(sizes, 95)
	out.CommitSizeAvg = averageOf(sizes)
	out.AvgMessageLength = averageOf(msgLengths)
	out.ConventionalCommitRate = ratio(conventional, len(commits))

	squashed, compliant := 0, 0
	for _, mr := range merged {
		bucketMR(&out.MRSizeBuckets, mr.DiffSize(), rs.Sizes)
		bucketFiles(&out.MRFileBuckets, mr.FilesChanged)
		if mr.Squash {
			squashed++
		}
		if config.MatchesAny(rs.BranchPrefixes, mr.SourceBranch) {
			compliant++
		}
	}
	out.SquashRate = ratio(squashed, len(merged))
	out.BranchNamingCompliance = ratio(compliant, len(merged))

	return out
}

// bucketMR assigns a merged MR to exactly one diff-line size bucket.
// Cut points are exclusive of the next bucket's start.
func bucketMR(b *domain.SizeBuckets, diff int, t config.SizeThresholds) {
	switch {
	case diff < t.Small:
		b.Small++
	case diff < t.Medium:
		b.Medium++
	case diff < t.Large:
		b.Large++
	default:
		b.XL++
	}
}

// bucketFiles assigns a merged MR to a files-changed bucket using the
// xs(≤3)/s(≤10)/m(≤25)/l(≤50)/xl(>50) classes.
func bucketFiles(b *domain.FileBuckets, files int) {
	switch {
	case files <= 3:
		b.XS++
	case files <= 10:
		b.S++
	case files <= 25:
		b.M++
	case files <= 50:
		b.L++
	default:
		b.XL++
	}
}
