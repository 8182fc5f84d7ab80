package aggregator

import (
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// Collaboration computes give/take review metrics. Direction (given vs
// received) is derived by comparing each note's author to the owning
// MR's author, never from a stored role field.
func Collaboration(in *domain.Input, _ *config.RuleSet) *domain.CollaborationMetrics {
	out := &domain.CollaborationMetrics{}

	var depthChars []float64
	var turnaround []float64
	resolvable, resolved := 0, 0

	for i := range in.MergeRequests {
		mr := &in.MergeRequests[i]
		asAuthor := in.Subject == "" || mr.Author == in.Subject
		asReviewer := in.Subject == "" || mr.Author != in.Subject

		var firstBySubject *domain.NoteRecord
		for j := range mr.Notes {
			n := &mr.Notes[j]
			if n.System {
				continue
			}
			given := n.Author != mr.Author && (in.Subject == "" || n.Author == in.Subject)
			received := asAuthor && n.Author != mr.Author

			if given {
				out.CommentsGiven++
				depthChars = append(depthChars, float64(len(n.Body)))
				if asReviewer && (firstBySubject == nil || n.CreatedAt.Before(firstBySubject.CreatedAt)) {
					firstBySubject = n
				}
			}
			if received {
				out.CommentsReceived++
			}
			if asAuthor && n.Resolvable {
				resolvable++
				if n.Resolved {
					resolved++
				}
			}
		}

		if asReviewer && firstBySubject != nil {
			if h := firstBySubject.CreatedAt.Sub(mr.CreatedAt).Hours(); h >= 0 {
				turnaround = append(turnaround, h)
			}
		}

		for _, a := range mr.Approvals {
			if a.Approver != mr.Author && (in.Subject == "" || a.Approver == in.Subject) {
				out.ApprovalsGiven++
			}
		}
	}

	out.ThreadResolutionRate = ratio(resolved, resolvable)
	out.ReviewTurnaroundP50Hours = medianOf(turnaround)
	out.ReviewDepthAvgChars = averageOf(depthChars)

	merged := authored(mergedIn(in), in.Subject)
	selfMerged := 0
	for _, mr := range merged {
		if !hasExternalApproval(mr) {
			selfMerged++
		}
	}
	out.SelfMergeRatio = ratio(selfMerged, len(merged))

	return out
}

// hasExternalApproval reports whether anyone other than the author
// approved the MR.
func hasExternalApproval(mr *domain.MergeRequestRecord) bool {
	for _, a := range mr.Approvals {
		if a.Approver != mr.Author {
			return true
		}
	}
	return false
}
