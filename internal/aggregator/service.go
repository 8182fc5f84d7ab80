// Package aggregator turns normalized GitLab record collections into
// per-family metric reports. Every family aggregator is a pure
// function of its input snapshot and the compiled rules; the Service
// fans the requested families out concurrently and isolates their
// failures from one another.
package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	apperrors "github.com/toman-eng/devflow-metrics/internal/errors"
	"github.com/toman-eng/devflow-metrics/internal/identity"
)

// familyFunc computes one metric family and writes it into the report
type familyFunc func(in *domain.Input, rs *config.RuleSet, r *domain.Report)

var familyFuncs = map[string]familyFunc{
	domain.FamilyFlow: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Flow = Flow(in, rs)
	},
	domain.FamilyQuality: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Quality = Quality(in, rs)
	},
	domain.FamilyCode: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Code = Code(in, rs)
	},
	domain.FamilyPipeline: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Pipeline = Pipeline(in, rs)
	},
	domain.FamilyAdvanced: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Advanced = Advanced(in, rs)
	},
	domain.FamilyCollaboration: func(in *domain.Input, rs *config.RuleSet, r *domain.Report) {
		r.Collaboration = Collaboration(in, rs)
	},
}

// Service assembles reports from record snapshots
type Service struct {
	rules         *config.RuleSet
	filter        *identity.Filter
	maxWindowDays int
}

// NewService creates a new aggregation service
func NewService(rules *config.RuleSet, filter *identity.Filter, maxWindowDays int) *Service {
	return &Service{
		rules:         rules,
		filter:        filter,
		maxWindowDays: maxWindowDays,
	}
}

// Report runs the requested metric families over the input and merges
// their results into one envelope. A family that panics or errors is
// recorded in the envelope's error map without blocking its siblings.
// An empty family list means all families.
func (s *Service) Report(ctx context.Context, in *domain.Input, families []string) (*domain.Report, error) {
	if in.Window.Days <= 0 {
		return nil, apperrors.NewBadRequestError("window days must be positive")
	}
	if in.Window.Days > s.maxWindowDays {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("window days must not exceed %d", s.maxWindowDays))
	}
	if len(families) == 0 {
		families = domain.AllFamilies
	}
	for _, fam := range families {
		if _, ok := familyFuncs[fam]; !ok {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown metric family %q", fam))
		}
	}

	cleaned := s.sanitize(in)
	report := &domain.Report{
		ReportID:    uuid.New().String(),
		Subject:     in.Subject,
		WindowStart: in.Window.Start,
		WindowEnd:   in.Window.End,
		WindowDays:  in.Window.Days,
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, fam := range families {
		// Aggregation is in-memory and fast; cancellation is only
		// checked between family launches.
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		wg.Add(1)
		go func(fam string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if report.Errors == nil {
						report.Errors = make(map[string]string)
					}
					report.Errors[fam] = fmt.Sprintf("%v", r)
					mu.Unlock()
				}
			}()

			partial := &domain.Report{}
			familyFuncs[fam](cleaned, s.rules, partial)

			mu.Lock()
			mergeFamily(report, partial, fam)
			mu.Unlock()
		}(fam)
	}
	wg.Wait()

	return report, nil
}

// mergeFamily copies the one populated family of partial into dst
func mergeFamily(dst, partial *domain.Report, fam string) {
	switch fam {
	case domain.FamilyFlow:
		dst.Flow = partial.Flow
	case domain.FamilyQuality:
		dst.Quality = partial.Quality
	case domain.FamilyCode:
		dst.Code = partial.Code
	case domain.FamilyPipeline:
		dst.Pipeline = partial.Pipeline
	case domain.FamilyAdvanced:
		dst.Advanced = partial.Advanced
	case domain.FamilyCollaboration:
		dst.Collaboration = partial.Collaboration
	}
}

// sanitize returns a copy of the input with bot actors removed and
// records outside the window dropped. The open-MR snapshot keeps its
// out-of-window entries on purpose. The copy is what makes concurrent
// family runs safe: they share it read-only.
func (s *Service) sanitize(in *domain.Input) *domain.Input {
	out := &domain.Input{
		Subject: in.Subject,
		Window:  in.Window,
	}

	for i := range in.Commits {
		c := in.Commits[i]
		if !in.Window.Contains(c.Timestamp) || s.filter.IsBot(c.Author) {
			continue
		}
		out.Commits = append(out.Commits, c)
	}

	for i := range in.MergeRequests {
		mr := in.MergeRequests[i]
		if s.filter.IsBot(mr.Author) {
			continue
		}
		inWindow := in.Window.Contains(mr.CreatedAt) ||
			(mr.MergedAt != nil && in.Window.Contains(*mr.MergedAt))
		if !inWindow {
			continue
		}
		out.MergeRequests = append(out.MergeRequests, s.scrubMR(mr))
	}

	for i := range in.OpenMergeRequests {
		mr := in.OpenMergeRequests[i]
		if s.filter.IsBot(mr.Author) {
			continue
		}
		out.OpenMergeRequests = append(out.OpenMergeRequests, s.scrubMR(mr))
	}

	for i := range in.Pipelines {
		p := in.Pipelines[i]
		if !in.Window.Contains(p.CreatedAt) {
			continue
		}
		out.Pipelines = append(out.Pipelines, p)
	}

	return out
}

// scrubMR removes bot-authored notes, approvals and commits nested in
// an MR. System notes are kept regardless of author: draft and ready
// transitions matter even when emitted by automation.
func (s *Service) scrubMR(mr domain.MergeRequestRecord) domain.MergeRequestRecord {
	if len(mr.Notes) > 0 {
		notes := make([]domain.NoteRecord, 0, len(mr.Notes))
		for _, n := range mr.Notes {
			if !n.System && s.filter.IsBot(n.Author) {
				continue
			}
			notes = append(notes, n)
		}
		mr.Notes = notes
	}
	if len(mr.Approvals) > 0 {
		approvals := make([]domain.ApprovalRecord, 0, len(mr.Approvals))
		for _, a := range mr.Approvals {
			if s.filter.IsBot(a.Approver) {
				continue
			}
			approvals = append(approvals, a)
		}
		mr.Approvals = approvals
	}
	if len(mr.Commits) > 0 {
		commits := make([]domain.CommitRecord, 0, len(mr.Commits))
		for _, c := range mr.Commits {
			if s.filter.IsBot(c.Author) {
				continue
			}
			commits = append(commits, c)
		}
		mr.Commits = commits
	}
	return mr
}
