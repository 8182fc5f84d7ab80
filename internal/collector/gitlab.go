package collector

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/toman-eng/devflow-metrics/internal/domain"
)

// approvedNoteFragment is the system note GitLab emits on approval;
// approvals are reconstructed from notes so they carry a timestamp.
const approvedNoteFragment = "approved this merge request"

// groupConcurrency bounds parallel project collection within a group
const groupConcurrency = 5

// gitlabCollector implements Collector using the GitLab API
type gitlabCollector struct {
	client      *gitlab.Client
	rateLimiter RateLimiter
}

// NewGitLabCollector creates a new GitLab collector
func NewGitLabCollector(baseURL, token string) (Collector, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(strings.TrimRight(baseURL, "/")+"/api/v4"))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	return &gitlabCollector{
		client:      client,
		rateLimiter: NewRateLimiter(),
	}, nil
}

// CollectProject retrieves the full record snapshot for one project
func (c *gitlabCollector) CollectProject(ctx context.Context, projectPath string, window domain.TimeWindow) (*domain.Input, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	project, resp, err := c.client.Projects.GetProject(projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", projectPath, err)
	}
	c.updateRateLimitFromResponse(resp)

	return c.collect(ctx, project, window)
}

// CollectGroup retrieves snapshots for every project of a group
func (c *gitlabCollector) CollectGroup(ctx context.Context, groupPath string, window domain.TimeWindow) ([]*domain.Input, error) {
	projects, err := c.listGroupProjects(ctx, groupPath)
	if err != nil {
		return nil, err
	}

	var (
		inputs []*domain.Input
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	semaphore := make(chan struct{}, groupConcurrency)

	for _, project := range projects {
		wg.Add(1)
		go func(p *gitlab.Project) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			in, err := c.collect(ctx, p, window)
			if err != nil {
				// One broken project must not sink the group report
				log.Printf("warning: collecting %s: %v", p.PathWithNamespace, err)
				return
			}
			mu.Lock()
			inputs = append(inputs, in)
			mu.Unlock()
		}(project)
	}
	wg.Wait()

	return inputs, nil
}

// collect gathers commits, merge requests and pipelines for a project
func (c *gitlabCollector) collect(ctx context.Context, project *gitlab.Project, window domain.TimeWindow) (*domain.Input, error) {
	commits, err := c.getCommits(ctx, project, window)
	if err != nil {
		return nil, err
	}

	statsBySHA := make(map[string]domain.CommitRecord, len(commits))
	for _, cr := range commits {
		statsBySHA[cr.SHA] = cr
	}

	mrs, err := c.getMergeRequests(ctx, project, window, statsBySHA)
	if err != nil {
		return nil, err
	}

	open, err := c.getOpenMergeRequests(ctx, project)
	if err != nil {
		return nil, err
	}

	pipelines, err := c.getPipelines(ctx, project, window)
	if err != nil {
		return nil, err
	}

	return &domain.Input{
		Window:            window,
		Commits:           commits,
		MergeRequests:     mrs,
		OpenMergeRequests: open,
		Pipelines:         pipelines,
	}, nil
}

// getCommits retrieves the project's commits within the window,
// including per-commit line stats
func (c *gitlabCollector) getCommits(ctx context.Context, project *gitlab.Project, window domain.TimeWindow) ([]domain.CommitRecord, error) {
	var all []domain.CommitRecord
	opts := &gitlab.ListCommitsOptions{
		Since:       gitlab.Ptr(window.Start),
		Until:       gitlab.Ptr(window.End),
		All:         gitlab.Ptr(true),
		WithStats:   gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		commits, resp, err := c.client.Commits.ListCommits(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list commits for %s: %w", project.PathWithNamespace, err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, commit := range commits {
			all = append(all, toCommitRecord(commit, project.ID))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// getMergeRequests retrieves MRs updated within the window together
// with their notes, commits, approvals and change counts
func (c *gitlabCollector) getMergeRequests(ctx context.Context, project *gitlab.Project, window domain.TimeWindow, statsBySHA map[string]domain.CommitRecord) ([]domain.MergeRequestRecord, error) {
	var all []domain.MergeRequestRecord
	opts := &gitlab.ListProjectMergeRequestsOptions{
		UpdatedAfter: gitlab.Ptr(window.Start),
		Scope:        gitlab.Ptr("all"),
		OrderBy:      gitlab.Ptr("updated_at"),
		Sort:         gitlab.Ptr("desc"),
		ListOptions:  gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		mrs, resp, err := c.client.MergeRequests.ListProjectMergeRequests(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list merge requests for %s: %w", project.PathWithNamespace, err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, mr := range mrs {
			record, err := c.enrichMergeRequest(ctx, project, mr, statsBySHA)
			if err != nil {
				// Keep collecting the remaining MRs
				log.Printf("warning: %s MR !%d: %v", project.PathWithNamespace, mr.IID, err)
				continue
			}
			all = append(all, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// getOpenMergeRequests retrieves the current open-MR snapshot without
// window filtering
func (c *gitlabCollector) getOpenMergeRequests(ctx context.Context, project *gitlab.Project) ([]domain.MergeRequestRecord, error) {
	var all []domain.MergeRequestRecord
	opts := &gitlab.ListProjectMergeRequestsOptions{
		State:       gitlab.Ptr("opened"),
		Scope:       gitlab.Ptr("all"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		mrs, resp, err := c.client.MergeRequests.ListProjectMergeRequests(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list open merge requests for %s: %w", project.PathWithNamespace, err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, mr := range mrs {
			all = append(all, toMergeRequestRecord(mr, project))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// enrichMergeRequest attaches notes, commits, approvals and the
// changed-file count to a listed MR
func (c *gitlabCollector) enrichMergeRequest(ctx context.Context, project *gitlab.Project, mr *gitlab.MergeRequest, statsBySHA map[string]domain.CommitRecord) (domain.MergeRequestRecord, error) {
	record := toMergeRequestRecord(mr, project)

	notes, err := c.getMergeRequestNotes(ctx, project.ID, mr.IID)
	if err != nil {
		return record, err
	}
	record.Notes = notes
	record.Approvals = approvalsFromNotes(notes)

	commits, err := c.getMergeRequestCommits(ctx, project.ID, mr.IID, statsBySHA)
	if err != nil {
		return record, err
	}
	record.Commits = commits
	for _, cr := range commits {
		record.Additions += cr.Additions
		record.Deletions += cr.Deletions
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return record, err
	}
	changes, resp, err := c.client.MergeRequests.GetMergeRequestChanges(project.ID, mr.IID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return record, fmt.Errorf("failed to get changes: %w", err)
	}
	c.updateRateLimitFromResponse(resp)
	record.FilesChanged = len(changes.Changes)

	return record, nil
}

func (c *gitlabCollector) getMergeRequestNotes(ctx context.Context, projectID, iid int) ([]domain.NoteRecord, error) {
	var all []domain.NoteRecord
	opts := &gitlab.ListMergeRequestNotesOptions{
		Sort:        gitlab.Ptr("asc"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		notes, resp, err := c.client.Notes.ListMergeRequestNotes(projectID, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, note := range notes {
			record := domain.NoteRecord{
				Author:     note.Author.Username,
				Body:       note.Body,
				System:     note.System,
				Resolvable: note.Resolvable,
				Resolved:   note.Resolved,
			}
			if note.CreatedAt != nil {
				record.CreatedAt = *note.CreatedAt
			}
			all = append(all, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *gitlabCollector) getMergeRequestCommits(ctx context.Context, projectID, iid int, statsBySHA map[string]domain.CommitRecord) ([]domain.CommitRecord, error) {
	var all []domain.CommitRecord
	opts := &gitlab.GetMergeRequestCommitsOptions{PerPage: 100}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		commits, resp, err := c.client.MergeRequests.GetMergeRequestCommits(projectID, iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list MR commits: %w", err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, commit := range commits {
			record := toCommitRecord(commit, projectID)
			// The MR commit listing omits line stats; reuse the
			// with-stats project listing when the SHA is known.
			if record.Additions == 0 && record.Deletions == 0 {
				if known, ok := statsBySHA[record.SHA]; ok {
					record.Additions = known.Additions
					record.Deletions = known.Deletions
					record.FilesChanged = known.FilesChanged
				}
			}
			all = append(all, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// getPipelines retrieves pipelines updated within the window together
// with their job breakdowns
func (c *gitlabCollector) getPipelines(ctx context.Context, project *gitlab.Project, window domain.TimeWindow) ([]domain.PipelineRecord, error) {
	var all []domain.PipelineRecord
	opts := &gitlab.ListProjectPipelinesOptions{
		UpdatedAfter: gitlab.Ptr(window.Start),
		OrderBy:      gitlab.Ptr("updated_at"),
		Sort:         gitlab.Ptr("desc"),
		ListOptions:  gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		pipelines, resp, err := c.client.Pipelines.ListProjectPipelines(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list pipelines for %s: %w", project.PathWithNamespace, err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, info := range pipelines {
			record, err := c.enrichPipeline(ctx, project.ID, info)
			if err != nil {
				log.Printf("warning: %s pipeline %d: %v", project.PathWithNamespace, info.ID, err)
				continue
			}
			all = append(all, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *gitlabCollector) enrichPipeline(ctx context.Context, projectID int, info *gitlab.PipelineInfo) (domain.PipelineRecord, error) {
	record := domain.PipelineRecord{
		ID:        info.ID,
		ProjectID: projectID,
		SHA:       info.SHA,
		Ref:       info.Ref,
		Status:    info.Status,
	}
	if info.CreatedAt != nil {
		record.CreatedAt = *info.CreatedAt
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return record, err
	}
	full, resp, err := c.client.Pipelines.GetPipeline(projectID, info.ID, gitlab.WithContext(ctx))
	if err != nil {
		return record, fmt.Errorf("failed to get pipeline: %w", err)
	}
	c.updateRateLimitFromResponse(resp)

	record.StartedAt = full.StartedAt
	record.FinishedAt = full.FinishedAt
	if full.CreatedAt != nil {
		record.CreatedAt = *full.CreatedAt
	}
	if full.Coverage != "" {
		if cov, err := strconv.ParseFloat(full.Coverage, 64); err == nil {
			record.Coverage = &cov
		}
	}

	jobs, err := c.getPipelineJobs(ctx, projectID, info.ID)
	if err != nil {
		return record, err
	}
	record.Jobs = jobs

	return record, nil
}

func (c *gitlabCollector) getPipelineJobs(ctx context.Context, projectID, pipelineID int) ([]domain.JobRecord, error) {
	var all []domain.JobRecord
	opts := &gitlab.ListJobsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		jobs, resp, err := c.client.Jobs.ListPipelineJobs(projectID, pipelineID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		c.updateRateLimitFromResponse(resp)

		for _, job := range jobs {
			record := domain.JobRecord{
				Name:       job.Name,
				Stage:      job.Stage,
				Status:     job.Status,
				CreatedAt:  job.CreatedAt,
				StartedAt:  job.StartedAt,
				FinishedAt: job.FinishedAt,
			}
			if job.Duration > 0 {
				record.DurationSec = gitlab.Ptr(job.Duration)
			}
			if job.QueuedDuration > 0 {
				record.QueuedSec = gitlab.Ptr(job.QueuedDuration)
			}
			all = append(all, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// listGroupProjects retrieves all projects of a group, subgroups
// included
func (c *gitlabCollector) listGroupProjects(ctx context.Context, groupPath string) ([]*gitlab.Project, error) {
	var all []*gitlab.Project
	opts := &gitlab.ListGroupProjectsOptions{
		IncludeSubGroups: gitlab.Ptr(true),
		OrderBy:          gitlab.Ptr("last_activity_at"),
		Sort:             gitlab.Ptr("desc"),
		ListOptions:      gitlab.ListOptions{PerPage: 100},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		projects, resp, err := c.client.Groups.ListGroupProjects(groupPath, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list projects for group %s: %w", groupPath, err)
		}
		c.updateRateLimitFromResponse(resp)

		all = append(all, projects...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// toCommitRecord maps a GitLab commit to the domain record
func toCommitRecord(commit *gitlab.Commit, projectID int) domain.CommitRecord {
	record := domain.CommitRecord{
		SHA:         commit.ID,
		Author:      commit.AuthorName,
		Message:     commit.Message,
		ParentCount: len(commit.ParentIDs),
		ProjectID:   projectID,
	}
	if commit.CreatedAt != nil {
		record.Timestamp = *commit.CreatedAt
	}
	if commit.Stats != nil {
		record.Additions = commit.Stats.Additions
		record.Deletions = commit.Stats.Deletions
	}
	return record
}

// toMergeRequestRecord maps a GitLab MR to the domain record
func toMergeRequestRecord(mr *gitlab.MergeRequest, project *gitlab.Project) domain.MergeRequestRecord {
	record := domain.MergeRequestRecord{
		IID:          mr.IID,
		ProjectID:    project.ID,
		ProjectPath:  project.PathWithNamespace,
		Title:        mr.Title,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		Labels:       mr.Labels,
		State:        domain.MRState(mr.State),
		Draft:        mr.Draft,
		MergedAt:     mr.MergedAt,
		ClosedAt:     mr.ClosedAt,
		HasConflicts: mr.HasConflicts,
		Squash:       mr.Squash,
	}
	if mr.Author != nil {
		record.Author = mr.Author.Username
	}
	if mr.MergedBy != nil {
		record.MergedBy = mr.MergedBy.Username
	}
	if mr.CreatedAt != nil {
		record.CreatedAt = *mr.CreatedAt
	}
	return record
}

// approvalsFromNotes reconstructs approvals from system notes, which
// carry the approval timestamp the approvals endpoint lacks
func approvalsFromNotes(notes []domain.NoteRecord) []domain.ApprovalRecord {
	var approvals []domain.ApprovalRecord
	for _, n := range notes {
		// Prefix match: "unapproved this merge request" must not count
		if n.System && strings.HasPrefix(strings.ToLower(n.Body), approvedNoteFragment) {
			approvals = append(approvals, domain.ApprovalRecord{
				Approver:   n.Author,
				ApprovedAt: n.CreatedAt,
			})
		}
	}
	return approvals
}

// updateRateLimitFromResponse updates the rate limiter from GitLab's
// RateLimit headers when present
func (c *gitlabCollector) updateRateLimitFromResponse(resp *gitlab.Response) {
	if resp == nil {
		return
	}
	remaining, err := strconv.Atoi(resp.Header.Get("RateLimit-Remaining"))
	if err != nil {
		return
	}
	var reset time.Time
	if epoch, err := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64); err == nil {
		reset = time.Unix(epoch, 0)
	}
	c.rateLimiter.UpdateLimit(remaining, reset)
}
