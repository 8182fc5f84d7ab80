package domain

import "time"

// Metric family names used for family selection and the error map
const (
	FamilyFlow          = "flow"
	FamilyQuality       = "quality"
	FamilyCode          = "code"
	FamilyPipeline      = "pipeline"
	FamilyAdvanced      = "advanced"
	FamilyCollaboration = "collaboration"
)

// AllFamilies lists every metric family in rendering order
var AllFamilies = []string{
	FamilyFlow,
	FamilyQuality,
	FamilyCode,
	FamilyPipeline,
	FamilyAdvanced,
	FamilyCollaboration,
}

// Input is the normalized in-memory snapshot one report is computed
// from. Subject is a username for developer reports and empty for
// project-wide reports. All collections are read-only during
// aggregation.
type Input struct {
	Subject           string
	Window            TimeWindow
	Commits           []CommitRecord
	MergeRequests     []MergeRequestRecord
	OpenMergeRequests []MergeRequestRecord
	Pipelines         []PipelineRecord
}

// FlowMetrics covers throughput and cycle-time measurements
type FlowMetrics struct {
	MergedCount              int      `json:"merged_count"`
	TotalDiffSize            int      `json:"total_diff_size"`
	CodingTimeP50Hours       *float64 `json:"coding_time_p50_hours,omitempty"`
	TimeToFirstReviewP50Hours *float64 `json:"time_to_first_review_p50_hours,omitempty"`
	TimeToFirstReviewP90Hours *float64 `json:"time_to_first_review_p90_hours,omitempty"`
	TimeToMergeP50Hours      *float64 `json:"time_to_merge_p50_hours,omitempty"`
	TimeToMergeP90Hours      *float64 `json:"time_to_merge_p90_hours,omitempty"`
	OpenCount                int      `json:"open_count"`
	DraftCount               int      `json:"draft_count"`
	ProjectsTouched          int      `json:"projects_touched"`
}

// QualityMetrics covers rework, reverts, conflicts and CI outcomes
type QualityMetrics struct {
	MergedCount             int      `json:"merged_count"`
	ReworkRatio             *float64 `json:"rework_ratio,omitempty"`
	RevertRate              *float64 `json:"revert_rate,omitempty"`
	RevertedCount           int      `json:"reverted_count"`
	FirstAttemptSuccessRate *float64 `json:"first_attempt_success_rate,omitempty"`
	PipelineDurationP50Min  *float64 `json:"pipeline_duration_p50_min,omitempty"`
	PipelineDurationP95Min  *float64 `json:"pipeline_duration_p95_min,omitempty"`
	HotfixRate              *float64 `json:"hotfix_rate,omitempty"`
	ConflictRate            *float64 `json:"conflict_rate,omitempty"`
}

// SizeBuckets counts merged MRs per diff-line size class
type SizeBuckets struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
	XL     int `json:"xl"`
}

// FileBuckets counts merged MRs per files-changed size class
type FileBuckets struct {
	XS int `json:"xs"`
	S  int `json:"s"`
	M  int `json:"m"`
	L  int `json:"l"`
	XL int `json:"xl"`
}

// CodeMetrics covers commit and merge-request shape characteristics
type CodeMetrics struct {
	CommitCount            int         `json:"commit_count"`
	CommitsPerDay          float64     `json:"commits_per_day"`
	CommitsPerWeek         float64     `json:"commits_per_week"`
	CommitSizeP50          *float64    `json:"commit_size_p50,omitempty"`
	CommitSizeP95          *float64    `json:"commit_size_p95,omitempty"`
	CommitSizeAvg          *float64    `json:"commit_size_avg,omitempty"`
	MRSizeBuckets          SizeBuckets `json:"mr_size_buckets"`
	MRFileBuckets          FileBuckets `json:"mr_file_buckets"`
	SquashRate             *float64    `json:"squash_rate,omitempty"`
	AvgMessageLength       *float64    `json:"avg_message_length,omitempty"`
	ConventionalCommitRate *float64    `json:"conventional_commit_rate,omitempty"`
	BranchNamingCompliance *float64    `json:"branch_naming_compliance,omitempty"`
}

// JobFailureRate is one entry of the failed-job leaderboard
type JobFailureRate struct {
	Name         string  `json:"name"`
	FailureCount int     `json:"failure_count"`
	TotalRuns    int     `json:"total_runs"`
	FailureRate  float64 `json:"failure_rate"`
}

// StageDuration reports the average job duration per pipeline stage
type StageDuration struct {
	Stage          string  `json:"stage"`
	JobCount       int     `json:"job_count"`
	AvgDurationSec float64 `json:"avg_duration_sec"`
}

// JobOutcomes counts job terminal states across all pipelines
type JobOutcomes struct {
	Success  int `json:"success"`
	Failed   int `json:"failed"`
	Canceled int `json:"canceled"`
	Skipped  int `json:"skipped"`
}

// PipelineMetrics covers CI health and trend classification
type PipelineMetrics struct {
	PipelineCount            int               `json:"pipeline_count"`
	FailedJobs               []JobFailureRate  `json:"failed_jobs,omitempty"`
	DistinctSHAs             int               `json:"distinct_shas"`
	RetriedUnits             int               `json:"retried_units"`
	RetryRate                *float64          `json:"retry_rate,omitempty"`
	WaitTimeP50Min           *float64          `json:"wait_time_p50_min,omitempty"`
	WaitTimeP95Min           *float64          `json:"wait_time_p95_min,omitempty"`
	QueueTimeP50Sec          *float64          `json:"queue_time_p50_sec,omitempty"`
	QueueTimeP90Sec          *float64          `json:"queue_time_p90_sec,omitempty"`
	DeploymentCount          int               `json:"deployment_count"`
	JobDurationTrends        map[string]string `json:"job_duration_trends,omitempty"`
	MainBranchSuccessRate    *float64          `json:"main_branch_success_rate,omitempty"`
	FeatureBranchSuccessRate *float64          `json:"feature_branch_success_rate,omitempty"`
	CoverageTrend            *string           `json:"coverage_trend,omitempty"`
	JobOutcomes              JobOutcomes       `json:"job_outcomes"`
	StageDurations           []StageDuration   `json:"stage_durations,omitempty"`
}

// AdvancedMetrics covers concentration, responsiveness and review-loop
// heuristics
type AdvancedMetrics struct {
	BusFactorGini        *float64 `json:"bus_factor_gini,omitempty"`
	TopAuthorsShare      *float64 `json:"top_authors_share,omitempty"`
	ResponseHourHistogram [24]int `json:"response_hour_histogram"`
	PeakResponseHour     *int     `json:"peak_response_hour,omitempty"`
	BatchSizeP50         *float64 `json:"batch_size_p50,omitempty"`
	BatchSizeP95         *float64 `json:"batch_size_p95,omitempty"`
	DraftDurationP50Hours *float64 `json:"draft_duration_p50_hours,omitempty"`
	DraftedCount         int      `json:"drafted_count"`
	IterationCountMedian *float64 `json:"iteration_count_median,omitempty"`
	IdleTimeP50Hours     *float64 `json:"idle_time_p50_hours,omitempty"`
	CrossTeamAvailable   bool     `json:"cross_team_available"`
	CrossTeamRatio       *float64 `json:"cross_team_ratio,omitempty"`
}

// CollaborationMetrics covers review give/take balance
type CollaborationMetrics struct {
	CommentsGiven           int      `json:"comments_given"`
	CommentsReceived        int      `json:"comments_received"`
	ApprovalsGiven          int      `json:"approvals_given"`
	ThreadResolutionRate    *float64 `json:"thread_resolution_rate,omitempty"`
	SelfMergeRatio          *float64 `json:"self_merge_ratio,omitempty"`
	ReviewTurnaroundP50Hours *float64 `json:"review_turnaround_p50_hours,omitempty"`
	ReviewDepthAvgChars     *float64 `json:"review_depth_avg_chars,omitempty"`
}

// Report is the assembled per-subject response envelope. Families that
// failed during aggregation are absent and explained in Errors.
type Report struct {
	ReportID      string                `json:"report_id"`
	Subject       string                `json:"subject"`
	WindowStart   time.Time             `json:"window_start"`
	WindowEnd     time.Time             `json:"window_end"`
	WindowDays    int                   `json:"window_days"`
	Flow          *FlowMetrics          `json:"flow,omitempty"`
	Quality       *QualityMetrics       `json:"quality,omitempty"`
	Code          *CodeMetrics          `json:"code,omitempty"`
	Pipeline      *PipelineMetrics      `json:"pipeline,omitempty"`
	Advanced      *AdvancedMetrics      `json:"advanced,omitempty"`
	Collaboration *CollaborationMetrics `json:"collaboration,omitempty"`
	Errors        map[string]string     `json:"errors,omitempty"`
}

// RollupReport aggregates several projects or developers into one
// organization-level summary
type RollupReport struct {
	ReportID                 string    `json:"report_id"`
	Subject                  string    `json:"subject"`
	WindowStart              time.Time `json:"window_start"`
	WindowEnd                time.Time `json:"window_end"`
	WindowDays               int       `json:"window_days"`
	Projects                 int       `json:"projects"`
	Contributors             int       `json:"contributors"`
	TotalCommits             int       `json:"total_commits"`
	TotalMergedMRs           int       `json:"total_merged_mrs"`
	TotalLinesChanged        int       `json:"total_lines_changed"`
	TimeToMergeP50Hours      *float64  `json:"time_to_merge_p50_hours,omitempty"`
	TimeToFirstReviewP50Hours *float64 `json:"time_to_first_review_p50_hours,omitempty"`
	CrossProjectContributors int       `json:"cross_project_contributors"`
}
