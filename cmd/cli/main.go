package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/toman-eng/devflow-metrics/internal/aggregator"
	"github.com/toman-eng/devflow-metrics/internal/collector"
	"github.com/toman-eng/devflow-metrics/internal/config"
	"github.com/toman-eng/devflow-metrics/internal/domain"
	"github.com/toman-eng/devflow-metrics/internal/identity"
	"github.com/toman-eng/devflow-metrics/pkg/client"
)

var (
	windowDays int
	familyList string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "devflow-metrics",
	Short: "GitLab development flow metrics tool",
	Long: `A CLI tool for computing development flow metrics from GitLab activity.

This tool collects commit, merge request and pipeline data from GitLab
and computes flow, quality, code, pipeline, advanced and collaboration
metrics for projects, developers and groups.`,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute metric reports",
}

var reportProjectCmd = &cobra.Command{
	Use:   "project [path]",
	Short: "Report on a GitLab project",
	Long:  `Collect activity for a project and print its metric report. The path includes the namespace, e.g. group/repo.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectReport,
}

var reportDeveloperCmd = &cobra.Command{
	Use:   "developer [project] [username]",
	Short: "Report on one developer within a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeveloperReport,
}

var reportGroupCmd = &cobra.Command{
	Use:   "group [path]",
	Short: "Roll-up report across all projects of a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupReport,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the API server health",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&windowDays, "days", 0, "report window in days (default from config)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	reportCmd.PersistentFlags().StringVar(&familyList, "families", "", "comma-separated metric families (default all)")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(healthCmd)
	reportCmd.AddCommand(reportProjectCmd)
	reportCmd.AddCommand(reportDeveloperCmd)
	reportCmd.AddCommand(reportGroupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// toolkit bundles the pieces a report command needs
type toolkit struct {
	cfg     *config.Config
	col     collector.Collector
	service *aggregator.Service
}

func setup() (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	ruleSet, err := rules.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}
	filter, err := identity.NewFilter(rules.BotPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to compile bot patterns: %w", err)
	}

	col, err := collector.NewGitLabCollector(cfg.GitLabURL, cfg.GitLabToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize collector: %w", err)
	}

	return &toolkit{
		cfg:     cfg,
		col:     col,
		service: aggregator.NewService(ruleSet, filter, cfg.MaxWindowDays),
	}, nil
}

func (t *toolkit) window() domain.TimeWindow {
	days := windowDays
	if days <= 0 {
		days = t.cfg.DefaultWindowDays
	}
	return domain.NewWindow(days, time.Now())
}

func families() []string {
	if familyList == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(familyList, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func runProjectReport(cmd *cobra.Command, args []string) error {
	project := args[0]

	tk, err := setup()
	if err != nil {
		return err
	}

	ctx := context.Background()
	window := tk.window()

	fmt.Fprintf(os.Stderr, "Collecting data for project: %s\n", project)
	fmt.Fprintf(os.Stderr, "Time range: %s to %s\n",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))

	in, err := tk.col.CollectProject(ctx, project, window)
	if err != nil {
		return fmt.Errorf("failed to collect data: %w", err)
	}

	report, err := tk.service.Report(ctx, in, families())
	if err != nil {
		return fmt.Errorf("failed to compute report: %w", err)
	}

	return renderReport(report)
}

func runDeveloperReport(cmd *cobra.Command, args []string) error {
	project := args[0]
	username := args[1]

	tk, err := setup()
	if err != nil {
		return err
	}

	ctx := context.Background()
	window := tk.window()

	fmt.Fprintf(os.Stderr, "Collecting data for %s in project: %s\n", username, project)

	in, err := tk.col.CollectProject(ctx, project, window)
	if err != nil {
		return fmt.Errorf("failed to collect data: %w", err)
	}
	in.Subject = username

	report, err := tk.service.Report(ctx, in, families())
	if err != nil {
		return fmt.Errorf("failed to compute report: %w", err)
	}

	return renderReport(report)
}

func runGroupReport(cmd *cobra.Command, args []string) error {
	group := args[0]

	tk, err := setup()
	if err != nil {
		return err
	}

	ctx := context.Background()
	window := tk.window()

	fmt.Fprintf(os.Stderr, "Collecting data for group: %s\n", group)

	inputs, err := tk.col.CollectGroup(ctx, group, window)
	if err != nil {
		return fmt.Errorf("failed to collect data: %w", err)
	}

	rollup := aggregator.Rollup(group, window, inputs)

	if outputJSON {
		return printJSON(rollup)
	}

	fmt.Printf("\nGroup Report: %s\n", group)
	fmt.Printf("Time Range: %s to %s\n\n",
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Projects", fmt.Sprintf("%d", rollup.Projects)})
	table.Append([]string{"Contributors", fmt.Sprintf("%d", rollup.Contributors)})
	table.Append([]string{"Commits", fmt.Sprintf("%d", rollup.TotalCommits)})
	table.Append([]string{"Merged MRs", fmt.Sprintf("%d", rollup.TotalMergedMRs)})
	table.Append([]string{"Lines Changed", fmt.Sprintf("%d", rollup.TotalLinesChanged)})
	table.Append([]string{"Time to Merge P50 (h)", fmtFloat(rollup.TimeToMergeP50Hours)})
	table.Append([]string{"Time to First Review P50 (h)", fmtFloat(rollup.TimeToFirstReviewP50Hours)})
	table.Append([]string{"Cross-project Contributors", fmt.Sprintf("%d", rollup.CrossProjectContributors)})
	table.Render()

	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	c := client.NewClient(cfg.APIEndpoint)
	if err := c.HealthCheck(); err != nil {
		return fmt.Errorf("API at %s is unhealthy: %w", cfg.APIEndpoint, err)
	}

	fmt.Printf("API at %s is healthy\n", cfg.APIEndpoint)
	return nil
}

func renderReport(report *domain.Report) error {
	if outputJSON {
		return printJSON(report)
	}

	subject := report.Subject
	if subject == "" {
		subject = "(project-wide)"
	}
	fmt.Printf("\nReport: %s\n", subject)
	fmt.Printf("Time Range: %s to %s (%d days)\n\n",
		report.WindowStart.Format("2006-01-02"), report.WindowEnd.Format("2006-01-02"), report.WindowDays)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Family", "Metric", "Value"})

	if f := report.Flow; f != nil {
		table.Append([]string{"flow", "Merged MRs", fmt.Sprintf("%d", f.MergedCount)})
		table.Append([]string{"flow", "Total Diff Size", fmt.Sprintf("%d", f.TotalDiffSize)})
		table.Append([]string{"flow", "Coding Time P50 (h)", fmtFloat(f.CodingTimeP50Hours)})
		table.Append([]string{"flow", "Time to First Review P50 (h)", fmtFloat(f.TimeToFirstReviewP50Hours)})
		table.Append([]string{"flow", "Time to First Review P90 (h)", fmtFloat(f.TimeToFirstReviewP90Hours)})
		table.Append([]string{"flow", "Time to Merge P50 (h)", fmtFloat(f.TimeToMergeP50Hours)})
		table.Append([]string{"flow", "Time to Merge P90 (h)", fmtFloat(f.TimeToMergeP90Hours)})
		table.Append([]string{"flow", "Open MRs", fmt.Sprintf("%d", f.OpenCount)})
		table.Append([]string{"flow", "Draft MRs", fmt.Sprintf("%d", f.DraftCount)})
		table.Append([]string{"flow", "Projects Touched", fmt.Sprintf("%d", f.ProjectsTouched)})
	}

	if q := report.Quality; q != nil {
		table.Append([]string{"quality", "Rework Ratio", fmtFloat(q.ReworkRatio)})
		table.Append([]string{"quality", "Revert Rate", fmtFloat(q.RevertRate)})
		table.Append([]string{"quality", "First Attempt Success Rate", fmtFloat(q.FirstAttemptSuccessRate)})
		table.Append([]string{"quality", "Pipeline Duration P50 (min)", fmtFloat(q.PipelineDurationP50Min)})
		table.Append([]string{"quality", "Pipeline Duration P95 (min)", fmtFloat(q.PipelineDurationP95Min)})
		table.Append([]string{"quality", "Hotfix Rate", fmtFloat(q.HotfixRate)})
		table.Append([]string{"quality", "Conflict Rate", fmtFloat(q.ConflictRate)})
	}

	if c := report.Code; c != nil {
		table.Append([]string{"code", "Commits", fmt.Sprintf("%d", c.CommitCount)})
		table.Append([]string{"code", "Commits per Day", fmt.Sprintf("%.2f", c.CommitsPerDay)})
		table.Append([]string{"code", "Commit Size P50", fmtFloat(c.CommitSizeP50)})
		table.Append([]string{"code", "Commit Size P95", fmtFloat(c.CommitSizeP95)})
		table.Append([]string{"code", "Squash Rate", fmtFloat(c.SquashRate)})
		table.Append([]string{"code", "Conventional Commit Rate", fmtFloat(c.ConventionalCommitRate)})
		table.Append([]string{"code", "Branch Naming Compliance", fmtFloat(c.BranchNamingCompliance)})
		table.Append([]string{"code", "MR Sizes S/M/L/XL", fmt.Sprintf("%d/%d/%d/%d",
			c.MRSizeBuckets.Small, c.MRSizeBuckets.Medium, c.MRSizeBuckets.Large, c.MRSizeBuckets.XL)})
	}

	if p := report.Pipeline; p != nil {
		table.Append([]string{"pipeline", "Pipelines", fmt.Sprintf("%d", p.PipelineCount)})
		table.Append([]string{"pipeline", "Retry Rate", fmtFloat(p.RetryRate)})
		table.Append([]string{"pipeline", "Wait Time P50 (min)", fmtFloat(p.WaitTimeP50Min)})
		table.Append([]string{"pipeline", "Queue Time P50 (s)", fmtFloat(p.QueueTimeP50Sec)})
		table.Append([]string{"pipeline", "Deployments", fmt.Sprintf("%d", p.DeploymentCount)})
		table.Append([]string{"pipeline", "Main Branch Success Rate", fmtFloat(p.MainBranchSuccessRate)})
		if p.CoverageTrend != nil {
			table.Append([]string{"pipeline", "Coverage Trend", *p.CoverageTrend})
		}
	}

	if a := report.Advanced; a != nil {
		table.Append([]string{"advanced", "Bus Factor (Gini)", fmtFloat(a.BusFactorGini)})
		table.Append([]string{"advanced", "Top Authors Share (%)", fmtFloat(a.TopAuthorsShare)})
		if a.PeakResponseHour != nil {
			table.Append([]string{"advanced", "Peak Response Hour (UTC)", fmt.Sprintf("%02d:00", *a.PeakResponseHour)})
		}
		table.Append([]string{"advanced", "Draft Duration P50 (h)", fmtFloat(a.DraftDurationP50Hours)})
		table.Append([]string{"advanced", "Review Rounds Median", fmtFloat(a.IterationCountMedian)})
		table.Append([]string{"advanced", "Idle Time P50 (h)", fmtFloat(a.IdleTimeP50Hours)})
		if a.CrossTeamAvailable {
			table.Append([]string{"advanced", "Cross-team Review Ratio", fmtFloat(a.CrossTeamRatio)})
		}
	}

	if col := report.Collaboration; col != nil {
		table.Append([]string{"collaboration", "Comments Given", fmt.Sprintf("%d", col.CommentsGiven)})
		table.Append([]string{"collaboration", "Comments Received", fmt.Sprintf("%d", col.CommentsReceived)})
		table.Append([]string{"collaboration", "Approvals Given", fmt.Sprintf("%d", col.ApprovalsGiven)})
		table.Append([]string{"collaboration", "Thread Resolution Rate", fmtFloat(col.ThreadResolutionRate)})
		table.Append([]string{"collaboration", "Self-merge Ratio", fmtFloat(col.SelfMergeRatio)})
		table.Append([]string{"collaboration", "Review Turnaround P50 (h)", fmtFloat(col.ReviewTurnaroundP50Hours)})
	}

	table.Render()

	for fam, msg := range report.Errors {
		fmt.Fprintf(os.Stderr, "Warning: family %s failed: %s\n", fam, msg)
	}

	return nil
}

// fmtFloat renders a nullable metric, "-" when no value exists
func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
