package cron

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vigil-agent/vigil/internal/report"
)

// ReportGenerator is the subset of report.Generator needed by the job.
// Defined here to keep the scheduler decoupled from report internals.
type ReportGenerator interface {
	Generate(ctx context.Context, focus string) (report.Report, error)
}

// ScheduledReportJob produces an executive report on a cron schedule and
// writes it under Dir, one date-stamped markdown file per run.
type ScheduledReportJob struct {
	Generator    ReportGenerator
	Dir          string
	Focus        string
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 7 * * *"

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Compile-time interface check.
var _ Job = (*ScheduledReportJob)(nil)

// Name implements Job.
func (j *ScheduledReportJob) Name() string { return "scheduled_report" }

// Schedule implements Job.
func (j *ScheduledReportJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 7 * * *"
}

// Run generates one report and persists it.
func (j *ScheduledReportJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	rep, err := j.Generator.Generate(ctx, j.Focus)
	if err != nil {
		return fmt.Errorf("cron: scheduled report (run %s): %w", rep.RunID, err)
	}

	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return fmt.Errorf("cron: create report dir: %w", err)
	}
	path := filepath.Join(j.Dir, now().UTC().Format("2006-01-02T15-04")+".md")
	if err := os.WriteFile(path, []byte(rep.Markdown), 0o644); err != nil {
		return fmt.Errorf("cron: write report: %w", err)
	}

	j.Logger.Info("cron: report written",
		"path", path,
		"run_id", rep.RunID,
		"artifacts", len(rep.Artifacts),
	)
	return nil
}
