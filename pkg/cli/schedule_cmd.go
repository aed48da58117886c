package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fraud-lake/internal/domain"
	"fraud-lake/internal/service/ingestion"
	"fraud-lake/internal/service/pipeline"
	"fraud-lake/internal/service/scheduler"
)

func newScheduleCmd(e *env) *cobra.Command {
	var (
		spec     string
		jobsFile string
		replace  = replaceValue(ingestion.ReplaceAtomic)
		silver   bool
		dir      string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the bronze batch on a cron schedule",
		Long: `Runs the bronze batch (and, with --silver, the silver pipeline after it) on a
standard five-field cron schedule until SIGINT or SIGTERM. A run that is still
going when the next one is due is skipped.`,
		Example: `  fraudlake schedule --cron "0 2 * * *" --silver`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = e.cfg.SilverDir
			}

			s := scheduler.New(e.logger)
			if err := s.Add("bronze", spec, e.scheduledBatch(jobsFile, ingestion.ReplaceStrategy(replace), silver, dir)); err != nil {
				return err
			}
			if sched, err := scheduler.ParseSpec(spec); err == nil {
				e.logger.Info("schedule armed", "cron", spec, "silver", silver, "next", sched.Next(time.Now()))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron schedule, e.g. \"0 2 * * *\" or \"@hourly\"")
	cmd.Flags().StringVar(&jobsFile, "jobs", "", "YAML file listing the bronze jobs")
	cmd.Flags().Var(&replace, "replace", "Table replace strategy (atomic, drop-create)")
	cmd.Flags().BoolVar(&silver, "silver", false, "Run the silver pipeline after each bronze batch")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of silver SQL files")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func (e *env) scheduledBatch(jobsFile string, replace ingestion.ReplaceStrategy, silver bool, dir string) scheduler.Task {
	return func(ctx context.Context) error {
		run, err := e.runBronze(ctx, jobsFile, replace, ingestion.RunOptions{TriggerType: domain.TriggerTypeScheduled})
		if err != nil {
			return err
		}
		if err := batchError(run); err != nil {
			e.logger.Warn("scheduled bronze batch incomplete", "run_id", run.ID, "status", run.Status)
		}
		if !silver {
			return nil
		}
		results, err := e.runSilver(ctx, dir)
		if err != nil {
			return fmt.Errorf("silver: %w", err)
		}
		if pipeline.Failed(results) {
			return fmt.Errorf("silver: %w", errJobsFailed)
		}
		return nil
	}
}
