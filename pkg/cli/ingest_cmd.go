package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fraud-lake/internal/api"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/service/ingestion"
)

// errJobsFailed makes the process exit non-zero after a summary has already
// reported which jobs failed.
var errJobsFailed = errors.New("one or more jobs failed")

func newIngestCmd(e *env) *cobra.Command {
	var (
		jobsFile string
		replace  = replaceValue(ingestion.ReplaceAtomic)
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the bronze CSV files into the warehouse",
		Long: `Runs every bronze job in order on one warehouse session: upload the file to the
stage, parse it with the local header, replace the target table. A failing job
does not stop the batch; the command exits non-zero when any job failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, err := e.runBronze(cmd.Context(), jobsFile, ingestion.ReplaceStrategy(replace), ingestion.RunOptions{})
			if err != nil {
				return err
			}
			if err := printRun(cmd, run); err != nil {
				return err
			}
			return batchError(run)
		},
	}
	cmd.Flags().StringVar(&jobsFile, "jobs", "", "YAML file listing the bronze jobs (default: built-in jobs or JOBS_FILE)")
	cmd.Flags().Var(&replace, "replace", "Table replace strategy (atomic, drop-create)")
	return cmd
}

// replaceValue is a pflag.Value that rejects unknown strategies at parse time.
type replaceValue ingestion.ReplaceStrategy

var _ pflag.Value = (*replaceValue)(nil)

func (v *replaceValue) String() string { return string(*v) }

func (v *replaceValue) Set(s string) error {
	strategy, err := ingestion.ParseReplaceStrategy(s)
	if err != nil {
		return err
	}
	*v = replaceValue(strategy)
	return nil
}

func (v *replaceValue) Type() string { return "strategy" }

func printRun(cmd *cobra.Command, run *domain.IngestionRun) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), api.IngestionRunFromDomain(*run))
	}
	return ingestion.WriteSummary(cmd.OutOrStdout(), run)
}

func batchError(run *domain.IngestionRun) error {
	failed := 0
	for _, j := range run.Jobs {
		if !j.OK() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d jobs: %w", failed, len(run.Jobs), errJobsFailed)
}
