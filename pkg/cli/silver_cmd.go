package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fraud-lake/internal/domain"
	"fraud-lake/internal/service/pipeline"
)

type silverFileJSON struct {
	File       string `json:"file"`
	Statements int    `json:"statements"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func newSilverCmd(e *env) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "silver",
		Short: "Run the silver SQL files against the warehouse",
		Long:  "Executes every *.sql file in the silver directory in name order inside the SILVER schema.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = e.cfg.SilverDir
			}
			results, err := e.runSilver(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if err := printSilver(cmd, results); err != nil {
				return err
			}
			if pipeline.Failed(results) {
				return fmt.Errorf("silver: %w", errJobsFailed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of silver SQL files (default: SILVER_DIR or ./silver)")
	return cmd
}

// runSilver opens a session for one pass over dir.
func (e *env) runSilver(ctx context.Context, dir string) ([]domain.SilverFileResult, error) {
	sess, err := e.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close() //nolint:errcheck
	return pipeline.NewRunner(sess, e.logger).Run(ctx, dir)
}

func printSilver(cmd *cobra.Command, results []domain.SilverFileResult) error {
	if getOutputFormat(cmd) != "json" {
		return pipeline.WriteSummary(cmd.OutOrStdout(), results)
	}
	out := make([]silverFileJSON, len(results))
	for i, r := range results {
		out[i] = silverFileJSON{
			File:       r.File,
			Statements: r.Statements,
			Status:     domain.IngestionJobStatusOK,
			DurationMS: r.Duration.Milliseconds(),
		}
		if !r.OK() {
			out[i].Status = domain.IngestionJobStatusFailed
			out[i].Error = r.Err.Error()
		}
	}
	return PrintJSON(cmd.OutOrStdout(), out)
}
