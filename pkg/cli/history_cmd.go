package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fraud-lake/internal/api"
	"fraud-lake/internal/domain"
)

func newHistoryCmd(e *env) *cobra.Command {
	var (
		limit  int
		status string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded bronze runs, or show one run's jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metaDB, runs, err := e.openRunHistoryReader()
			if err != nil {
				return err
			}
			defer metaDB.Close() //nolint:errcheck

			if len(args) == 1 {
				run, err := runs.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printRun(cmd, run)
			}

			filter := domain.IngestionRunFilter{Page: domain.PageRequest{MaxResults: limit}}
			if status != "" {
				s := strings.ToUpper(status)
				filter.Status = &s
			}
			list, total, err := runs.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				out := api.IngestionRunList{Runs: make([]api.IngestionRun, len(list)), Total: total}
				for i, r := range list {
					out.Runs[i] = api.IngestionRunFromDomain(r)
				}
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			PrintTable(cmd.OutOrStdout(), []string{"run_id", "status", "trigger", "started", "ok", "failed"}, historyRows(list))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&status, "status", "", "Only list runs with this status (SUCCESS, PARTIAL, FAILED, RUNNING)")
	return cmd
}

func historyRows(runs []domain.IngestionRun) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		ok := 0
		for _, j := range r.Jobs {
			if j.OK() {
				ok++
			}
		}
		rows[i] = []string{
			r.ID,
			r.Status,
			r.TriggerType,
			r.StartedAt.Local().Format(time.DateTime),
			strconv.Itoa(ok),
			strconv.Itoa(len(r.Jobs) - ok),
		}
	}
	return rows
}
