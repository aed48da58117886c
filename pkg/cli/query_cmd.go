package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fraud-lake/internal/api"
	"fraud-lake/internal/service/query"
)

func newQueryCmd(e *env) *cobra.Command {
	var maxRows int
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL query against the warehouse",
		Example: `  fraudlake query "SELECT * FROM SILVER.dim_merchant LIMIT 5"
  fraudlake query -o json "SELECT COUNT(*) AS n FROM BRONZE.TRANSACTIONS"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := e.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			svc := query.NewService(sess, e.logger)
			svc.SetMaxRows(maxRows)
			res, err := svc.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(out, api.QueryResponse{
					Columns:   res.Columns,
					Rows:      res.Rows,
					RowCount:  res.RowCount,
					Truncated: res.Truncated,
				})
			}
			PrintTable(out, res.Columns, recordRows(res.Columns, res.Records()))
			if res.Truncated {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "(showing first %d rows)\n", res.RowCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", query.DefaultMaxRows, "Maximum rows to return")
	return cmd
}
