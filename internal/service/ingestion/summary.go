package ingestion

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fraud-lake/internal/domain"
)

// WriteSummary prints one OK or FAILED line per table in run order, followed
// by the totals.
func WriteSummary(w io.Writer, run *domain.IngestionRun) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Ingestion summary:")
	ok := 0
	for _, j := range run.Jobs {
		if j.OK() {
			ok++
			fmt.Fprintf(tw, "  %s\t%s\t%d rows\n", j.Table, domain.IngestionJobStatusOK, j.RowCount)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", j.Table, domain.IngestionJobStatusFailed, j.Step)
	}
	fmt.Fprintf(tw, "%d OK, %d FAILED\n", ok, len(run.Jobs)-ok)
	return tw.Flush()
}
