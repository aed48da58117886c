package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fraud-lake/internal/domain"
)

// WriteSummary prints one line per silver file and a closing tally.
func WriteSummary(w io.Writer, results []domain.SilverFileResult) error {
	if _, err := fmt.Fprintln(w, "Silver summary:"); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(tw, "  %s\tOK\t%d statements\n", r.File, r.Statements) //nolint:errcheck
			continue
		}
		failed++
		fmt.Fprintf(tw, "  %s\tFAILED\t%v\n", r.File, r.Err) //nolint:errcheck
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d OK, %d FAILED\n", len(results)-failed, failed)
	return err
}

// Failed reports whether any file failed.
func Failed(results []domain.SilverFileResult) bool {
	for _, r := range results {
		if !r.OK() {
			return true
		}
	}
	return false
}
