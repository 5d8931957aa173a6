package commands

import (
	"fmt"
	"io"

	"github.com/wonny/stockgame/internal/contracts"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════"
	ruleLight = "───────────────────────────────────────────────────────────"
)

// printProgress writes one progress line
// Example: [classify] Classifying companies [20/57]
func printProgress(w io.Writer) contracts.ProgressFunc {
	return func(e contracts.ProgressEvent) {
		if e.Total > 0 {
			fmt.Fprintf(w, "[%s] %s [%d/%d]\n", e.Stage, e.Message, e.Processed, e.Total)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", e.Stage, e.Message)
	}
}

// printResults writes a summary block per stage result
func printResults(w io.Writer, results []*contracts.StageResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, ruleHeavy)
		fmt.Fprintf(w, "  %s (%s)\n", r.Stage, r.Stage.Description())
		fmt.Fprintln(w, ruleLight)
		fmt.Fprintf(w, "  Run ID    : %s\n", r.RunID)
		fmt.Fprintf(w, "  Processed : %d\n", r.Processed)
		fmt.Fprintf(w, "  Succeeded : %d\n", r.Succeeded)
		fmt.Fprintf(w, "  Skipped   : %d\n", r.Skipped)
		fmt.Fprintf(w, "  Failed    : %d\n", r.Failed)
		fmt.Fprintf(w, "  Duration  : %.2fs\n", float64(r.Duration)/1000)
		if r.Error != "" {
			fmt.Fprintf(w, "  Error     : %s\n", r.Error)
		}
		fmt.Fprintln(w, ruleHeavy)
	}
}
