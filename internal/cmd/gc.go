package cmd

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/gc"
	"github.com/Iron-Ham/basetemp/internal/util"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage collect old run directories",
	Long: `Gc keeps the newest --keep run directories under the root and removes every
older one that is unlocked or whose lock was last touched more than
--lock-timeout ago. Failures are reported and left for the next pass.

Use --dry-run to see what would be removed without changing anything.
Use --metrics-textfile to write Prometheus metrics for the node_exporter
textfile collector.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

var (
	gcDryRun          bool
	gcMetricsTextfile string
)

func init() {
	rootCmd.AddCommand(gcCmd)
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "show what would be removed without making changes")
	gcCmd.Flags().StringVar(&gcMetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file (overrides metrics.textfile)")
}

func runGC(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	bt := app.cfg.BaseTemp
	deadBefore := time.Now().Add(-bt.LockTimeoutDuration())

	if gcDryRun {
		decisions, err := gc.NewCollector(app.logger, nil).Plan(bt.Root, bt.Prefix, bt.Keep, deadBefore)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "No run directories under %s\n", bt.Root)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", bt.Root, err)
		}
		fmt.Fprint(out, renderPlan(decisions))
		return nil
	}

	reg := prometheus.NewRegistry()
	collector := gc.NewCollector(app.logger, gc.NewMetrics(reg))
	res := collector.Cleanup(bt.Root, bt.Prefix, bt.Keep, deadBefore)

	fmt.Fprintf(out, "Removed %d of %d run directories (%d kept, %d locked, %d failed)\n",
		res.Removed, res.Scanned, res.Kept, res.Locked, res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", e)
	}

	textfile := app.cfg.Metrics.Textfile
	if gcMetricsTextfile != "" {
		textfile = gcMetricsTextfile
	}
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func renderPlan(decisions []gc.Decision) string {
	if len(decisions) == 0 {
		return "Nothing to collect\n"
	}

	tbl := &util.Table{
		Headers: []string{"DIRECTORY", "ACTION"},
		Header:  headerStyle,
		MaxCell: maxCellWidth,
	}
	for _, d := range decisions {
		tbl.Rows = append(tbl.Rows, []string{d.Dir.Name(), styleAction(d.Action)})
	}
	return tbl.Render()
}

func styleAction(a gc.Action) string {
	switch a {
	case gc.ActionDelete:
		return deleteStyle.Render(a.String())
	case gc.ActionLocked:
		return liveStyle.Render(a.String())
	default:
		return mutedStyle.Render(a.String())
	}
}
