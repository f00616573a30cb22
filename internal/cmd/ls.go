package cmd

import (
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/gc"
	"github.com/Iron-Ham/basetemp/internal/util"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List run directories and their lock state",
	Long: `Ls lists the run directories under the root, newest first, with their age,
lock state and what the next garbage collection would do with them.

Lock states:
  live   locked within the lock timeout
  stale  locked, but the lock has outlived the lock timeout
  -      not locked

The OWNER column shows the PID recorded in the lock and whether that process
still exists on this host. It is informational only: collection decides by
lock age alone.`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	bt := app.cfg.BaseTemp
	now := time.Now()
	deadBefore := now.Add(-bt.LockTimeoutDuration())

	decisions, err := gc.NewCollector(app.logger, nil).Plan(bt.Root, bt.Prefix, bt.Keep, deadBefore)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(decisions) == 0) {
		fmt.Fprintf(out, "No run directories under %s\n", bt.Root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", bt.Root, err)
	}

	tbl := &util.Table{
		Headers: []string{"DIRECTORY", "AGE", "LOCK", "OWNER", "NEXT GC"},
		Header:  headerStyle,
		MaxCell: maxCellWidth,
	}
	for _, d := range decisions {
		lock, owner := describeLock(d.Dir.Path, deadBefore)
		tbl.Rows = append(tbl.Rows, []string{
			d.Dir.Name(),
			formatAge(now.Sub(d.Dir.ModTime)),
			lock,
			owner,
			styleAction(d.Action),
		})
	}
	fmt.Fprintf(out, "Root: %s\n\n", bt.Root)
	fmt.Fprint(out, tbl.Render())
	return nil
}

func describeLock(dir string, deadBefore time.Time) (state, owner string) {
	info, err := cleanuplock.Read(dir)
	if err != nil {
		return mutedStyle.Render("-"), mutedStyle.Render("-")
	}

	if info.ModTime.Before(deadBefore) {
		state = staleStyle.Render("stale")
	} else {
		state = liveStyle.Render("live")
	}

	switch {
	case info.PID <= 0:
		owner = mutedStyle.Render("unknown")
	case info.OwnerAlive():
		owner = strconv.Itoa(info.PID)
	default:
		owner = mutedStyle.Render(strconv.Itoa(info.PID) + " (gone)")
	}
	return state, owner
}

// formatAge renders d at a resolution that suits its size.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return d.Truncate(time.Second).String()
	case d < time.Hour:
		return d.Truncate(time.Minute).String()
	case d < 48*time.Hour:
		return d.Truncate(time.Hour).String()
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
