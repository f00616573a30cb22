package cmd

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basetemp/internal/cleanuplock"
	"github.com/Iron-Ham/basetemp/internal/errors"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock <dir>...",
	Short: "Release the lock on run directories",
	Long: `Unlock removes the lock marker from each directory so that garbage
collection may reclaim it once it falls outside the keep window. Directories
that are not locked are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUnlock,
}

func init() {
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var errs []error
	for _, dir := range args {
		info, err := cleanuplock.Read(dir)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "not locked: %s\n", dir)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}

		h := &cleanuplock.Handle{Dir: dir, Path: info.Path, Created: info.ModTime}
		if err := cleanuplock.Release(h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		app.logger.Info("lock released", "dir", dir, "pid", info.PID)
		fmt.Fprintf(out, "unlocked: %s\n", dir)
	}
	return errors.Join(errs...)
}
