package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basetemp/internal/errors"
)

// runWaitDelay is how long a child gets to exit after being signalled before
// it is killed.
const runWaitDelay = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command in a fresh locked base temp directory",
	Long: `Run allocates the next numbered run directory, locks it and runs the command
with BASETEMP, TMPDIR, TMP and TEMP pointing at it. Older run directories are
collected first. The lock is released when the command exits or basetemp is
interrupted; the directory itself is kept for inspection until a later run
collects it.

The exit status of basetemp is the exit status of the command.

Examples:
  basetemp run -- go test ./...
  basetemp run --keep 5 -- make check`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	f := app.newFactory(app.registrar, nil)
	base, err := f.BaseTemp()
	if err != nil {
		return fmt.Errorf("failed to prepare base temp directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()
	child.Env = append(os.Environ(),
		"BASETEMP="+base,
		"TMPDIR="+base,
		"TMP="+base,
		"TEMP="+base,
	)
	child.Cancel = func() error {
		return child.Process.Signal(syscall.SIGTERM)
	}
	child.WaitDelay = runWaitDelay

	app.logger.Info("running command", "dir", base, "command", args[0])
	err = child.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		app.logger.Info("command exited", "dir", base, "code", code)
		return &ExitError{Code: code}
	}
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return nil
}
