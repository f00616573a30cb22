package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basetemp/internal/registrar"
)

var mktempCmd = &cobra.Command{
	Use:   "mktemp [name]",
	Short: "Create a temporary directory and print its path",
	Long: `Mktemp allocates the next numbered run directory under the root, collecting
older ones, and prints its path.

With a name, a directory of that name is created inside the new run directory
and its path is printed instead. --numbered turns the name into a prefix and
appends the next free sequence number.

The run directory is unlocked when mktemp exits unless --lock is given, in
which case it stays locked until 'basetemp unlock' or the lock timeout.

Examples:
  dir=$(basetemp mktemp --lock)
  basetemp mktemp --numbered cache-`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMktemp,
}

var (
	mktempNumbered bool
	mktempLock     bool
)

func init() {
	rootCmd.AddCommand(mktempCmd)
	mktempCmd.Flags().BoolVar(&mktempNumbered, "numbered", false, "append the next free sequence number to name")
	mktempCmd.Flags().BoolVar(&mktempLock, "lock", false, "keep the run directory locked after exit")
}

func runMktemp(cmd *cobra.Command, args []string) error {
	var reg *registrar.Registrar
	if !mktempLock {
		reg = app.registrar
	}
	f := app.newFactory(reg, nil)

	path, err := f.BaseTemp()
	if err != nil {
		return fmt.Errorf("failed to create base temp directory: %w", err)
	}
	if len(args) == 1 {
		path, err = f.Mktemp(args[0], mktempNumbered)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
