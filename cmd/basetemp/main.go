package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/basetemp/internal/cmd"
	"github.com/Iron-Ham/basetemp/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, cmd.ErrorMessage(err))
		os.Exit(1)
	}
}
