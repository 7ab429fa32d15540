package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/scrollstitch/internal/cmd"
	"github.com/Iron-Ham/scrollstitch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.FriendlyMessage(err))
		os.Exit(1)
	}
}
