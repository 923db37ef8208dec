// Command taskcal runs the calendar API and its helper commands.
package main

import (
	"fmt"
	"os"

	"taskcal/internal/cli"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
