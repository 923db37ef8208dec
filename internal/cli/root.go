// Package cli wires the taskcal commands.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"taskcal/internal/config"
	appLog "taskcal/internal/log"
)

const defaultConfigPath = "/etc/taskcal/config.yaml"

// NewRootCommand creates the taskcal root command.
func NewRootCommand(version string) *cobra.Command {
	var (
		configPath string
		console    bool
	)

	root := &cobra.Command{
		Use:   "taskcal",
		Short: "Calendar with automatic task placement",
		Long: `taskcal keeps a calendar of fixed events and places tasks into free
slots before their due time. Events may repeat and may be imported from
ICS subscriptions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if console {
				appLog.SetOutput(os.Stderr, true)
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&console, "log-console", false, "Human-readable log output instead of JSON lines")

	root.AddCommand(
		newServeCommand(&configPath),
		newSlotCommand(),
		newExpandCommand(),
		newEstimateCommand(),
	)
	return root
}

// loadLocation resolves a zone name the same way the config does.
func loadLocation(name string) (*time.Location, error) {
	cfg := config.Config{Timezone: name}
	return cfg.Location()
}
