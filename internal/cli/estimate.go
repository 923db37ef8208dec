package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"taskcal/internal/schedule"
)

func newEstimateCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "estimate TITLE...",
		Short: "Guess a task duration from its title and description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours := schedule.EstimateHours(strings.Join(args, " "), description)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%g\n", hours)
			return err
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description")
	return cmd
}
