package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskcal/internal/ics"
	"taskcal/internal/model"
	"taskcal/internal/schedule"
	"taskcal/internal/store"
)

func newExpandCommand() *cobra.Command {
	var (
		start string
		end   string
		tz    string
	)

	cmd := &cobra.Command{
		Use:     "expand RRULE",
		Short:   "Print the occurrences a recurrence rule produces",
		Example: `  taskcal expand "FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE" --start 2024-06-10T09:00 --end 2024-06-10T10:00`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := loadLocation(tz)
			if err != nil {
				return err
			}
			rule, err := ics.RecurrenceFromRRule(args[0])
			if err != nil {
				return err
			}
			base := model.Event{Recurrence: &rule}
			if base.Start, err = model.ParseLocal(start, loc); err != nil {
				return err
			}
			if base.End, err = model.ParseLocal(end, loc); err != nil {
				return err
			}
			if err := base.Validate(); err != nil {
				return err
			}

			occ := []model.Event{base}
			if rule.Expands() {
				occ = schedule.Expand(base, rule, store.New(nil))
			}
			out := cmd.OutOrStdout()
			for _, ev := range occ {
				if _, err := fmt.Fprintf(out, "%s %s\n", model.FormatLocal(ev.Start), model.FormatLocal(ev.End)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start of the first occurrence")
	cmd.Flags().StringVar(&end, "end", "", "End of the first occurrence")
	cmd.Flags().StringVar(&tz, "tz", "Local", "IANA zone of --start and --end")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
