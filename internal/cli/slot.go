package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"taskcal/internal/ics"
	"taskcal/internal/model"
	"taskcal/internal/schedule"
)

func newSlotCommand() *cobra.Command {
	var (
		due      string
		hours    float64
		busyPath string
		tz       string
	)

	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Find a slot for a task against the events of an ICS file",
		Example: `  taskcal slot --due 2024-06-10T20:00 --hours 2
  taskcal slot --due 2024-06-10T20:00 --hours 1.5 --busy school.ics --tz Europe/Berlin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := loadLocation(tz)
			if err != nil {
				return err
			}
			dueAt, err := model.ParseLocal(due, loc)
			if err != nil {
				return err
			}

			var busy []model.Event
			if busyPath != "" {
				busy, err = loadBusy(busyPath, loc, dueAt)
				if err != nil {
					return err
				}
			}

			slot, err := schedule.FindSlot(schedule.Request{Due: dueAt, Hours: hours}, busy, nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
				model.FormatLocal(slot.Start), model.FormatLocal(slot.End), slot.Stage)
			return err
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Due instant, e.g. 2024-06-10T20:00")
	cmd.Flags().Float64Var(&hours, "hours", schedule.DefaultTaskHours, "Estimated hours")
	cmd.Flags().StringVar(&busyPath, "busy", "", "ICS file whose events block slots")
	cmd.Flags().StringVar(&tz, "tz", "Local", "IANA zone of --due and floating ICS times")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

// loadBusy expands the events of an ICS file over the days the slot search
// can reach: the backward scan covers one week before due.
func loadBusy(path string, loc *time.Location, due time.Time) ([]model.Event, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := ics.Parse(ics.Source{ID: path}, body, loc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	day := model.StartOfDay(due)
	return ics.Expand(parsed, ics.ExpandConfig{
		Location:   loc,
		RangeStart: day.AddDate(0, 0, -8),
		RangeEnd:   day.AddDate(0, 0, 1),
	})
}
