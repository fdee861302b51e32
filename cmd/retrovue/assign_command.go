package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"retrovue/internal/broadcast"
	"retrovue/internal/store"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var through string

	cmd := &cobra.Command{
		Use:   "assign <channel> <template> <date>",
		Short: "Assign a template to a channel for one or more broadcast days",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			firstDay, err := time.Parse(broadcast.DateLayout, args[2])
			if err != nil {
				return fmt.Errorf("date %q: %w", args[2], err)
			}
			lastDay := firstDay
			if through != "" {
				lastDay, err = time.Parse(broadcast.DateLayout, through)
				if err != nil {
					return fmt.Errorf("--through %q: %w", through, err)
				}
				if lastDay.Before(firstDay) {
					return fmt.Errorf("--through %s is before %s", through, args[2])
				}
			}

			return ctx.withStore(func(st *store.Store) error {
				ch, err := st.GetChannelByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				tpl, err := st.GetTemplateByName(cmd.Context(), args[1])
				if err != nil {
					return err
				}

				days := 0
				for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
					if _, err := st.AssignTemplate(cmd.Context(), ch.ID, tpl.ID, day.Format(broadcast.DateLayout)); err != nil {
						return fmt.Errorf("assign %s: %w", day.Format(broadcast.DateLayout), err)
					}
					days++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s for %d day(s)\n", tpl.Name, ch.Name, days)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&through, "through", "", "Assign every day up to and including this date")
	return cmd
}
