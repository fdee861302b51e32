package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrovue/internal/clock"
	"retrovue/internal/logging"
	"retrovue/internal/scheduler"
	"retrovue/internal/store"
)

func newGuideCommand(ctx *commandContext) *cobra.Command {
	var slots int

	cmd := &cobra.Command{
		Use:   "guide <channel>",
		Short: "Show the channel's program guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				ch, err := st.GetChannelByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				clk := clock.NewSystem()
				sched := scheduler.New(st, st, clk, logging.NewNop(),
					scheduler.WithFillerTag(cfg.Horizons.FillerTag),
				)
				guide, err := sched.Guide(cmd.Context(), ch, clk.Now(), slots)
				if err != nil {
					return err
				}

				loc, err := ch.Location()
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(guide))
				for _, slot := range guide {
					marker := ""
					switch {
					case slot.Filler:
						marker = "filler"
					case !slot.Resolved:
						marker = "projected"
					}
					rows = append(rows, []string{
						slot.Start.In(loc).Format("Mon 15:04"),
						slot.End.In(loc).Format("15:04"),
						slot.Title,
						marker,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]tableColumn{col("Start"), col("End"), col("Program"), col("")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&slots, "slots", 12, "Number of grid slots to show")
	return cmd
}
