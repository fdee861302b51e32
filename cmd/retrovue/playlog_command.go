package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"retrovue/internal/store"
)

func newPlaylogCommand(ctx *commandContext) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "playlog <channel>",
		Short: "Show the channel's resolved playlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				ch, err := st.GetChannelByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				now := time.Now()
				events, err := st.EventsBetween(cmd.Context(), ch.ID, now, now.Add(time.Duration(hours)*time.Hour))
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(stdout, "No scheduled events in the window (is the daemon running?)")
					return nil
				}

				loc, err := ch.Location()
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(events))
				for _, ev := range events {
					title := fmt.Sprintf("asset %d", ev.AssetID)
					if asset, err := st.GetAsset(cmd.Context(), ev.AssetID); err == nil {
						title = asset.Title
					}
					marker := ""
					if ev.Filler {
						marker = "filler"
					}
					rows = append(rows, []string{
						ev.Start.In(loc).Format("Mon 15:04:05"),
						ev.End.In(loc).Format("15:04:05"),
						title,
						ev.BroadcastDay,
						marker,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{col("Start"), col("End"), col("Asset"), col("Day"), col("")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 4, "Window to show, in hours from now")
	return cmd
}
