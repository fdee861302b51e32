package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrovue/internal/broadcast"
	"retrovue/internal/store"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage broadcast channels",
	}

	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelDeactivateCommand(ctx))

	return channelCmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var timezone string
	var gridSize int
	var gridOffset int
	var rollover string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rolloverMinutes, err := broadcast.ParseClockTime(rollover)
			if err != nil {
				return fmt.Errorf("rollover: %w", err)
			}

			ch := &broadcast.Channel{
				Name:              args[0],
				Timezone:          timezone,
				GridSizeMinutes:   gridSize,
				GridOffsetMinutes: gridOffset,
				RolloverMinutes:   int(rolloverMinutes),
				IsActive:          true,
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.CreateChannel(cmd.Context(), ch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created channel %s (id %d)\n", ch.Name, ch.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone for the channel's wall clock")
	cmd.Flags().IntVar(&gridSize, "grid-size", 30, "Guide grid slot size in minutes")
	cmd.Flags().IntVar(&gridOffset, "grid-offset", 0, "Grid offset past local midnight in minutes")
	cmd.Flags().StringVar(&rollover, "rollover", "06:00", "Broadcast day rollover time (HH:MM)")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				channels, err := st.ListChannels(cmd.Context(), !all)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(channels) == 0 {
					fmt.Fprintln(stdout, "No channels configured")
					return nil
				}

				rows := make([][]string, 0, len(channels))
				for _, ch := range channels {
					rows = append(rows, []string{
						fmt.Sprintf("%d", ch.ID),
						ch.Name,
						ch.Timezone,
						fmt.Sprintf("%dm", ch.GridSizeMinutes),
						broadcast.ClockTime(ch.RolloverMinutes).String(),
						yesNo(ch.IsActive),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{numCol("ID"), col("Name"), col("Timezone"), numCol("Grid"), col("Rollover"), col("Active")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated channels")
	return cmd
}

func newChannelDeactivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <name>",
		Short: "Deactivate a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				ch, err := st.GetChannelByName(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := st.SetChannelActive(cmd.Context(), ch.ID, false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated channel %s\n", ch.Name)
				return nil
			})
		},
	}
}
