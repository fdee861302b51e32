package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrovue/internal/ipc"
)

func newModeCommand(ctx *commandContext) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "mode <normal|emergency|guide>",
		Short: "Switch producer mode station-wide or for one channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetMode(channel, args[0])
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if channel == "" {
					fmt.Fprintf(stdout, "Station mode set to %s (%d channel(s))\n", resp.Mode, resp.Channels)
				} else {
					fmt.Fprintf(stdout, "Channel %s mode set to %s\n", channel, resp.Mode)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Apply to a single channel instead of the whole station")
	return cmd
}
