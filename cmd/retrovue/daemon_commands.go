package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"retrovue/internal/daemonctl"
	"retrovue/internal/daemonrun"
	"retrovue/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the retrovue daemon",
	}

	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))

	return daemonCmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the retrovue daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				if result.PID > 0 {
					fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon started")
				}
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the retrovue daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndWait(ctx.socketPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and channel status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			reachable, _, err := daemonctl.ProcessInfo(ctx.socketPath())
			if err != nil {
				return err
			}
			if !reachable {
				fmt.Fprintln(stdout, "Daemon is not running (start it with `retrovue daemon start`)")
				return nil
			}

			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				if status.Running {
					fmt.Fprintf(stdout, "Daemon running (pid %d)\n", status.PID)
				} else {
					fmt.Fprintf(stdout, "Daemon reachable but stopped (pid %d)\n", status.PID)
				}
				fmt.Fprintf(stdout, "Database: %s\n", status.DatabasePath)
				fmt.Fprintf(stdout, "Socket:   %s\n", status.SocketPath)
				fmt.Fprintln(stdout)

				if len(status.Channels) == 0 {
					fmt.Fprintln(stdout, "No channels configured")
					return nil
				}

				rows := make([][]string, 0, len(status.Channels))
				for _, ch := range status.Channels {
					horizon := "-"
					if !ch.HorizonThrough.IsZero() {
						horizon = ch.HorizonThrough.UTC().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", ch.ID),
						ch.Name,
						ch.State,
						ch.Mode,
						fmt.Sprintf("%d", ch.Viewers),
						yesNo(ch.Degraded),
						horizon,
						ch.LastError,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						numCol("ID"), col("Channel"), col("State"), col("Mode"),
						numCol("Viewers"), col("Degraded"), col("Horizon Through"), col("Last Error"),
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show per-channel runtime health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				health, err := client.Health()
				if err != nil {
					return err
				}
				if len(health.Channels) == 0 {
					fmt.Fprintln(stdout, "No channels are currently managed")
					return nil
				}

				rows := make([][]string, 0, len(health.Channels))
				for _, ch := range health.Channels {
					rows = append(rows, []string{
						ch.Channel,
						string(ch.State),
						string(ch.EffectiveMode),
						fmt.Sprintf("%d", ch.Viewers),
						fmt.Sprintf("%d", ch.RecentCrashes),
						yesNo(ch.Degraded),
						ch.LastError,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						col("Channel"), col("State"), col("Mode"),
						numCol("Viewers"), numCol("Recent Crashes"), col("Degraded"), col("Last Error"),
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newExtendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extend",
		Short: "Run a horizon maintenance cycle immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				resp, err := client.Extend()
				if err != nil {
					return err
				}
				if len(resp.Errors) == 0 {
					fmt.Fprintln(stdout, "Horizons extended")
					return nil
				}
				for channel, msg := range resp.Errors {
					fmt.Fprintf(stdout, "%s: %s\n", channel, msg)
				}
				return fmt.Errorf("%d channel(s) reported maintenance errors", len(resp.Errors))
			})
		},
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
