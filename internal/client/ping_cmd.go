package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connection to the server",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Pinging %s...\n", a.Settings.ServerURL)
			start := time.Now()
			if err := a.API.Health(ctx); err != nil {
				return fmt.Errorf("failed to ping server: %w", err)
			}
			_, _ = fmt.Fprintf(out, "Pong! Server is reachable (Latency: %v)\n", time.Since(start).Round(time.Millisecond))
			return nil
		}),
	}
}

func (c *cli) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := c.configPath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}, &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the remote server URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.configPath()
			if err != nil {
				return err
			}
			if err := SetServerURL(path, args[0]); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Server URL set to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
