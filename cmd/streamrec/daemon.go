package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDaemonCommands(c *cliContext) []*cobra.Command {
	start := &cobra.Command{
		Use:   "start",
		Short: "Start streamrec in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			if err := c.lc.Start(cmd.Context(), c.entry()); err != nil {
				return err
			}
			if !c.lc.Detached() {
				fmt.Fprintln(cmd.OutOrStdout(), "streamrec started")
			}
			return nil
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background streamrec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			if err := c.lc.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "streamrec stopped")
			return nil
		},
	}

	restart := &cobra.Command{
		Use:   "restart",
		Short: "Stop the background streamrec if running, then start it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			if err := c.lc.Restart(cmd.Context(), c.entry()); err != nil {
				return err
			}
			if !c.lc.Detached() {
				fmt.Fprintln(cmd.OutOrStdout(), "streamrec restarted")
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the pid file state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			st, err := c.lc.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s pid=%d pid_file=%s\n", st.State, st.PID, st.PidFile)
			return nil
		},
	}

	return []*cobra.Command{start, stop, restart, status}
}
