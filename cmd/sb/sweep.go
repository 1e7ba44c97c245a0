package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep",
		Long:  "Escalates overdue tasks, sends due reminders and raises unreplied-message alerts once, then exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	d, closeDB, err := openDaemon(cmd, configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := d.Sweeper().RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Escalated: %d  Overdue: %d  Reminded: %d  Failed: %d  Alerts: %d\n",
		res.Escalated, res.Overdue, res.Reminded, res.Failed, res.Alerts)
	return nil
}
