package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the task digest now",
		Long:  "Posts the open-task digest to every active group with a callback, independent of the configured schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string) error {
	d, closeDB, err := openDaemon(cmd, configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := d.Digest().RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Digest sent to %d groups\n", n)
	return nil
}
