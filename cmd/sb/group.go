package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group commands",
	}

	cmd.AddCommand(newGroupListCmd())
	return cmd
}

func newGroupListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupList(cmd, configPath, !all)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated groups")
	return cmd
}

func runGroupList(cmd *cobra.Command, configPath string, activeOnly bool) error {
	st, closeDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	groups, err := st.ListGroups(cmd.Context(), activeOnly)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No groups found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tPRI\tREMIND\tCALLBACK")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%t\t%s\n",
			g.ID, g.Name, g.Active, g.Priority, g.AutoRemind, dash(g.CallbackURL))
	}
	return w.Flush()
}
