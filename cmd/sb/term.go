package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/models"
)

func newTermCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "term",
		Short: "Manage the content screening list",
	}

	cmd.AddCommand(newTermAddCmd())
	cmd.AddCommand(newTermListCmd())
	cmd.AddCommand(newTermRemoveCmd())
	return cmd
}

func newTermAddCmd() *cobra.Command {
	var (
		configPath string
		severity   int
	)

	cmd := &cobra.Command{
		Use:   "add <term>",
		Short: "Add a screening term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.TrimSpace(args[0])
			if term == "" {
				return fmt.Errorf("term must not be empty")
			}
			if severity < models.SeverityUrgent || severity > models.SeverityInfo {
				return fmt.Errorf("severity must be between %d and %d", models.SeverityUrgent, models.SeverityInfo)
			}
			return runTermAdd(cmd, configPath, term, severity)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&severity, "severity", "s", models.SeverityWarning, "severity: 1=urgent, 2=warning, 3=info")
	return cmd
}

func runTermAdd(cmd *cobra.Command, configPath, term string, severity int) error {
	st, closeDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	pt := &models.PolicyTerm{Term: term, Severity: severity}
	if err := st.CreatePolicyTerm(cmd.Context(), pt); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added term %d: %s (severity %d)\n", pt.ID, pt.Term, pt.Severity)
	return nil
}

func newTermListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List screening terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTermList(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTermList(cmd *cobra.Command, configPath string) error {
	st, closeDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	terms, err := st.ListPolicyTerms(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(terms) == 0 {
		fmt.Fprintln(out, "No terms configured.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTERM\tSEVERITY")
	for _, t := range terms {
		fmt.Fprintf(w, "%d\t%s\t%d\n", t.ID, t.Term, t.Severity)
	}
	return w.Flush()
}

func newTermRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "rm <term-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a screening term",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid term id %q", args[0])
			}
			st, closeDB, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer closeDB()
			if err := st.DeletePolicyTerm(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed term %d\n", id)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
