package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/store"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskPushCmd())
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		groupID    string
		status     string
		assignee   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.TaskFilter{GroupID: groupID, Assignee: assignee, Limit: limit}
			if status != "" {
				filter.Statuses = []string{status}
			}
			return runTaskList(cmd, configPath, filter)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&groupID, "group", "g", "", "filter by group id")
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (in_progress, overdue, done)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "filter by assignee substring")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum tasks to list")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath string, filter store.TaskFilter) error {
	st, closeDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	tasks, err := st.ListTasks(cmd.Context(), filter)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGROUP\tSTATUS\tPRI\tASSIGNEE\tDEADLINE\tCONTENT")
	for _, t := range tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.GroupID, t.Status, t.Priority, dash(t.Assignee), dash(t.Deadline), t.Content)
	}
	return w.Flush()
}

func newTaskPushCmd() *cobra.Command {
	var (
		configPath string
		content    string
	)

	cmd := &cobra.Command{
		Use:   "push <task-id>",
		Short: "Send a manual reminder for a task",
		Long:  "Delivers a reminder to the task's group callback immediately, regardless of earlier reminders.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return runTaskPush(cmd, configPath, uint(id), content)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&content, "content", "", "custom reminder text")
	return cmd
}

func runTaskPush(cmd *cobra.Command, configPath string, id uint, content string) error {
	d, closeDB, err := openDaemon(cmd, configPath)
	if err != nil {
		return err
	}
	defer closeDB()

	r, err := d.Sweeper().Push(cmd.Context(), id, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reminder %d sent for task %d\n", r.ID, id)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
