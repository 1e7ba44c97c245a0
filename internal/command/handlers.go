package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/task"
)

func (r *Router) createTask(ctx context.Context, req Request, in intent.CreateTask) string {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		content = strings.TrimSpace(req.Content)
	}
	t := &models.Task{
		GroupID:         req.GroupID,
		CreatorID:       req.SenderID,
		CreatorName:     req.SenderName,
		Assignee:        resolveAssignee(strings.TrimSpace(in.Assignee), req),
		Content:         content,
		Deadline:        strings.TrimSpace(in.Deadline),
		Priority:        task.NormalizePriority(in.Priority),
		Status:          models.TaskInProgress,
		SourceMessageID: req.MessageID,
	}
	if err := r.store.CreateTask(ctx, t); err != nil {
		log.Printf("command: create task in %s: %v", req.GroupID, err)
		return ReplyOperationFailed
	}

	clarity := in.Clarity
	if clarity == "" {
		clarity = intent.ClarityComplete
		if t.Deadline == "" || t.Assignee == "" {
			clarity = intent.ClarityPartial
		}
	}
	if clarity == intent.ClarityComplete {
		return r.renderCreated(t)
	}
	return renderPartial(t, missingFields(t, in.Missing))
}

// missingFields lists what a partial task still needs, deadline first.
func missingFields(t *models.Task, reported []string) []string {
	want := map[string]bool{}
	for _, m := range reported {
		want[lower(m)] = true
	}
	var out []string
	if t.Deadline == "" || want["deadline"] {
		out = append(out, "deadline")
	}
	if t.Assignee == "" || want["assignee"] {
		out = append(out, "assignee")
	}
	return out
}

func (r *Router) completeTask(ctx context.Context, req Request, in intent.CompleteTask, history []models.Message) string {
	if in.Ref.Batch {
		closed, err := r.store.CompleteOpenTasks(ctx, req.GroupID, r.now())
		if err != nil {
			log.Printf("command: batch complete in %s: %v", req.GroupID, err)
			return ReplyOperationFailed
		}
		return renderBatchDone(closed)
	}

	id := r.resolveTarget(ctx, req.GroupID, in.Ref, history)
	if id == 0 {
		return ReplyUnknownTarget
	}
	t, err := r.store.CompleteTask(ctx, req.GroupID, id, r.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Task #%d was not found in this group.", id)
	case errors.Is(err, task.ErrInvalidTransition):
		return fmt.Sprintf("Task #%d is already done.", id)
	case err != nil:
		log.Printf("command: complete task %d: %v", id, err)
		return ReplyOperationFailed
	}
	return fmt.Sprintf("✅ Task [#%d] done: %s", t.ID, t.Content)
}

func (r *Router) queryTask(ctx context.Context, req Request, in intent.QueryTask, history []models.Message) string {
	if in.Ref.ID != 0 || in.Ref.Anaphora {
		id := r.resolveTarget(ctx, req.GroupID, in.Ref, history)
		if id == 0 {
			return ReplyUnknownTarget
		}
		t, err := r.store.GetGroupTask(ctx, req.GroupID, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Task #%d was not found in this group.", id)
		}
		if err != nil {
			log.Printf("command: get task %d: %v", id, err)
			return ReplyOperationFailed
		}
		return r.renderDetail(t)
	}

	filter := store.TaskFilter{
		GroupID:  req.GroupID,
		Assignee: resolveAssignee(strings.TrimSpace(in.Assignee), req),
		OrderBy:  in.OrderBy,
		Limit:    clampLimit(in.Limit),
	}
	switch st := lower(in.Status); st {
	case "":
		filter.Statuses = task.OpenStatuses
	case "all", "any", "全部", "所有":
	default:
		norm, ok := task.NormalizeStatus(st)
		if !ok {
			return fmt.Sprintf("Unknown status %q. Use in_progress, overdue, done or all.", in.Status)
		}
		filter.Statuses = []string{norm}
	}
	tasks, err := r.store.ListTasks(ctx, filter)
	if err != nil {
		log.Printf("command: list tasks in %s: %v", req.GroupID, err)
		return ReplyOperationFailed
	}
	return renderList(tasks)
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

func (r *Router) updateTask(ctx context.Context, req Request, in intent.UpdateTask, history []models.Message) string {
	if in.Ref.Empty() || in.Ref.Batch {
		return "Please say which task to update, for example \"update task 12 deadline tomorrow 18:00\"."
	}
	if !in.HasChanges() {
		return "Nothing to update. Name the field to change: content, deadline, assignee, priority or status."
	}
	id := r.resolveTarget(ctx, req.GroupID, in.Ref, history)
	if id == 0 {
		return ReplyUnknownTarget
	}

	u := store.TaskUpdate{
		Content:  in.Content,
		Deadline: in.Deadline,
	}
	if in.Assignee != nil {
		a := resolveAssignee(strings.TrimSpace(*in.Assignee), req)
		u.Assignee = &a
	}
	if in.Priority != nil {
		p := task.NormalizePriority(*in.Priority)
		u.Priority = &p
	}
	if in.Status != nil {
		st, ok := task.NormalizeStatus(*in.Status)
		if !ok {
			return fmt.Sprintf("Unknown status %q. Use in_progress, overdue or done.", *in.Status)
		}
		u.Status = &st
	}

	t, changed, err := r.store.UpdateTask(ctx, req.GroupID, id, u, r.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Task #%d was not found in this group.", id)
	case errors.Is(err, task.ErrInvalidTransition):
		return fmt.Sprintf("Task #%d cannot move to %s.", id, *u.Status)
	case err != nil:
		log.Printf("command: update task %d: %v", id, err)
		return ReplyOperationFailed
	}
	return fmt.Sprintf("✏️ Task [#%d] updated: %s", t.ID, strings.Join(changed, ", "))
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
