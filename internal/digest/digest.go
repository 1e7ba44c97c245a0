// Package digest sends the daily summary of outstanding tasks to every
// group that has reminders enabled.
package digest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/store"
)

// DefaultSpec fires at 09:00 every day.
const DefaultSpec = "0 9 * * *"

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	Store    *store.Store
	Notifier notify.Notifier
	Spec     string         // 5-field cron expression
	Location *time.Location // wall clock the spec is read in
	Out      io.Writer
}

// Scheduler fires the digest on a cron schedule.
type Scheduler struct {
	store    *store.Store
	notifier notify.Notifier
	loc      *time.Location
	out      io.Writer
	cron     *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler creates a Scheduler. The cron spec is validated here.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("digest: store is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("digest: notifier is required")
	}
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	s := &Scheduler{
		store:    opts.Store,
		notifier: opts.Notifier,
		loc:      opts.Location,
		out:      opts.Out,
		cron:     cron.New(cron.WithParser(config.CronParser), cron.WithLocation(opts.Location)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(opts.Spec, s.fire); err != nil {
		return nil, fmt.Errorf("digest: schedule %q: %w", opts.Spec, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	n, err := s.RunOnce(ctx)
	if err != nil {
		log.Printf("digest: run: %v", err)
		return
	}
	fmt.Fprintf(s.out, "digest: sent to %d groups\n", n)
}

// Start begins firing on schedule. A stopped Scheduler may be started again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.cron.Start()
}

// Stop halts the schedule and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()
	if !started {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
}

// Next returns the next fire time, or the zero time when not started.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce sends one digest per qualifying group and returns how many were
// delivered. A failed delivery is logged and does not stop the run.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	groups, err := s.store.ListDigestGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("digest: %w", err)
	}
	sent := 0
	for i := range groups {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		g := &groups[i]
		tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
			GroupID:  g.ID,
			Statuses: []string{models.TaskOverdue, models.TaskInProgress},
			OrderBy:  store.OrderCreatedAsc,
		})
		if err != nil {
			log.Printf("digest: tasks for %s: %v", g.ID, err)
			continue
		}
		msg, ok := Build(g, tasks, s.loc)
		if !ok {
			continue
		}
		if err := s.notifier.Notify(ctx, g.CallbackURL, msg); err != nil {
			log.Printf("digest: notify %s: %v", g.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Build renders a group's digest with overdue tasks first. It returns
// false when the group has nothing outstanding.
func Build(g *models.Group, tasks []models.Task, loc *time.Location) (notify.Message, bool) {
	var overdue, open []models.Task
	for _, t := range tasks {
		switch t.Status {
		case models.TaskOverdue:
			overdue = append(overdue, t)
		case models.TaskInProgress:
			open = append(open, t)
		}
	}
	if len(overdue)+len(open) == 0 {
		return notify.Message{}, false
	}
	byCreated := func(ts []models.Task) {
		sort.SliceStable(ts, func(i, j int) bool { return ts[i].CreatedAt.Before(ts[j].CreatedAt) })
	}
	byCreated(overdue)
	byCreated(open)

	var b strings.Builder
	if len(overdue) > 0 {
		fmt.Fprintf(&b, "**Overdue (%d)**", len(overdue))
		for _, t := range overdue {
			writeLine(&b, "⚠️", t)
		}
	}
	if len(open) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**In progress (%d)**", len(open))
		for _, t := range open {
			writeLine(&b, "🔄", t)
		}
	}

	severity := notify.SeverityInfo
	if len(overdue) > 0 {
		severity = notify.SeverityWarning
	}
	name := g.Name
	if name == "" {
		name = g.ID
	}
	return notify.Message{
		Title:    fmt.Sprintf("Daily task digest for %s, %s", name, time.Now().In(loc).Format("2006-01-02")),
		Text:     b.String(),
		Severity: severity,
	}, true
}

func writeLine(b *strings.Builder, icon string, t models.Task) {
	fmt.Fprintf(b, "\n%s [#%d] %s", icon, t.ID, t.Content)
	if t.Assignee != "" {
		fmt.Fprintf(b, " @%s", t.Assignee)
	}
	if t.Deadline != "" {
		fmt.Fprintf(b, " (due %s)", t.Deadline)
	}
}
