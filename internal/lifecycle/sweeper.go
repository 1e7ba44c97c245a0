// Package lifecycle runs the periodic task sweep: escalating overdue
// tasks, sending at most one automatic reminder per task generation, and
// raising unreplied-message alerts. It also sends manual reminder pushes.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/reply"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/task"
	"golang.org/x/sync/errgroup"
)

// Defaults used when SweeperOpts leaves a field zero.
const (
	DefaultInterval    = time.Minute
	DefaultFallbackAge = 24 * time.Hour
	DefaultConcurrency = 4
	DefaultLease       = 5 * time.Minute
)

// ErrTaskDone is returned by Push for a task that is already done.
var ErrTaskDone = errors.New("lifecycle: task is already done")

// ErrNoCallback is returned by Push when the task's group has no callback URL.
var ErrNoCallback = errors.New("lifecycle: group has no callback url")

// SweeperOpts holds parameters for creating a Sweeper.
type SweeperOpts struct {
	Store       *store.Store
	Notifier    notify.Notifier
	Watcher     *reply.Watcher // optional; run after each task sweep
	Interval    time.Duration
	FallbackAge time.Duration // escalation age for tasks with no usable deadline
	Concurrency int           // groups swept in parallel
	Lease       time.Duration // how long a pending ledger claim is honored
	Location    *time.Location
	Now         func() time.Time
	Out         io.Writer
}

// Sweeper is the task lifecycle sweeper.
type Sweeper struct {
	store       *store.Store
	notifier    notify.Notifier
	watcher     *reply.Watcher
	interval    time.Duration
	fallbackAge time.Duration
	concurrency int
	lease       time.Duration
	loc         *time.Location
	now         func() time.Time
	out         io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Result summarizes one sweep pass.
type Result struct {
	Escalated int // escalated tasks still owed their automatic reminder
	Overdue   int // tasks moved to overdue in this pass
	Reminded  int // reminders delivered
	Failed    int // reminder deliveries that failed
	Alerts    int // unreplied alerts raised
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweeperOpts) (*Sweeper, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("lifecycle: store is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("lifecycle: notifier is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FallbackAge <= 0 {
		opts.FallbackAge = DefaultFallbackAge
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Sweeper{
		store:       opts.Store,
		notifier:    opts.Notifier,
		watcher:     opts.Watcher,
		interval:    opts.Interval,
		fallbackAge: opts.FallbackAge,
		concurrency: opts.Concurrency,
		lease:       opts.Lease,
		loc:         opts.Location,
		now:         opts.Now,
		out:         opts.Out,
	}, nil
}

// Start runs a sweep every interval until Stop is called or ctx is
// cancelled. Calling Start on a running sweeper is an error.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("lifecycle: sweeper already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := s.RunOnce(ctx)
				if err != nil && ctx.Err() == nil {
					log.Printf("lifecycle: sweep: %v", err)
					continue
				}
				if res.Escalated > 0 || res.Overdue > 0 || res.Alerts > 0 {
					fmt.Fprintf(s.out, "lifecycle: swept %d escalated, %d overdue, %d reminded, %d failed, %d alerts\n",
						res.Escalated, res.Overdue, res.Reminded, res.Failed, res.Alerts)
				}
			}
		}
	}(s.done)
	return nil
}

// Stop requests shutdown and waits for the running pass to finish.
// In-flight store writes complete; no new pass starts.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce performs one sweep pass over every open task, then runs the
// unreplied watcher if one is configured.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	tasks, err := s.store.OpenTasks(ctx)
	if err != nil {
		return res, fmt.Errorf("lifecycle: open tasks: %w", err)
	}
	groups, err := s.store.ListGroups(ctx, false)
	if err != nil {
		return res, fmt.Errorf("lifecycle: list groups: %w", err)
	}
	byID := make(map[string]*models.Group, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}
	byGroup := map[string][]models.Task{}
	var order []string
	for _, t := range tasks {
		if _, ok := byGroup[t.GroupID]; !ok {
			order = append(order, t.GroupID)
		}
		byGroup[t.GroupID] = append(byGroup[t.GroupID], t)
	}

	var c counters
	now := s.now()
	var eg errgroup.Group
	eg.SetLimit(s.concurrency)
	for _, gid := range order {
		if ctx.Err() != nil {
			break
		}
		group, list := byID[gid], byGroup[gid]
		eg.Go(func() error {
			for i := range list {
				if ctx.Err() != nil {
					return nil
				}
				s.sweepTask(ctx, &list[i], group, now, &c)
			}
			return nil
		})
	}
	_ = eg.Wait()
	res = c.result()

	if s.watcher != nil && ctx.Err() == nil {
		n, err := s.watcher.Check(ctx)
		res.Alerts = n
		if err != nil {
			return res, err
		}
	}
	return res, ctx.Err()
}

type counters struct {
	escalated, overdue, reminded, failed atomic.Int64
}

func (c *counters) result() Result {
	return Result{
		Escalated: int(c.escalated.Load()),
		Overdue:   int(c.overdue.Load()),
		Reminded:  int(c.reminded.Load()),
		Failed:    int(c.failed.Load()),
	}
}

// sweepTask applies the escalation table to one task. Store writes use a
// context detached from cancellation so a started task finishes cleanly.
func (s *Sweeper) sweepTask(ctx context.Context, t *models.Task, g *models.Group, now time.Time, c *counters) {
	reason, escalate := task.Decide(t, now, s.fallbackAge, s.loc)
	if !escalate {
		return
	}
	wctx := context.WithoutCancel(ctx)

	if t.Status != models.TaskOverdue {
		changed, err := s.store.MarkOverdue(wctx, t.ID)
		if err != nil {
			log.Printf("lifecycle: task %d: %v", t.ID, err)
			return
		}
		if changed {
			c.overdue.Add(1)
			t.Status = models.TaskOverdue
			fmt.Fprintf(s.out, "lifecycle: task %d overdue (%s)\n", t.ID, reason)
		}
	}

	sent, err := s.store.HasSentAutoReminder(wctx, t.ID, t.ReminderGen)
	if err != nil {
		log.Printf("lifecycle: task %d: %v", t.ID, err)
		return
	}
	if sent {
		return
	}
	c.escalated.Add(1)

	if g == nil || !g.AutoRemind || g.CallbackURL == "" {
		return
	}
	msg := FormatReminder(t, reason, "", s.loc)
	r := &models.Reminder{
		LedgerKey:  store.AutoLedgerKey(t.ID, t.ReminderGen),
		TaskID:     t.ID,
		GroupID:    t.GroupID,
		TargetUser: t.Assignee,
		Content:    msg.Text,
		Type:       models.ReminderAuto,
		Reason:     reason,
		Generation: t.ReminderGen,
	}
	claimed, err := s.store.ClaimReminder(wctx, r, s.lease)
	if err != nil {
		log.Printf("lifecycle: task %d: %v", t.ID, err)
		return
	}
	if !claimed {
		return
	}
	if err := s.deliver(wctx, g.CallbackURL, r, msg); err != nil {
		c.failed.Add(1)
		log.Printf("lifecycle: remind task %d: %v", t.ID, err)
		return
	}
	c.reminded.Add(1)
}

// deliver sends msg and settles the claimed ledger row r.
func (s *Sweeper) deliver(ctx context.Context, target string, r *models.Reminder, msg notify.Message) error {
	sendErr := s.notifier.Notify(ctx, target, msg)
	if sendErr != nil {
		if err := s.store.ReleaseReminder(ctx, r.ID, sendErr); err != nil {
			log.Printf("lifecycle: %v", err)
		}
		return sendErr
	}
	return s.store.MarkReminderSent(ctx, r.ID, s.now())
}

// Push sends a manual reminder for a task regardless of earlier
// reminders. content replaces the default text when non-empty.
func (s *Sweeper) Push(ctx context.Context, taskID uint, content string) (*models.Reminder, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TaskDone {
		return nil, fmt.Errorf("%w: task %d", ErrTaskDone, taskID)
	}
	g, err := s.store.GetGroup(ctx, t.GroupID)
	if err != nil {
		return nil, err
	}
	if g.CallbackURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCallback, g.ID)
	}

	msg := FormatReminder(t, models.ReasonManual, content, s.loc)
	r := &models.Reminder{
		LedgerKey:  "manual:" + uuid.NewString(),
		TaskID:     t.ID,
		GroupID:    t.GroupID,
		TargetUser: t.Assignee,
		Content:    msg.Text,
		Type:       models.ReminderManual,
		Reason:     models.ReasonManual,
		Generation: t.ReminderGen,
	}
	wctx := context.WithoutCancel(ctx)
	claimed, err := s.store.ClaimReminder(wctx, r, s.lease)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("lifecycle: push task %d: ledger key collision", taskID)
	}
	if err := s.deliver(wctx, g.CallbackURL, r, msg); err != nil {
		return r, fmt.Errorf("lifecycle: push task %d: %w", taskID, err)
	}
	r.Status = models.ReminderSent
	fmt.Fprintf(s.out, "lifecycle: pushed reminder for task %d\n", taskID)
	return r, nil
}
