package reply

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/store"
)

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	Store          *store.Store
	Notifier       notify.Notifier // optional; nil records alerts only
	AlertWebhook   string          // operator channel for alert notifications
	DefaultTimeout time.Duration   // used when neither group nor settings set one
	Now            func() time.Time
	Out            io.Writer
}

// Watcher raises one unreplied alert per message left unanswered longer
// than its group's response threshold.
type Watcher struct {
	store          *store.Store
	notifier       notify.Notifier
	alertWebhook   string
	defaultTimeout time.Duration
	now            func() time.Time
	out            io.Writer
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("reply: store is required")
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Watcher{
		store:          opts.Store,
		notifier:       opts.Notifier,
		alertWebhook:   opts.AlertWebhook,
		defaultTimeout: opts.DefaultTimeout,
		now:            opts.Now,
		out:            opts.Out,
	}, nil
}

// Severity grades an unreplied message by group priority and age:
// priority 1 or two hours waiting is urgent, priority 2 or one hour is a
// warning, anything else is info.
func Severity(groupPriority int, age time.Duration) int {
	switch {
	case groupPriority == 1 || age >= 2*time.Hour:
		return models.SeverityUrgent
	case groupPriority == 2 || age >= time.Hour:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

// Check scans every active group and returns the number of alerts raised.
func (w *Watcher) Check(ctx context.Context) (int, error) {
	groups, err := w.store.ListGroups(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("reply: list groups: %w", err)
	}
	fallback, err := w.store.SettingInt(ctx, models.SettingAlertTimeoutMinutes, 0)
	if err != nil {
		log.Printf("reply: read %s: %v", models.SettingAlertTimeoutMinutes, err)
	}
	notifyOn, err := w.store.AlertsEnabled(ctx, models.ChannelWebhook)
	if err != nil {
		log.Printf("reply: read alert settings: %v", err)
	}

	now := w.now().UTC()
	raised := 0
	for i := range groups {
		if ctx.Err() != nil {
			return raised, ctx.Err()
		}
		g := &groups[i]
		threshold := w.threshold(g, fallback)
		msgs, err := w.store.StaleUnreplied(ctx, g.ID, now.Add(-threshold))
		if err != nil {
			log.Printf("reply: stale messages in %s: %v", g.ID, err)
			continue
		}
		for j := range msgs {
			m := &msgs[j]
			age := now.Sub(m.SentAt)
			a := &models.Alert{
				GroupID:   g.ID,
				MessageID: m.ID,
				Type:      models.AlertUnreplied,
				Severity:  Severity(g.Priority, age),
				Status:    models.AlertOpen,
				Detail:    fmt.Sprintf("waiting %d minutes", int(age.Minutes())),
			}
			created, err := w.store.CreateAlert(ctx, a)
			if err != nil {
				log.Printf("reply: create alert for %s: %v", m.ID, err)
				continue
			}
			if !created {
				continue
			}
			raised++
			fmt.Fprintf(w.out, "reply: unreplied alert %s/%s severity %d\n", g.ID, m.ID, a.Severity)
			if notifyOn {
				w.dispatch(ctx, a, g, m)
			}
		}
	}
	return raised, nil
}

func (w *Watcher) threshold(g *models.Group, fallbackMin int) time.Duration {
	if g.ResponseThreshold > 0 {
		return time.Duration(g.ResponseThreshold) * time.Minute
	}
	if fallbackMin > 0 {
		return time.Duration(fallbackMin) * time.Minute
	}
	return w.defaultTimeout
}

func (w *Watcher) dispatch(ctx context.Context, a *models.Alert, g *models.Group, m *models.Message) {
	if w.notifier == nil || w.alertWebhook == "" {
		return
	}
	if err := w.notifier.Notify(ctx, w.alertWebhook, notify.FormatAlert(a, g, m)); err != nil {
		log.Printf("reply: notify alert %d: %v", a.ID, err)
	}
}
