// Package policy screens message content against the policy term list.
package policy

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/store"
)

// ScannerOpts holds parameters for creating a Scanner.
type ScannerOpts struct {
	Store        *store.Store
	Notifier     notify.Notifier // optional
	AlertWebhook string
	Out          io.Writer
}

// Scanner raises sensitive alerts for messages containing policy terms.
type Scanner struct {
	store        *store.Store
	notifier     notify.Notifier
	alertWebhook string
	out          io.Writer
}

// NewScanner creates a Scanner.
func NewScanner(opts ScannerOpts) (*Scanner, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("policy: store is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Scanner{
		store:        opts.Store,
		notifier:     opts.Notifier,
		alertWebhook: opts.AlertWebhook,
		out:          opts.Out,
	}, nil
}

// Match returns the terms contained in content (case-sensitive substring)
// and the most severe matched severity. ok is false when nothing matched.
func Match(content string, terms []models.PolicyTerm) (matched []string, severity int, ok bool) {
	for _, pt := range terms {
		if pt.Term == "" || !strings.Contains(content, pt.Term) {
			continue
		}
		matched = append(matched, pt.Term)
		if !ok || pt.Severity < severity {
			severity = pt.Severity
		}
		ok = true
	}
	return matched, severity, ok
}

// Scan checks msg against the full term list. When any term matches it
// records one sensitive alert and attempts an operator notification.
// It returns the alert, or nil when nothing matched.
func (s *Scanner) Scan(ctx context.Context, msg *models.Message, group *models.Group) (*models.Alert, error) {
	terms, err := s.store.ListPolicyTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: load terms: %w", err)
	}
	matched, severity, ok := Match(msg.Content, terms)
	if !ok {
		return nil, nil
	}
	a := &models.Alert{
		GroupID:   msg.GroupID,
		MessageID: msg.ID,
		Type:      models.AlertSensitive,
		Severity:  severity,
		Status:    models.AlertOpen,
		Detail:    "matched: " + strings.Join(matched, ", "),
	}
	created, err := s.store.CreateAlert(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("policy: create alert for %s: %w", msg.ID, err)
	}
	if !created {
		return nil, nil
	}
	fmt.Fprintf(s.out, "policy: %s/%s matched %v severity %d\n", msg.GroupID, msg.ID, matched, severity)
	s.dispatch(ctx, a, group, msg)
	return a, nil
}

func (s *Scanner) dispatch(ctx context.Context, a *models.Alert, group *models.Group, msg *models.Message) {
	if s.notifier == nil || s.alertWebhook == "" {
		return
	}
	enabled, err := s.store.AlertsEnabled(ctx, models.ChannelWebhook)
	if err != nil {
		log.Printf("policy: read alert settings: %v", err)
	}
	if !enabled {
		return
	}
	if err := s.notifier.Notify(ctx, s.alertWebhook, notify.FormatAlert(a, group, msg)); err != nil {
		log.Printf("policy: notify alert %d: %v", a.ID, err)
	}
}
