// Package reply maintains who-owes-whom-a-reply state: the reconciler
// closes a conversation's debt when an operator speaks, and the watcher
// raises alerts for messages left unanswered past their threshold.
package reply

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zulandar/signalbox/internal/store"
)

// Reconciler closes out prior reply debt in a conversation.
type Reconciler struct {
	store *store.Store
	out   io.Writer
}

// NewReconciler creates a Reconciler. out receives one progress line per
// reconciliation that closed anything; nil discards.
func NewReconciler(s *store.Store, out io.Writer) *Reconciler {
	if out == nil {
		out = io.Discard
	}
	return &Reconciler{store: s, out: out}
}

// Reconcile marks every unreplied message in groupID sent before at as
// replied at at, and resolves the group's open unreplied alerts.
func (r *Reconciler) Reconcile(ctx context.Context, groupID string, at time.Time) (store.ReconcileResult, error) {
	res, err := r.store.Reconcile(ctx, groupID, at)
	if err != nil {
		return res, fmt.Errorf("reply: reconcile %s: %w", groupID, err)
	}
	if res.Messages > 0 || res.Alerts > 0 {
		fmt.Fprintf(r.out, "reply: %s closed %d messages, %d alerts\n", groupID, res.Messages, res.Alerts)
	}
	return res, nil
}
