package intake

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/command"
	"github.com/zulandar/signalbox/internal/identity"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/policy"
	"github.com/zulandar/signalbox/internal/reply"
	"github.com/zulandar/signalbox/internal/store"
)

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	Store      *store.Store
	Identity   *identity.Classifier
	Reconciler *reply.Reconciler
	Scanner    *policy.Scanner
	Router     *command.Router
	Notifier   notify.Notifier // posts command replies
	BotName    string
	AutoRemind bool // auto_remind given to groups created by intake
	Now        func() time.Time
	Out        io.Writer
}

// Pipeline processes events one at a time.
type Pipeline struct {
	store      *store.Store
	identity   *identity.Classifier
	reconciler *reply.Reconciler
	scanner    *policy.Scanner
	router     *command.Router
	notifier   notify.Notifier
	botName    string
	autoRemind bool
	now        func() time.Time
	out        io.Writer
}

// Outcome reports what processing an event did.
type Outcome struct {
	Message      *models.Message
	Duplicate    bool
	GroupCreated bool
	Internal     bool
	Reconciled   store.ReconcileResult
	Alert        *models.Alert
	Reply        string
	Delivered    bool
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("intake: store is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("intake: identity classifier is required")
	}
	if opts.Reconciler == nil {
		opts.Reconciler = reply.NewReconciler(opts.Store, opts.Out)
	}
	if opts.Router != nil && opts.Notifier == nil {
		return nil, fmt.Errorf("intake: notifier is required to post command replies")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Pipeline{
		store:      opts.Store,
		identity:   opts.Identity,
		reconciler: opts.Reconciler,
		scanner:    opts.Scanner,
		router:     opts.Router,
		notifier:   opts.Notifier,
		botName:    opts.BotName,
		autoRemind: opts.AutoRemind,
		now:        opts.Now,
		out:        opts.Out,
	}, nil
}

// Process stores an event and runs the follow-up steps for it. A
// redelivered message id is a no-op reported as Duplicate. Errors are
// returned only for failures before the message is stored; later faults
// are logged.
func (p *Pipeline) Process(ctx context.Context, e Event) (*Outcome, error) {
	e = Normalize(e, p.now())
	if err := e.Validate(); err != nil {
		return nil, err
	}

	group, created, err := p.store.EnsureGroup(ctx, &models.Group{
		ID:         e.GroupID,
		Name:       PlaceholderName(e.GroupID),
		Active:     true,
		Priority:   2,
		AutoRemind: p.autoRemind,
	})
	if err != nil {
		p.replyFailure(ctx, e)
		return nil, fmt.Errorf("intake: %w", err)
	}
	if created {
		fmt.Fprintf(p.out, "intake: new group %s\n", group.ID)
	}

	internal := p.identity.IsInternal(e.SenderID)
	msg := e.message(internal)
	inserted, err := p.store.InsertMessage(ctx, msg)
	if err != nil {
		p.replyFailure(ctx, e)
		return nil, fmt.Errorf("intake: %w", err)
	}
	out := &Outcome{Message: msg, GroupCreated: created, Internal: internal}
	if !inserted {
		out.Duplicate = true
		return out, nil
	}

	switch {
	case internal:
		res, err := p.reconciler.Reconcile(ctx, e.GroupID, e.SentAt)
		if err != nil {
			log.Printf("intake: %v", err)
		}
		out.Reconciled = res
	case !e.IsCommand() && p.scanner != nil:
		a, err := p.scanner.Scan(ctx, msg, group)
		if err != nil {
			log.Printf("intake: scan %s: %v", msg.ID, err)
		}
		out.Alert = a
	}

	if e.IsCommand() && p.router != nil {
		p.handleCommand(ctx, e, out)
	}
	return out, nil
}

// replyFailure tells a commanding user that the event could not be
// stored. Delivery is best effort.
func (p *Pipeline) replyFailure(ctx context.Context, e Event) {
	if !e.IsCommand() || p.router == nil {
		return
	}
	if err := p.notifier.Notify(ctx, e.ResponseURL, notify.Message{Text: command.ReplyOperationFailed}); err != nil {
		log.Printf("intake: post failure reply for %s: %v", e.MessageID, err)
	}
}

// handleCommand routes the command and posts the reply. A failed post is
// logged; the command's side effects stay committed.
func (p *Pipeline) handleCommand(ctx context.Context, e Event, out *Outcome) {
	out.Reply = p.router.Handle(ctx, command.Request{
		GroupID:    e.GroupID,
		MessageID:  e.MessageID,
		SenderID:   e.SenderID,
		SenderName: e.SenderName,
		Content:    e.Content,
	})
	if err := p.notifier.Notify(ctx, e.ResponseURL, notify.Message{Text: out.Reply}); err != nil {
		log.Printf("intake: post reply for %s: %v", e.MessageID, err)
		return
	}
	out.Delivered = true

	at := p.now().UTC()
	if err := p.store.MarkReplied(ctx, e.MessageID, at); err != nil {
		log.Printf("intake: %v", err)
	}
	bot := &models.Message{
		ID:          uuid.NewString(),
		GroupID:     e.GroupID,
		SenderID:    p.identity.BotID(),
		SenderName:  p.botName,
		Content:     out.Reply,
		MsgType:     "text",
		SentAt:      at,
		ReplyStatus: models.ReplyReplied,
		ReplyTime:   &at,
	}
	if _, err := p.store.InsertMessage(ctx, bot); err != nil {
		log.Printf("intake: save bot reply: %v", err)
	}
}
