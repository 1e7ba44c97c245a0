// Package command routes classified chat commands into task operations
// and renders the reply posted back to the conversation.
package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
)

// HistorySize is how many prior messages are passed to the classifier.
const HistorySize = 5

// Query list limits.
const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

// Fixed replies.
const (
	ReplyNotUnderstood   = "Sorry, I did not understand that. Send \"help\" to see what I can do."
	ReplyOperationFailed = "Operation failed, please try again later."
	ReplyUnknownTarget   = "Could not identify which task you mean. Please give the task number, for example \"complete task 12\"."
)

// Request is one interactive command from a conversation.
type Request struct {
	GroupID    string
	MessageID  string
	SenderID   string
	SenderName string
	Content    string
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Store      *store.Store
	Classifier intent.Classifier
	Location   *time.Location // for rendering timestamps; defaults to time.Local
	Now        func() time.Time
}

// Router is the intent router.
type Router struct {
	store      *store.Store
	classifier intent.Classifier
	loc        *time.Location
	now        func() time.Time
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("command: store is required")
	}
	if opts.Classifier == nil {
		opts.Classifier = intent.Unavailable{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		store:      opts.Store,
		classifier: opts.Classifier,
		loc:        opts.Location,
		now:        opts.Now,
	}, nil
}

// Handle classifies the command, applies it and returns the reply text.
// It always returns a reply; failures are reported in the text.
func (r *Router) Handle(ctx context.Context, req Request) string {
	history, err := r.history(ctx, req)
	if err != nil {
		log.Printf("command: history for %s: %v", req.GroupID, err)
	}

	in, err := r.classifier.Classify(ctx, req.Content, contextMessages(history))
	if err != nil || in == nil {
		if err != nil {
			log.Printf("command: classify %s: %v", req.MessageID, err)
		}
		return ReplyNotUnderstood
	}

	switch in := in.(type) {
	case intent.CreateTask:
		return r.createTask(ctx, req, in)
	case intent.CompleteTask:
		return r.completeTask(ctx, req, in, history)
	case intent.QueryTask:
		return r.queryTask(ctx, req, in, history)
	case intent.UpdateTask:
		return r.updateTask(ctx, req, in, history)
	case intent.Help:
		return HelpText
	case intent.Clarification:
		if in.Question == "" {
			return "Could you give me a bit more detail?"
		}
		return in.Question
	case intent.Chat:
		if in.Reply == "" {
			return "You said: " + req.Content
		}
		return in.Reply
	default:
		return ReplyNotUnderstood
	}
}

// history returns up to HistorySize messages before the command, oldest first.
func (r *Router) history(ctx context.Context, req Request) ([]models.Message, error) {
	msgs, err := r.store.RecentMessages(ctx, req.GroupID, HistorySize+1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != req.MessageID {
			out = append(out, m)
		}
	}
	if len(out) > HistorySize {
		out = out[len(out)-HistorySize:]
	}
	return out, nil
}

func contextMessages(msgs []models.Message) []intent.ContextMessage {
	out := make([]intent.ContextMessage, 0, len(msgs))
	for _, m := range msgs {
		name := m.SenderName
		if name == "" {
			name = m.SenderID
		}
		out = append(out, intent.ContextMessage{SenderName: name, Content: m.Content})
	}
	return out
}

var bracketID = regexp.MustCompile(`\[#?(\d+)\]`)

// resolveTarget turns a reference into a task id. Numeric ids win;
// anaphora takes the newest bracketed id in history, then the most
// recently created open task. Zero means unresolved.
func (r *Router) resolveTarget(ctx context.Context, groupID string, ref intent.TaskRef, history []models.Message) uint {
	if ref.ID != 0 {
		return ref.ID
	}
	if !ref.Anaphora {
		return 0
	}
	for i := len(history) - 1; i >= 0; i-- {
		matches := bracketID.FindAllStringSubmatch(history[i].Content, -1)
		if len(matches) == 0 {
			continue
		}
		id, err := strconv.ParseUint(matches[len(matches)-1][1], 10, 64)
		if err == nil && id > 0 {
			return uint(id)
		}
	}
	t, err := r.store.LatestOpenTask(ctx, groupID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("command: latest open task %s: %v", groupID, err)
		}
		return 0
	}
	return t.ID
}

// senderLabel is how the command's sender is written into task fields.
func senderLabel(req Request) string {
	if req.SenderName != "" {
		return req.SenderName
	}
	return req.SenderID
}

var selfWords = map[string]bool{
	"me": true, "myself": true, "self": true, "@me": true, "i": true,
	"我": true, "我自己": true, "自己": true,
}

// resolveAssignee replaces a self-reference with the sender.
func resolveAssignee(assignee string, req Request) string {
	if selfWords[lower(assignee)] {
		return senderLabel(req)
	}
	return assignee
}
