// Package intent defines the contract with the external intent
// classifier: a closed set of intent variants, each with a typed payload,
// and implementations that call a classifier process or HTTP endpoint.
package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Kind names an intent variant as the classifier spells it.
type Kind string

const (
	KindCreateTask    Kind = "CREATE_TASK"
	KindCompleteTask  Kind = "COMPLETE_TASK"
	KindQueryTask     Kind = "QUERY_TASK"
	KindUpdateTask    Kind = "UPDATE_TASK"
	KindHelp          Kind = "HELP"
	KindClarification Kind = "CLARIFICATION_NEEDED"
	KindChat          Kind = "CHAT"
)

// Intent is one classified command. The set of implementations is closed.
type Intent interface {
	Kind() Kind
	sealed()
}

// Clarity values for CreateTask.
const (
	ClarityComplete = "complete"
	ClarityPartial  = "partial"
)

// CreateTask asks for a new task.
type CreateTask struct {
	Content  string
	Assignee string
	Deadline string
	Priority string
	Clarity  string
	Missing  []string
}

// CompleteTask asks to mark one task, or every open task, done.
type CompleteTask struct {
	Ref TaskRef
}

// QueryTask asks for one task's details (Ref.ID set) or a filtered list.
type QueryTask struct {
	Ref      TaskRef
	Status   string
	Assignee string
	OrderBy  string
	Limit    int
}

// UpdateTask asks to change some fields of a task. Nil fields are unchanged.
type UpdateTask struct {
	Ref      TaskRef
	Content  *string
	Deadline *string
	Assignee *string
	Priority *string
	Status   *string
}

// Help asks for the usage guide.
type Help struct{}

// Clarification carries the classifier's clarifying question.
type Clarification struct {
	Question string
}

// Chat is free conversation; Reply may be empty.
type Chat struct {
	Reply string
}

func (CreateTask) Kind() Kind    { return KindCreateTask }
func (CompleteTask) Kind() Kind  { return KindCompleteTask }
func (QueryTask) Kind() Kind     { return KindQueryTask }
func (UpdateTask) Kind() Kind    { return KindUpdateTask }
func (Help) Kind() Kind          { return KindHelp }
func (Clarification) Kind() Kind { return KindClarification }
func (Chat) Kind() Kind          { return KindChat }

func (CreateTask) sealed()    {}
func (CompleteTask) sealed()  {}
func (QueryTask) sealed()     {}
func (UpdateTask) sealed()    {}
func (Help) sealed()          {}
func (Clarification) sealed() {}
func (Chat) sealed()          {}

// HasChanges reports whether the update names any field.
func (u UpdateTask) HasChanges() bool {
	return u.Content != nil || u.Deadline != nil || u.Assignee != nil || u.Priority != nil || u.Status != nil
}

// ContextMessage is one entry of the conversation history passed to the
// classifier.
type ContextMessage struct {
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

// Classifier turns command text plus recent history into an Intent. A nil
// Intent or an error both mean the command was not understood.
type Classifier interface {
	Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error)
}

// TaskRef identifies the target of a complete, update or query command.
// At most one of ID, Batch and Anaphora is set; none set means the command
// named no target.
type TaskRef struct {
	ID       uint
	Batch    bool
	Anaphora bool
	Raw      string
}

// Empty reports whether the reference names nothing.
func (r TaskRef) Empty() bool {
	return r.ID == 0 && !r.Batch && !r.Anaphora
}

var batchWords = map[string]bool{
	"all": true, "batch": true, "everything": true, "all tasks": true,
	"全部": true, "所有": true, "批量": true,
}

var anaphoraWords = map[string]bool{
	"last": true, "latest": true, "previous": true, "this": true, "this one": true,
	"that": true, "that one": true, "it": true, "the last one": true,
	"上一个": true, "这个": true, "那个": true, "刚才那个": true, "最后一个": true, "刚才的": true,
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseRef interprets a raw task reference. A lone numeric id always wins,
// so "all 3" names task 3. Otherwise the batch flag or a batch word applies,
// then an anaphoric word.
func ParseRef(raw string, batch bool) TaskRef {
	raw = strings.TrimSpace(raw)
	ref := TaskRef{Raw: raw}
	if runs := digitRun.FindAllString(raw, -1); len(runs) == 1 {
		if id, err := strconv.ParseUint(runs[0], 10, 64); err == nil && id > 0 {
			ref.ID = uint(id)
			return ref
		}
	}
	word := strings.ToLower(raw)
	switch {
	case batch || batchWords[word]:
		ref.Batch = true
	case anaphoraWords[word]:
		ref.Anaphora = true
	}
	return ref
}
