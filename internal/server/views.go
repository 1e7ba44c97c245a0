package server

import (
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
)

type groupView struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Active            bool      `json:"active"`
	Priority          int       `json:"priority"`
	ResponseThreshold int       `json:"response_threshold"`
	CallbackURL       string    `json:"callback_url"`
	AutoRemind        bool      `json:"auto_remind"`
	MemberCount       int       `json:"member_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toGroupView(g *models.Group) groupView {
	return groupView{
		ID:                g.ID,
		Name:              g.Name,
		Active:            g.Active,
		Priority:          g.Priority,
		ResponseThreshold: g.ResponseThreshold,
		CallbackURL:       g.CallbackURL,
		AutoRemind:        g.AutoRemind,
		MemberCount:       g.MemberCount,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

type termView struct {
	ID        uint      `json:"id"`
	Term      string    `json:"term"`
	Severity  int       `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

func toTermView(pt *models.PolicyTerm) termView {
	return termView{ID: pt.ID, Term: pt.Term, Severity: pt.Severity, CreatedAt: pt.CreatedAt}
}

type alertView struct {
	ID         uint       `json:"id"`
	GroupID    string     `json:"group_id"`
	MessageID  string     `json:"message_id"`
	Type       string     `json:"alert_type"`
	Severity   int        `json:"severity"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func toAlertView(a *models.Alert) alertView {
	return alertView{
		ID:         a.ID,
		GroupID:    a.GroupID,
		MessageID:  a.MessageID,
		Type:       a.Type,
		Severity:   a.Severity,
		Status:     a.Status,
		Detail:     a.Detail,
		CreatedAt:  a.CreatedAt,
		ResolvedAt: a.ResolvedAt,
	}
}

type taskView struct {
	ID          uint       `json:"id"`
	GroupID     string     `json:"group_id"`
	CreatorName string     `json:"creator_name"`
	Assignee    string     `json:"assignee"`
	Content     string     `json:"content"`
	Deadline    string     `json:"deadline"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func toTaskView(t *models.Task) taskView {
	return taskView{
		ID:          t.ID,
		GroupID:     t.GroupID,
		CreatorName: t.CreatorName,
		Assignee:    t.Assignee,
		Content:     t.Content,
		Deadline:    t.Deadline,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

type reminderView struct {
	ID        uint       `json:"id"`
	TaskID    uint       `json:"task_id"`
	Type      string     `json:"reminder_type"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	Content   string     `json:"content"`
	SentAt    *time.Time `json:"sent_at"`
	LastError string     `json:"last_error,omitempty"`
}

func toReminderView(r *models.Reminder) reminderView {
	return reminderView{
		ID:        r.ID,
		TaskID:    r.TaskID,
		Type:      r.Type,
		Reason:    r.Reason,
		Status:    r.Status,
		Content:   r.Content,
		SentAt:    r.SentAt,
		LastError: r.LastError,
	}
}

type eventView struct {
	MessageID    string `json:"message_id"`
	Duplicate    bool   `json:"duplicate"`
	Internal     bool   `json:"internal"`
	GroupCreated bool   `json:"group_created"`
	Reconciled   int64  `json:"reconciled_messages"`
	AlertID      uint   `json:"alert_id,omitempty"`
	Reply        string `json:"reply,omitempty"`
	Delivered    bool   `json:"delivered"`
}

type timeoutView struct {
	MessageID      string    `json:"message_id"`
	GroupID        string    `json:"group_id"`
	GroupName      string    `json:"group_name"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
	TimeoutMinutes int       `json:"timeout_minutes"`
	Priority       string    `json:"priority"` // emergency | warning
}

func toTimeoutView(m *store.GroupMessage, now time.Time) timeoutView {
	waited := now.Sub(m.SentAt)
	priority := "warning"
	if waited > emergencyAfter {
		priority = "emergency"
	}
	return timeoutView{
		MessageID:      m.ID,
		GroupID:        m.GroupID,
		GroupName:      m.GroupName,
		SenderName:     m.SenderName,
		Content:        m.Content,
		SentAt:         m.SentAt,
		TimeoutMinutes: int(waited.Minutes()),
		Priority:       priority,
	}
}

type messageView struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	GroupName   string     `json:"group_name"`
	SenderID    string     `json:"sender_id"`
	SenderName  string     `json:"sender_name"`
	Content     string     `json:"content"`
	MsgType     string     `json:"msg_type"`
	SentAt      time.Time  `json:"sent_at"`
	ReplyStatus string     `json:"reply_status"`
	ReplyTime   *time.Time `json:"reply_time"`
}

func toMessageView(m *store.GroupMessage) messageView {
	return messageView{
		ID:          m.ID,
		GroupID:     m.GroupID,
		GroupName:   m.GroupName,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Content:     m.Content,
		MsgType:     m.MsgType,
		SentAt:      m.SentAt,
		ReplyStatus: m.ReplyStatus,
		ReplyTime:   m.ReplyTime,
	}
}
