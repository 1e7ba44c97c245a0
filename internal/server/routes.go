package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/signalbox/internal/intake"
	"github.com/zulandar/signalbox/internal/lifecycle"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
	"github.com/zulandar/signalbox/internal/task"
)

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/events", s.handleEvent)

	api.GET("/groups", s.handleListGroups)
	api.POST("/groups", s.handleCreateGroup)
	api.PUT("/groups/:id", s.handleUpdateGroup)
	api.DELETE("/groups/:id", s.handleDeleteGroup)

	api.GET("/policy-terms", s.handleListTerms)
	api.POST("/policy-terms", s.handleCreateTerm)
	api.DELETE("/policy-terms/:id", s.handleDeleteTerm)

	api.GET("/alerts", s.handleListAlerts)
	api.POST("/alerts/:id/resolve", s.handleResolveAlert)

	api.GET("/tasks", s.handleListTasks)
	api.POST("/tasks/:id/push", s.handlePushTask)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handlePutSettings)

	api.GET("/monitoring/overview", s.handleOverview)
	api.GET("/monitoring/group-stats", s.handleGroupStats)
	api.GET("/monitoring/alerts", s.handleReplyTimeouts)
	api.GET("/monitoring/messages", s.handleListMessages)
}

func (s *Server) handleHealth(c *gin.Context) {
	ok(c, gin.H{"status": "ok", "time": s.now().UTC()})
}

// --- Events ---

func (s *Server) handleEvent(c *gin.Context) {
	var e intake.Event
	if err := c.ShouldBindJSON(&e); err != nil {
		fail(c, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	out, err := s.pipeline.Process(c.Request.Context(), e)
	if errors.Is(err, intake.ErrInvalidEvent) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	v := eventView{
		MessageID:    out.Message.ID,
		Duplicate:    out.Duplicate,
		Internal:     out.Internal,
		GroupCreated: out.GroupCreated,
		Reconciled:   out.Reconciled.Messages,
		Reply:        out.Reply,
		Delivered:    out.Delivered,
	}
	if out.Alert != nil {
		v.AlertID = out.Alert.ID
	}
	ok(c, v)
}

// --- Groups ---

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.store.ListGroups(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]groupView, len(groups))
	for i := range groups {
		out[i] = toGroupView(&groups[i])
	}
	ok(c, out)
}

type groupRequest struct {
	ID                string  `json:"id"`
	Name              *string `json:"name"`
	Priority          *int    `json:"priority"`
	ResponseThreshold *int    `json:"response_threshold"`
	CallbackURL       *string `json:"callback_url"`
	AutoRemind        *bool   `json:"auto_remind"`
	Active            *bool   `json:"active"`
	MemberCount       *int    `json:"member_count"`
}

func (r *groupRequest) validate(create bool) string {
	if create && (r.Name == nil || strings.TrimSpace(*r.Name) == "") {
		return "name is required"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return "name must not be empty"
	}
	if r.Priority != nil && (*r.Priority < 1 || *r.Priority > 3) {
		return "priority must be 1, 2 or 3"
	}
	if r.ResponseThreshold != nil && *r.ResponseThreshold < 0 {
		return "response_threshold must not be negative"
	}
	return ""
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(true); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	g := &models.Group{
		ID:         strings.TrimSpace(req.ID),
		Name:       strings.TrimSpace(*req.Name),
		Active:     true,
		Priority:   2,
		AutoRemind: true,
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if req.Priority != nil {
		g.Priority = *req.Priority
	}
	if req.ResponseThreshold != nil {
		g.ResponseThreshold = *req.ResponseThreshold
	}
	if req.CallbackURL != nil {
		g.CallbackURL = strings.TrimSpace(*req.CallbackURL)
	}
	if req.AutoRemind != nil {
		g.AutoRemind = *req.AutoRemind
	}
	if req.MemberCount != nil {
		g.MemberCount = *req.MemberCount
	}
	if err := s.store.CreateGroup(c.Request.Context(), g); err != nil {
		failErr(c, err)
		return
	}
	ok(c, toGroupView(g))
}

func (s *Server) handleUpdateGroup(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(false); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.ResponseThreshold != nil {
		updates["response_threshold"] = *req.ResponseThreshold
	}
	if req.CallbackURL != nil {
		updates["callback_url"] = strings.TrimSpace(*req.CallbackURL)
	}
	if req.AutoRemind != nil {
		updates["auto_remind"] = *req.AutoRemind
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.MemberCount != nil {
		updates["member_count"] = *req.MemberCount
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := s.store.GetGroup(ctx, id); err != nil {
		failErr(c, err)
		return
	}
	if len(updates) == 0 {
		fail(c, http.StatusBadRequest, "no fields to update")
		return
	}
	g, err := s.store.UpdateGroup(ctx, id, updates)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, toGroupView(g))
}

func (s *Server) handleDeleteGroup(c *gin.Context) {
	if err := s.store.DeactivateGroup(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": c.Param("id"), "active": false})
}

// --- Policy terms ---

func (s *Server) handleListTerms(c *gin.Context) {
	terms, err := s.store.ListPolicyTerms(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]termView, len(terms))
	for i := range terms {
		out[i] = toTermView(&terms[i])
	}
	ok(c, out)
}

type termRequest struct {
	Term     string `json:"term"`
	Severity int    `json:"severity"`
}

func (s *Server) handleCreateTerm(c *gin.Context) {
	var req termRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	req.Term = strings.TrimSpace(req.Term)
	if req.Term == "" {
		fail(c, http.StatusBadRequest, "term is required")
		return
	}
	if req.Severity == 0 {
		req.Severity = models.SeverityWarning
	}
	if req.Severity < models.SeverityUrgent || req.Severity > models.SeverityInfo {
		fail(c, http.StatusBadRequest, "severity must be 1, 2 or 3")
		return
	}
	pt := &models.PolicyTerm{Term: req.Term, Severity: req.Severity}
	if err := s.store.CreatePolicyTerm(c.Request.Context(), pt); err != nil {
		failErr(c, err)
		return
	}
	ok(c, toTermView(pt))
}

func (s *Server) handleDeleteTerm(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if err := s.store.DeletePolicyTerm(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"id": id})
}

// --- Alerts ---

func (s *Server) handleListAlerts(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != models.AlertOpen && status != models.AlertResolved {
		fail(c, http.StatusBadRequest, "status must be open or resolved")
		return
	}
	alerts, err := s.store.ListAlerts(c.Request.Context(), store.AlertFilter{
		Status:  status,
		GroupID: c.Query("group_id"),
		Type:    c.Query("type"),
		Limit:   limitQuery(c, 100, 500),
	})
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]alertView, len(alerts))
	for i := range alerts {
		out[i] = toAlertView(&alerts[i])
	}
	ok(c, out)
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	a, err := s.store.ResolveAlert(c.Request.Context(), id, s.now())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, toAlertView(a))
}

// --- Tasks ---

func (s *Server) handleListTasks(c *gin.Context) {
	filter := store.TaskFilter{
		GroupID:  c.Query("group_id"),
		Assignee: c.Query("assignee"),
		OrderBy:  c.Query("order_by"),
		Limit:    limitQuery(c, 100, 500),
	}
	if st := c.Query("status"); st != "" && st != "all" {
		norm, valid := task.NormalizeStatus(st)
		if !valid {
			fail(c, http.StatusBadRequest, "unknown status "+st)
			return
		}
		filter.Statuses = []string{norm}
	}
	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]taskView, len(tasks))
	for i := range tasks {
		out[i] = toTaskView(&tasks[i])
	}
	ok(c, out)
}

type pushRequest struct {
	Content string `json:"content"`
}

func (s *Server) handlePushTask(c *gin.Context) {
	id, valid := uintParam(c, "id")
	if !valid {
		return
	}
	if s.pusher == nil {
		fail(c, http.StatusServiceUnavailable, "reminders are not configured")
		return
	}
	var req pushRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	r, err := s.pusher.Push(c.Request.Context(), id, strings.TrimSpace(req.Content))
	switch {
	case errors.Is(err, lifecycle.ErrTaskDone), errors.Is(err, lifecycle.ErrNoCallback):
		fail(c, http.StatusConflict, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		failErr(c, err)
		return
	case err != nil && r != nil:
		fail(c, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		failErr(c, err)
		return
	}
	ok(c, toReminderView(r))
}

// --- Settings ---

func (s *Server) handleGetSettings(c *gin.Context) {
	raw, err := s.store.Settings(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if json.Valid([]byte(v)) {
			out[k] = json.RawMessage(v)
		} else {
			out[k] = v
		}
	}
	ok(c, out)
}

type settingsRequest struct {
	AlertEnabled         *bool    `json:"alert_enabled"`
	AlertTimeoutMinutes  *int     `json:"alert_timeout_minutes"`
	NotificationChannels []string `json:"notification_channels"`
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.AlertTimeoutMinutes != nil && *req.AlertTimeoutMinutes <= 0 {
		fail(c, http.StatusBadRequest, "alert_timeout_minutes must be positive")
		return
	}
	if req.AlertEnabled == nil && req.AlertTimeoutMinutes == nil && req.NotificationChannels == nil {
		fail(c, http.StatusBadRequest, "no settings to update")
		return
	}

	ctx := c.Request.Context()
	if req.AlertEnabled != nil {
		if err := s.store.PutSetting(ctx, models.SettingAlertEnabled, *req.AlertEnabled); err != nil {
			failErr(c, err)
			return
		}
	}
	if req.AlertTimeoutMinutes != nil {
		if err := s.store.PutSetting(ctx, models.SettingAlertTimeoutMinutes, *req.AlertTimeoutMinutes); err != nil {
			failErr(c, err)
			return
		}
	}
	if req.NotificationChannels != nil {
		if err := s.store.PutSetting(ctx, models.SettingNotificationChannels, req.NotificationChannels); err != nil {
			failErr(c, err)
			return
		}
	}
	s.handleGetSettings(c)
}

// --- Monitoring ---

func (s *Server) handleOverview(c *gin.Context) {
	ov, err := s.store.Overview(c.Request.Context(), s.startOfDay())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, ov)
}

func (s *Server) handleGroupStats(c *gin.Context) {
	stats, err := s.store.GroupStats(c.Request.Context(), s.startOfDay())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, stats)
}

// Reply-timeout list tuning.
const (
	defaultTimeoutMinutes = 30
	emergencyAfter        = 60 * time.Minute
)

func (s *Server) handleReplyTimeouts(c *gin.Context) {
	ctx := c.Request.Context()
	timeout, err := s.store.SettingInt(ctx, models.SettingAlertTimeoutMinutes, defaultTimeoutMinutes)
	if err != nil {
		failErr(c, err)
		return
	}
	if timeout <= 0 {
		timeout = defaultTimeoutMinutes
	}
	now := s.now().UTC()
	rows, err := s.store.OverdueReplies(ctx, now.Add(-time.Duration(timeout)*time.Minute), limitQuery(c, 20, 100))
	if err != nil {
		failErr(c, err)
		return
	}
	views := make([]timeoutView, len(rows))
	for i := range rows {
		views[i] = toTimeoutView(&rows[i], now)
	}
	ok(c, views)
}

func (s *Server) handleListMessages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, "invalid page")
		return
	}
	rows, err := s.store.ListMessages(c.Request.Context(), page, limitQuery(c, 20, 100))
	if err != nil {
		failErr(c, err)
		return
	}
	views := make([]messageView, len(rows))
	for i := range rows {
		views[i] = toMessageView(&rows[i])
	}
	ok(c, views)
}
