package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrEmptyResult is returned when the classifier produced nothing usable.
var ErrEmptyResult = errors.New("intent: empty classifier result")

// Decode parses classifier output into an Intent. It tolerates prose or
// code fences around the JSON object, string or numeric task ids, and
// update fields given either under task_info.updates or directly in
// task_info. An unknown intent name decodes as Chat.
func Decode(data []byte) (Intent, error) {
	raw := extractObject(string(data))
	if raw == "" {
		return nil, ErrEmptyResult
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("intent: invalid classifier json")
	}
	root := gjson.Parse(raw)
	kind := Kind(strings.ToUpper(strings.TrimSpace(root.Get("intent").String())))
	if kind == "" {
		return nil, ErrEmptyResult
	}
	info := root.Get("task_info")
	message := strings.TrimSpace(root.Get("message").String())

	switch kind {
	case KindCreateTask:
		ct := CreateTask{
			Content:  str(info, "content"),
			Assignee: str(info, "assignee"),
			Deadline: str(info, "deadline"),
			Priority: str(info, "priority"),
			Clarity:  strings.ToLower(str(info, "clarity")),
		}
		for _, f := range root.Get("missing_fields").Array() {
			if s := strings.TrimSpace(f.String()); s != "" {
				ct.Missing = append(ct.Missing, strings.ToLower(s))
			}
		}
		return ct, nil

	case KindCompleteTask:
		return CompleteTask{Ref: ref(info)}, nil

	case KindQueryTask:
		q := QueryTask{
			Ref:      ref(info),
			Status:   str(info, "status"),
			Assignee: firstStr(info, "assignee_filter", "assignee"),
			OrderBy:  strings.ToLower(str(info, "order_by")),
			Limit:    int(info.Get("limit").Int()),
		}
		return q, nil

	case KindUpdateTask:
		u := UpdateTask{Ref: ref(info)}
		fields := info
		if upd := info.Get("updates"); upd.IsObject() {
			fields = upd
		}
		u.Content = optStr(fields, "content")
		u.Deadline = optStr(fields, "deadline")
		u.Assignee = optStr(fields, "assignee")
		u.Priority = optStr(fields, "priority")
		u.Status = optStr(fields, "status")
		return u, nil

	case KindHelp:
		return Help{}, nil

	case KindClarification:
		return Clarification{Question: message}, nil

	default:
		return Chat{Reply: message}, nil
	}
}

// extractObject returns the outermost {...} span of s, or "".
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func ref(info gjson.Result) TaskRef {
	raw := ""
	if id := info.Get("task_id"); id.Exists() && id.Type != gjson.Null {
		raw = id.String()
	}
	return ParseRef(raw, info.Get("batch").Bool())
}

func str(r gjson.Result, key string) string {
	v := r.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func firstStr(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := str(r, k); s != "" {
			return s
		}
	}
	return ""
}

func optStr(r gjson.Result, key string) *string {
	s := str(r, key)
	if s == "" {
		return nil
	}
	return &s
}
