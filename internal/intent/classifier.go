package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"
)

// ErrNoClassifier is returned by Unavailable.
var ErrNoClassifier = errors.New("intent: no classifier configured")

// request is the JSON document sent to external classifiers.
type request struct {
	Content string           `json:"content"`
	History []ContextMessage `json:"history"`
}

func encodeRequest(content string, history []ContextMessage) ([]byte, error) {
	if history == nil {
		history = []ContextMessage{}
	}
	return json.Marshal(request{Content: content, History: history})
}

// CommandClassifier runs an external program per command. The request
// JSON is written to its stdin and the intent JSON read from its stdout.
type CommandClassifier struct {
	Argv    []string
	Timeout time.Duration
}

// Classify runs the classifier process.
func (c *CommandClassifier) Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error) {
	if len(c.Argv) == 0 {
		return nil, ErrNoClassifier
	}
	payload, err := encodeRequest(content, history)
	if err != nil {
		return nil, fmt.Errorf("intent: encode request: %w", err)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("intent: run %s: %w: %s", c.Argv[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return Decode(output)
}

// HTTPClassifier posts the request JSON to an endpoint and decodes the
// response body.
type HTTPClassifier struct {
	Endpoint string
	Client   *http.Client
}

// Classify calls the classifier endpoint.
func (c *HTTPClassifier) Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error) {
	if c.Endpoint == "" {
		return nil, ErrNoClassifier
	}
	payload, err := encodeRequest(content, history)
	if err != nil {
		return nil, fmt.Errorf("intent: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("intent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intent: call classifier: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("intent: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intent: classifier status %d", resp.StatusCode)
	}
	return Decode(body)
}

// Unavailable is the classifier used when none is configured; every
// command gets the did-not-understand reply.
type Unavailable struct{}

// Classify always fails with ErrNoClassifier.
func (Unavailable) Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error) {
	return nil, ErrNoClassifier
}

// Static returns a fixed result. Useful in tests.
type Static struct {
	Intent Intent
	Err    error

	// Last* record the most recent call.
	LastContent string
	LastHistory []ContextMessage
}

// Classify records the call and returns the fixed result.
func (s *Static) Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error) {
	s.LastContent = content
	s.LastHistory = history
	return s.Intent, s.Err
}

// Func adapts a function to the Classifier interface.
type Func func(ctx context.Context, content string, history []ContextMessage) (Intent, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, content string, history []ContextMessage) (Intent, error) {
	return f(ctx, content, history)
}
