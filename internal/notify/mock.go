package notify

import (
	"context"
	"sync"
)

// Sent is one delivery recorded by Mock.
type Sent struct {
	Target  string
	Message Message
}

// Mock implements Notifier for testing. It records every delivery and can
// be told to fail.
type Mock struct {
	mu   sync.Mutex
	sent []Sent
	err  error
	fail map[string]error
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{fail: make(map[string]error)}
}

// Notify records the delivery, or returns the configured error. Failed
// deliveries are not recorded.
func (m *Mock) Notify(ctx context.Context, target string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.fail[target]; ok {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, Sent{Target: target, Message: msg})
	return nil
}

// --- Test helpers ---

// FailWith makes every delivery fail with err; nil restores success.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FailTarget makes deliveries to one target fail with err.
func (m *Mock) FailTarget(target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[target] = err
}

// LastSent returns the most recent delivery.
func (m *Mock) LastSent() (Sent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Sent{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// SentCount returns the number of successful deliveries.
func (m *Mock) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// AllSent returns a copy of all successful deliveries.
func (m *Mock) AllSent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the deliveries made to one target.
func (m *Mock) SentTo(target string) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if s.Target == target {
			out = append(out, s)
		}
	}
	return out
}
