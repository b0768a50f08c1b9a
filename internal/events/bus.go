package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Notice is a user-facing notification such as "item added".
type Notice struct {
	Topic     string         `json:"topic"`
	SessionID string         `json:"-"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier reacts to emitted notices (logs, metrics, response recorders).
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notice) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) error { return f(ctx, n) }

// Bus fans notices out to every configured notifier.
type Bus struct {
	Notifiers []Notifier
}

// Emit dispatches n to all notifiers. Failures are joined; every notifier is
// still invoked.
func (b *Bus) Emit(ctx context.Context, n Notice) error {
	n.Topic = strings.TrimSpace(n.Topic)
	if n.Topic == "" {
		return errors.New("events: topic is required")
	}
	if b == nil {
		return nil
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", err))
		}
	}
	return joined
}

// With returns a bus that also dispatches to extra, leaving b untouched.
func (b *Bus) With(extra ...Notifier) *Bus {
	var base []Notifier
	if b != nil {
		base = b.Notifiers
	}
	out := make([]Notifier, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return &Bus{Notifiers: out}
}

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(_ context.Context, n Notice) error {
	evt := l.Logger.Info().Str("topic", n.Topic).Str("subject", n.Subject)
	if n.SessionID != "" {
		evt = evt.Str("session_id", n.SessionID)
	}
	evt.Msg(n.Message)
	return nil
}

// Recorder collects notices emitted while serving a single request.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}
