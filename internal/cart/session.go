package cart

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

const defaultSaveTimeout = 2 * time.Second

// SnapshotKey returns the store key holding a session's cart.
func SnapshotKey(sessionID string) string {
	return "cart:" + sessionID
}

// Deps are the collaborators a Session needs. All fields are optional.
type Deps struct {
	Store       snapshot.Store
	Bus         *events.Bus
	Logger      zerolog.Logger
	Metrics     *obs.DomainMetrics
	SaveTimeout time.Duration
}

// Session owns one browsing session's cart. It applies the pure Cart
// transitions, then persists the result and emits notices.
// A Session is not safe for concurrent use.
type Session struct {
	id   string
	cart Cart
	deps Deps
}

// LoadSession restores the cart snapshot for id. A missing snapshot yields an
// empty cart; an unreadable one is logged and discarded.
func LoadSession(ctx context.Context, id string, deps Deps) *Session {
	s := &Session{id: id, deps: deps}
	var lines []LineItem
	found, err := snapshot.GetJSON(ctx, deps.Store, SnapshotKey(id), &lines)
	if err != nil {
		deps.Logger.Warn().Err(err).Str("session_id", id).Msg("discarding unreadable cart snapshot")
		deps.Metrics.SnapshotFailure("load")
		return s
	}
	if !found {
		return s
	}
	s.cart = New(lines...)
	if dropped := len(lines) - s.cart.Len(); dropped > 0 {
		deps.Logger.Warn().Str("session_id", id).Int("lines", len(lines)).Int("kept", s.cart.Len()).
			Msg("cart snapshot contained invalid or duplicate lines")
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Cart returns the current cart state.
func (s *Session) Cart() Cart { return s.cart }

// Add merges or appends item and emits one item-added notice.
func (s *Session) Add(ctx context.Context, item LineItem) (Cart, error) {
	next, err := s.cart.AddLine(item)
	if err != nil {
		return s.cart, err
	}
	s.commit(ctx, next)
	s.notify(ctx, events.TopicItemAdded, item, item.Label()+" added to cart")
	return s.cart, nil
}

// SetQuantity updates the line at index; qty <= 0 removes it. An
// out-of-range index leaves the cart untouched and returns ErrIndexOutOfRange.
func (s *Session) SetQuantity(ctx context.Context, index, qty int) (Cart, error) {
	line, _ := s.cart.Line(index)
	next, err := s.cart.SetQuantity(index, qty)
	if err != nil {
		s.indexMiss(index, err)
		return s.cart, err
	}
	s.commit(ctx, next)
	if qty <= 0 {
		s.notify(ctx, events.TopicItemRemoved, line, line.Label()+" removed from cart")
	} else {
		line.Quantity = qty
		s.notify(ctx, events.TopicQuantityUpdated, line, line.Label()+" quantity updated")
	}
	return s.cart, nil
}

// Remove deletes the line at index and emits a removed notice naming it.
func (s *Session) Remove(ctx context.Context, index int) (Cart, error) {
	next, removed, err := s.cart.RemoveLine(index)
	if err != nil {
		s.indexMiss(index, err)
		return s.cart, err
	}
	s.commit(ctx, next)
	s.notify(ctx, events.TopicItemRemoved, removed, removed.Label()+" removed from cart")
	return s.cart, nil
}

// Clear empties the cart and emits a cleared notice.
func (s *Session) Clear(ctx context.Context) Cart {
	s.commit(ctx, s.cart.Clear())
	s.Emit(ctx, events.Notice{Topic: events.TopicCartCleared, Subject: "cart", Message: "cart cleared"})
	return s.cart
}

// Emit publishes a notice on behalf of the session, e.g. order confirmation.
func (s *Session) Emit(ctx context.Context, n events.Notice) {
	n.SessionID = s.id
	if err := s.deps.Bus.Emit(ctx, n); err != nil {
		s.deps.Logger.Warn().Err(err).Str("session_id", s.id).Str("topic", n.Topic).Msg("emit notice")
	}
}

// commit installs next and runs the post-mutation save hook.
func (s *Session) commit(ctx context.Context, next Cart) {
	s.cart = next
	s.save(ctx)
}

// save writes the snapshot. Failures are logged and counted, never returned.
func (s *Session) save(ctx context.Context) {
	if s.deps.Store == nil {
		return
	}
	timeout := s.deps.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := snapshot.SetJSON(ctx, s.deps.Store, SnapshotKey(s.id), s.cart.Lines()); err != nil {
		s.deps.Logger.Error().Err(err).Str("session_id", s.id).Msg("save cart snapshot")
		s.deps.Metrics.SnapshotFailure("save")
	}
}

func (s *Session) notify(ctx context.Context, topic string, line LineItem, message string) {
	s.Emit(ctx, events.Notice{
		Topic:   topic,
		Subject: line.Label(),
		Message: message,
		Data: map[string]any{
			"itemId":   line.ItemID,
			"variant":  line.Variant,
			"quantity": line.Quantity,
		},
	})
}

func (s *Session) indexMiss(index int, err error) {
	if errors.Is(err, ErrIndexOutOfRange) {
		s.deps.Logger.Debug().Str("session_id", s.id).Int("index", index).Msg("cart index out of range")
	}
}
