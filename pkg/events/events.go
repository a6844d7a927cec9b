package events

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/cartify/pkg/logging"
)

const (
	TopicCart    = "cart_events"
	TopicOrder   = "order_events"
	TopicProduct = "product_events"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, ev Event) error
	Close() error
}

// Emit publishes ev after the caller's work is durable. Failures are logged and swallowed.
func Emit(ctx context.Context, p Publisher, topic, key string, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(pubCtx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, string, string, Event) error { return nil }
func (Nop) Close() error                                         { return nil }

type Published struct {
	Topic string
	Key   string
	Event Event
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Published
	Err  error
}

func (r *Recorder) Publish(_ context.Context, topic, key string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Published{Topic: topic, Key: key, Event: ev})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Published, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, p := range r.Events() {
		if p.Topic == topic {
			out = append(out, p.Event.Type)
		}
	}
	return out
}
