package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Event types published on the bus.
const (
	TypeStarted   = "session.started"
	TypeRefreshed = "session.refreshed"
	TypeEnded     = "session.ended"
)

// DefaultTopic is used unless NewBus is given another one.
const DefaultTopic = "sessioncore.session"

const eventBuffer = 16

// Event is the wire shape broadcast between execution contexts.
type Event struct {
	Type      string    `json:"type"`
	Origin    string    `json:"origin"`
	At        time.Time `json:"at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Bus wraps a Watermill publisher/subscriber pair with the session event
// encoding. Publisher and subscriber may be the same value (gochannel).
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
}

// NewBus builds a bus on existing Watermill endpoints. An empty topic
// selects DefaultTopic.
func NewBus(pub message.Publisher, sub message.Subscriber, topic string) *Bus {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Bus{publisher: pub, subscriber: sub, topic: topic}
}

// NewInProcess creates a bus local to this process, suitable for tests and
// for several app shells embedded in one binary.
func NewInProcess() *Bus {
	ps := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: eventBuffer},
		watermill.NopLogger{},
	)
	return NewBus(ps, ps, "")
}

// Publish broadcasts ev to every subscribed context, including this one.
func (b *Bus) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}

	return b.publisher.Publish(b.topic, message.NewMessage(uuid.NewString(), payload))
}

// Subscribe delivers decoded events until ctx is cancelled, after which the
// channel is closed. Undecodable messages are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)

		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts down the underlying endpoints.
func (b *Bus) Close() error {
	err := b.publisher.Close()

	// gochannel uses one value for both ends; don't close it twice.
	if any(b.subscriber) != any(b.publisher) {
		if cerr := b.subscriber.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
