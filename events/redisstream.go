package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
)

// NewRedisStream creates a bus backed by Redis streams so execution
// contexts in separate processes see each other's lifecycle events.
//
// The subscriber joins without a consumer group: every context receives
// every event, which is exactly the fan-out a logout broadcast needs.
func NewRedisStream(client redis.UniversalClient, topic string) (*Bus, error) {
	logger := watermill.NopLogger{}

	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}

	sub, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{Client: client},
		logger,
	)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return NewBus(pub, sub, topic), nil
}
