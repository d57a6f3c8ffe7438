package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTopic = "locallive:events"

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

type EventType string

const (
	EventChatAppended  EventType = "chat.appended"
	EventStreamStarted EventType = "stream.started"
	EventStreamEnded   EventType = "stream.ended"
)

// Event is one message on the cross-instance bus.
type Event struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Channel    string          `json:"channel,omitempty"`
	StreamID   domain.StreamID `json:"stream_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ChatEvent decodes the payload of an EventChatAppended event.
func (e *Event) ChatEvent() (domain.ChatEvent, error) {
	var ce domain.ChatEvent
	if e.Type != EventChatAppended {
		return ce, fmt.Errorf("event %s carries no chat event", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return ce, fmt.Errorf("failed to unmarshal chat event: %w", err)
	}
	return ce, nil
}

// EventBus fans feed and stream lifecycle events out to every server
// instance over Redis pub/sub. Events published by this instance are not
// delivered back to it.
type EventBus struct {
	client     *redis.Client
	instanceID string
	topic      string
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger

	mu         sync.Mutex
	pubsub     *redis.PubSub
	subscribed chan struct{}
}

type EventBusOption func(*EventBus)

func WithTopic(topic string) EventBusOption {
	return func(eb *EventBus) { eb.topic = topic }
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) EventBusOption {
	return func(eb *EventBus) { eb.breaker = cb }
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger, opts ...EventBusOption) *EventBus {
	eb := &EventBus{
		client:     client,
		instanceID: instanceID,
		topic:      DefaultTopic,
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:     logger,
		subscribed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(eb)
	}
	eb.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("event bus circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return eb
}

func (eb *EventBus) InstanceID() string { return eb.instanceID }

// Publish stamps the event with this instance and sends it. While Redis is
// failing the breaker short-circuits publishes with circuitbreaker.ErrOpen.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = eb.breaker.Execute(ctx, func() error {
		return eb.client.Publish(ctx, eb.topic, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"channel", event.Channel,
		"stream_id", event.StreamID,
	)
	return nil
}

func (eb *EventBus) PublishChat(ctx context.Context, event domain.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}
	return eb.Publish(ctx, &Event{
		Type:    EventChatAppended,
		Channel: event.Channel,
		Payload: payload,
	})
}

func (eb *EventBus) PublishStreamStarted(ctx context.Context, stream *domain.LiveStream) error {
	payload, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}
	return eb.Publish(ctx, &Event{
		Type:     EventStreamStarted,
		Channel:  stream.Channel,
		StreamID: stream.ID,
		Payload:  payload,
	})
}

func (eb *EventBus) PublishStreamEnded(ctx context.Context, channel string, streamID domain.StreamID) error {
	return eb.Publish(ctx, &Event{
		Type:     EventStreamEnded,
		Channel:  channel,
		StreamID: streamID,
	})
}

// Subscribe blocks delivering events from other instances to handler until
// ctx is done or the bus is closed. Handler errors are logged, not returned.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return ErrAlreadySubscribed
	}
	ps := eb.client.Subscribe(ctx, eb.topic)
	eb.pubsub = ps
	eb.mu.Unlock()

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		eb.mu.Lock()
		eb.pubsub = nil
		eb.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", eb.topic, err)
	}
	close(eb.subscribed)
	eb.logger.Infow("subscribed to event bus", "topic", eb.topic, "instance_id", eb.instanceID)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = ps.Close()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if event.InstanceID == eb.instanceID {
				continue
			}
			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"channel", event.Channel,
					"error", err,
				)
			}
		}
	}
}

// Subscribed is closed once Subscribe has been confirmed by Redis.
func (eb *EventBus) Subscribed() <-chan struct{} {
	return eb.subscribed
}

func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
