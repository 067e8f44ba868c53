package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"vehicle-auction-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LotEventsChannel is the pub/sub channel carrying committed lot changes.
const LotEventsChannel = "auction:lot-events"

// EventPublisher implements ports.EventPublisher over Redis pub/sub, so every
// API instance can fan events out to its own websocket clients.
type EventPublisher struct {
	client  *goredis.Client
	channel string
	log     zerolog.Logger
}

// NewEventPublisher creates a publisher on LotEventsChannel.
func NewEventPublisher(client *goredis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{client: client, channel: LotEventsChannel, log: log}
}

// Publish sends one event.
func (p *EventPublisher) Publish(ctx context.Context, event domain.LotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lot event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// EventSubscription streams decoded lot events until closed.
type EventSubscription struct {
	ps     *goredis.PubSub
	events chan domain.LotEvent
}

// Events returns the event stream. It is closed after Close.
func (s *EventSubscription) Events() <-chan domain.LotEvent {
	return s.events
}

// Close unsubscribes.
func (s *EventSubscription) Close() error {
	return s.ps.Close()
}

// Subscribe listens on the channel. It returns once Redis has confirmed the
// subscription, so events published afterwards are not missed.
func (p *EventPublisher) Subscribe(ctx context.Context) (*EventSubscription, error) {
	ps := p.client.Subscribe(ctx, p.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &EventSubscription{ps: ps, events: make(chan domain.LotEvent, 64)}
	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var ev domain.LotEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.log.Warn().Err(err).Msg("dropping malformed lot event")
				continue
			}
			sub.events <- ev
		}
	}()
	return sub, nil
}
