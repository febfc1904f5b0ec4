// Package worker wires background consumers of domain events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/events"
	"github.com/spec-kit/intervention-service/internal/service"
)

// EventsChannel is the Redis pub/sub channel carrying intervention events.
const EventsChannel = "interventions.events"

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Publisher sends an encoded event to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher publishes through Redis PUBLISH.
func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// StartEventForwarder relays every intervention event to publisher as JSON so
// out-of-process consumers can follow the lifecycle. Publish failures are
// logged and do not reach the service that raised the event.
func StartEventForwarder(dispatcher events.Dispatcher, publisher Publisher, logger *zap.Logger) {
	if dispatcher == nil || publisher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	forward := func(ctx context.Context, event events.Event) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", event.ID, err)
		}
		if err := publisher.Publish(ctx, EventsChannel, payload); err != nil {
			logger.Warn("event forward failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventInterventionCreated,
		events.EventInterventionStateChanged,
		events.EventInterventionMaterialsChanged,
	} {
		dispatcher.Subscribe(eventType, forward)
	}
}
