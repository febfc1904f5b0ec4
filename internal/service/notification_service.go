package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/intervention-service/internal/config"
	"github.com/spec-kit/intervention-service/internal/domain"
	"github.com/spec-kit/intervention-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventInterventionCreated, n.handleInterventionCreated)
	n.dispatcher.Subscribe(events.EventInterventionStateChanged, n.handleStateChanged)
	n.dispatcher.Subscribe(events.EventInterventionMaterialsChanged, n.handleMaterialsChanged)
}

func (n *NotificationService) handleInterventionCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("InterventionCreated", eventFields(event)...)
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStateChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("InterventionStateChanged", eventFields(event)...)
	if payload, ok := event.Payload.(events.InterventionStateChangedPayload); ok && payload.NewState == domain.TaskStateFinished {
		n.sendEmailNotificationStub(ctx, event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMaterialsChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("InterventionMaterialsChanged", eventFields(event)...)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("numero_ticket", event.TicketNumber),
		zap.String("intervencion_id", event.InterventionID),
		zap.Any("payload", event.Payload),
	}
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("intervencion_id", event.InterventionID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("intervencion_id", event.InterventionID),
		zap.String("event_type", string(event.Type)))
}
