package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/integration/notification"
	"github.com/spec-kit/ticket-upgrade-agent/internal/observability"
)

// NotificationService turns upgrade events into customer notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notification.Notifier
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notification.Notifier, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events. Each handler is passed through wrap
// when it is not nil, which lets the caller move delivery off the publisher.
func (n *NotificationService) RegisterHandlers(wrap func(events.EventHandler) events.EventHandler) {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	if wrap == nil {
		wrap = func(h events.EventHandler) events.EventHandler { return h }
	}
	n.dispatcher.Subscribe(events.EventUpgradeOrderCreated, wrap(n.handleOrderCreated))
	n.dispatcher.Subscribe(events.EventUpgradeOrderCompleted, wrap(n.handleOrderCompleted))
	n.dispatcher.Subscribe(events.EventUpgradePaymentFailed, wrap(n.handlePaymentFailed))
}

func (n *NotificationService) handleOrderCreated(ctx context.Context, event events.Event) error {
	data := map[string]any{"order_id": event.OrderID, "ticket_id": event.TicketID}
	if p, ok := event.Payload.(events.OrderCreatedPayload); ok {
		data["ticket_number"] = p.TicketNumber
		data["tier"] = p.RequestedTier
		data["price_delta"] = p.PriceDelta.String()
		data["total_amount"] = p.TotalAmount.String()
	}
	return n.send(ctx, event, notification.TemplateOrderCreated, data)
}

func (n *NotificationService) handleOrderCompleted(ctx context.Context, event events.Event) error {
	data := map[string]any{"order_id": event.OrderID, "ticket_id": event.TicketID}
	if p, ok := event.Payload.(events.OrderCompletedPayload); ok {
		data["tier"] = p.RequestedTier
		data["total_amount"] = p.TotalAmount.String()
		data["confirmation_code"] = p.ConfirmationCode
		data["transaction_id"] = p.TransactionID
	}
	return n.send(ctx, event, notification.TemplateConfirmation, data)
}

func (n *NotificationService) handlePaymentFailed(ctx context.Context, event events.Event) error {
	data := map[string]any{"order_id": event.OrderID, "ticket_id": event.TicketID}
	if p, ok := event.Payload.(events.PaymentFailedPayload); ok {
		data["total_amount"] = p.TotalAmount.String()
		data["reason"] = p.Reason
	}
	return n.send(ctx, event, notification.TemplatePaymentFailed, data)
}

func (n *NotificationService) send(ctx context.Context, event events.Event, template notification.Template, data map[string]any) error {
	err := n.notifier.Send(ctx, notification.Message{CustomerID: event.CustomerID, Template: template, Data: data})
	if err != nil {
		n.metrics.RecordNotification(string(template), "error")
		n.logger.Warn("notification not delivered",
			zap.String("template", string(template)),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		return err
	}
	n.metrics.RecordNotification(string(template), "sent")
	n.logger.Debug("notification sent", zap.String("template", string(template)), zap.String("order_id", event.OrderID))
	return nil
}
