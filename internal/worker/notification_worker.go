package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-upgrade-agent/internal/events"
	"github.com/spec-kit/ticket-upgrade-agent/internal/service"
)

// StartNotificationWorker registers notification handlers. With a queue,
// notifications are delivered in the background.
func StartNotificationWorker(notificationService *service.NotificationService, queue *Queue) {
	if notificationService == nil {
		return
	}
	if queue == nil {
		notificationService.RegisterHandlers(nil)
		return
	}
	notificationService.RegisterHandlers(queue.Wrap)
}

// StartAuditWorker logs every upgrade event so order activity can be traced
// from the service log alone.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := func(_ context.Context, event events.Event) error {
		logger.Info("upgrade event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.String("ticket_id", event.TicketID),
			zap.String("customer_id", event.CustomerID),
			zap.Time("at", event.Timestamp))
		return nil
	}
	for _, t := range []events.EventType{
		events.EventUpgradeOrderCreated,
		events.EventUpgradeOrderCompleted,
		events.EventUpgradePaymentFailed,
	} {
		dispatcher.Subscribe(t, audit)
	}
}
