package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/complaint-engine/internal/events"
)

// Notifier dispatches a message about a complaint to a staff member.
// Delivery is fire-and-forget; failures never roll back the triggering
// assignment.
type Notifier interface {
	Notify(ctx context.Context, staffRef, complaintRef, message string)
}

// LogNotifier is the default Notifier; real delivery (email, WhatsApp) is an
// external collaborator behind the same interface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the would-be notification.
func (n *LogNotifier) Notify(_ context.Context, staffRef, complaintRef, message string) {
	n.logger.Info("notify",
		zap.String("staff_ref", staffRef),
		zap.String("complaint_ref", complaintRef),
		zap.String("message", message),
	)
}

// NotificationService translates domain events into staff notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventComplaintAssigned, n.handleAssigned)
	n.dispatcher.Subscribe(events.EventComplaintReassigned, n.handleAssigned)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleBreached)
}

func (n *NotificationService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ComplaintAssignedPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("complaint assigned to you, respond by %s", payload.SLADeadline.Format("2006-01-02 15:04"))
	n.notifier.Notify(ctx, payload.StaffRef, event.ComplaintID, message)
	return nil
}

func (n *NotificationService) handleBreached(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return nil
	}
	if payload.StaffRef == nil {
		return nil
	}
	message := fmt.Sprintf("SLA breached, penalty %s applied", payload.PenaltyAmount.String())
	n.notifier.Notify(ctx, *payload.StaffRef, event.ComplaintID, message)
	return nil
}
