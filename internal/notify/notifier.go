package notify

import (
	"context"
	"log/slog"

	"github.com/ldonohue/eventlive/internal/domain"
	"github.com/ldonohue/eventlive/internal/registry"
)

// Dashboard update_type values.
const (
	UpdateCheckin               = "checkin"
	UpdateCheckout              = "checkout"
	UpdateParticipantRegistered = "participant_registered"
	UpdateEventCompleted        = "event_completed"
)

// SupervisorSource resolves the principals entitled to an event's dashboard
// updates: the creator, assigned staff and superusers.
type SupervisorSource interface {
	SupervisorsOf(ctx context.Context, eventID string) ([]string, error)
}

// Notifier builds envelopes for domain actions and publishes them to the
// event's detail group and to each supervisor's dashboard group.
//
// Notifier methods must be called only after the triggering mutation has
// committed (see store.Tx.AfterCommit). They are fire-and-forget: a failed
// publish is logged and swallowed so the already-durable state change is
// never invalidated by a notification problem.
type Notifier struct {
	registry    registry.Registry
	supervisors SupervisorSource
	logger      *slog.Logger
}

func NewNotifier(reg registry.Registry, supervisors SupervisorSource, logger *slog.Logger) *Notifier {
	return &Notifier{
		registry:    reg,
		supervisors: supervisors,
		logger:      logger,
	}
}

func (n *Notifier) ParticipantCheckedIn(ctx context.Context, p *domain.Participant) {
	n.publish(ctx, registry.EventGroup(p.EventID), NewCheckinUpdate(p))
	n.publishToSupervisors(ctx, p.EventID, UpdateCheckin, p)
}

func (n *Notifier) ParticipantCheckedOut(ctx context.Context, p *domain.Participant) {
	n.publish(ctx, registry.EventGroup(p.EventID), NewCheckoutUpdate(p))
	n.publishToSupervisors(ctx, p.EventID, UpdateCheckout, p)
}

func (n *Notifier) ParticipantRegistered(ctx context.Context, p *domain.Participant) {
	n.publish(ctx, registry.EventGroup(p.EventID), NewParticipantRegistered(p))
	n.publishToSupervisors(ctx, p.EventID, UpdateParticipantRegistered, p)
}

// EventCompleted announces a lifecycle completion on both the event's detail
// group and the supervisors' dashboards.
func (n *Notifier) EventCompleted(ctx context.Context, eventID string) {
	n.publish(ctx, registry.EventGroup(eventID), NewEventUpdate(eventID, UpdateEventCompleted, nil))
	n.publishToSupervisors(ctx, eventID, UpdateEventCompleted, nil)
}

func (n *Notifier) publish(ctx context.Context, group string, env Envelope) {
	payload, err := env.Encode()
	if err != nil {
		n.logger.Error("failed to encode envelope", "type", env.Type, "error", err)
		return
	}
	if err := n.registry.Publish(ctx, group, payload); err != nil {
		n.logger.Error("failed to publish envelope", "type", env.Type, "group", group, "error", err)
	}
}

func (n *Notifier) publishToSupervisors(ctx context.Context, eventID, updateType string, data any) {
	supervisors, err := n.supervisors.SupervisorsOf(ctx, eventID)
	if err != nil {
		n.logger.Error("failed to resolve event supervisors", "event_id", eventID, "error", err)
		return
	}
	for _, id := range supervisors {
		n.publish(ctx, registry.DashboardGroup(id), NewEventUpdate(eventID, updateType, data))
	}
}
