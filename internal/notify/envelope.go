package notify

import (
	"encoding/json"
	"time"

	"github.com/ldonohue/eventlive/internal/domain"
)

// Envelope types form a closed set; anything else on the wire is a protocol
// error.
const (
	TypeInitialData           = "initial_data"
	TypeCheckinUpdate         = "checkin_update"
	TypeCheckoutUpdate        = "checkout_update"
	TypeParticipantRegistered = "participant_registered"
	TypeEventUpdate           = "event_update"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeError                 = "error"
)

// Actions carried by check-in/out update envelopes.
const (
	ActionCheckin  = "checkin"
	ActionCheckout = "checkout"
)

// Envelope is one outbound message: a type tag, the type's payload fields
// and a UTC timestamp. Envelopes are built by the constructors below and
// never mutated afterwards; they are not persisted anywhere.
type Envelope struct {
	Type string `json:"type"`

	// initial_data (detail channel)
	Event        *domain.Event        `json:"event,omitempty"`
	Participants []domain.Participant `json:"participants,omitempty"`

	// initial_data (dashboard channel)
	Events []domain.Event `json:"events,omitempty"`

	// checkin_update / checkout_update / participant_registered
	Participant *domain.Participant `json:"participant,omitempty"`
	Action      string              `json:"action,omitempty"`

	// event_update
	EventID    string `json:"event_id,omitempty"`
	UpdateType string `json:"update_type,omitempty"`
	Data       any    `json:"data,omitempty"`

	// error
	Message string `json:"message,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Encode marshals the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func stamp() time.Time {
	return time.Now().UTC()
}

// NewInitialData is the detail-channel snapshot sent on join and on request.
// It carries the full current state so any update published between the
// state read and the group join is compensated.
func NewInitialData(event *domain.Event, participants []domain.Participant) Envelope {
	return Envelope{
		Type:         TypeInitialData,
		Event:        event,
		Participants: participants,
		Timestamp:    stamp(),
	}
}

// NewDashboardSnapshot is the dashboard-channel snapshot: the principal's
// accessible events with their participant and checked-in counts.
func NewDashboardSnapshot(events []domain.Event) Envelope {
	return Envelope{
		Type:      TypeInitialData,
		Events:    events,
		Timestamp: stamp(),
	}
}

func NewCheckinUpdate(p *domain.Participant) Envelope {
	return Envelope{
		Type:        TypeCheckinUpdate,
		Participant: p,
		Action:      ActionCheckin,
		Timestamp:   stamp(),
	}
}

func NewCheckoutUpdate(p *domain.Participant) Envelope {
	return Envelope{
		Type:        TypeCheckoutUpdate,
		Participant: p,
		Action:      ActionCheckout,
		Timestamp:   stamp(),
	}
}

func NewParticipantRegistered(p *domain.Participant) Envelope {
	return Envelope{
		Type:        TypeParticipantRegistered,
		Participant: p,
		Timestamp:   stamp(),
	}
}

func NewEventUpdate(eventID, updateType string, data any) Envelope {
	return Envelope{
		Type:       TypeEventUpdate,
		EventID:    eventID,
		UpdateType: updateType,
		Data:       data,
		Timestamp:  stamp(),
	}
}

func NewPong() Envelope {
	return Envelope{Type: TypePong, Timestamp: stamp()}
}

func NewError(message string) Envelope {
	return Envelope{Type: TypeError, Message: message, Timestamp: stamp()}
}
