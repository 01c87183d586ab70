package domain

import (
	"time"
)

// Participant is a registered attendee of a single event, along with their
// current check-in state.
type Participant struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	CheckedIn        bool       `json:"checked_in"`
	CheckInTime      *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime     *time.Time `json:"check_out_time,omitempty"`
	RegistrationDate time.Time  `json:"registration_date"`
}
