package domain

import (
	"time"
)

// EventStatus is the lifecycle state of an event.
//
// The full lifecycle is PENDING → CONFIRMED → ONGOING → COMPLETED → ARCHIVED.
// Only the COMPLETED edge is automated (the lifecycle job advances CONFIRMED
// and ONGOING events whose end date has passed); every other transition is
// made by operators through the CRUD layer.
type EventStatus string

const (
	StatusPending   EventStatus = "PENDING"
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusOngoing   EventStatus = "ONGOING"
	StatusCompleted EventStatus = "COMPLETED"
	StatusArchived  EventStatus = "ARCHIVED"
)

// Event is the summary projection sent to live observers.
type Event struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	StartDate        *time.Time  `json:"start_date"`
	EndDate          *time.Time  `json:"end_date"`
	Status           EventStatus `json:"status"`
	ParticipantCount int         `json:"participant_count"`
	CheckedInCount   int         `json:"checked_in_count"`
}
