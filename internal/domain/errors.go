package domain

import "errors"

var (
	// ErrUnauthenticated means no valid credentials were presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrEventNotFound       = errors.New("event not found")
	ErrParticipantNotFound = errors.New("participant not found")

	ErrAlreadyCheckedIn = errors.New("participant already checked in")
	ErrNotCheckedIn     = errors.New("participant not checked in")
)
