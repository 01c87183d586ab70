package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ldonohue/eventlive/internal/domain"
	"github.com/ldonohue/eventlive/internal/notify"
	"github.com/ldonohue/eventlive/internal/store"
)

// ParticipantHandler serves the mutation endpoints that produce live
// updates: registration and check-in/out. Each mutation runs in a
// transaction and registers its notification as an after-commit hook, so an
// update is published if and only if the state change is durable.
type ParticipantHandler struct {
	store    *store.PostgresStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewParticipantHandler(s *store.PostgresStore, n *notify.Notifier, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{store: s, notifier: n, logger: logger}
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	principal, ok := h.authorize(w, r, eventID)
	if !ok {
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "first_name and email are required")
		return
	}

	var participant *domain.Participant
	err := h.store.WithTx(r.Context(), func(tx *store.Tx) error {
		var err error
		participant, err = h.store.RegisterParticipant(r.Context(), tx, eventID, req.FirstName, req.LastName, req.Email)
		if err != nil {
			return err
		}
		tx.AfterCommit(func() {
			h.notifier.ParticipantRegistered(notifyContext(r), participant)
		})
		return nil
	})
	if err != nil {
		h.logger.Error("failed to register participant", "event_id", eventID, "principal", principal.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register participant")
		return
	}

	respondJSON(w, http.StatusCreated, participant)
}

func (h *ParticipantHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.setCheckedIn(w, r, true)
}

func (h *ParticipantHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.setCheckedIn(w, r, false)
}

func (h *ParticipantHandler) setCheckedIn(w http.ResponseWriter, r *http.Request, checkIn bool) {
	participantID := chi.URLParam(r, "id")

	existing, err := h.store.GetParticipant(r.Context(), participantID)
	if err != nil {
		if errors.Is(err, domain.ErrParticipantNotFound) {
			respondError(w, http.StatusNotFound, "participant not found")
			return
		}
		h.logger.Error("failed to load participant", "participant_id", participantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load participant")
		return
	}

	if _, ok := h.authorize(w, r, existing.EventID); !ok {
		return
	}

	var participant *domain.Participant
	err = h.store.WithTx(r.Context(), func(tx *store.Tx) error {
		now := time.Now().UTC()
		var err error
		if checkIn {
			participant, err = h.store.CheckIn(r.Context(), tx, participantID, now)
		} else {
			participant, err = h.store.CheckOut(r.Context(), tx, participantID, now)
		}
		if err != nil {
			return err
		}
		tx.AfterCommit(func() {
			if checkIn {
				h.notifier.ParticipantCheckedIn(notifyContext(r), participant)
			} else {
				h.notifier.ParticipantCheckedOut(notifyContext(r), participant)
			}
		})
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyCheckedIn):
			respondError(w, http.StatusConflict, "participant already checked in")
		case errors.Is(err, domain.ErrNotCheckedIn):
			respondError(w, http.StatusConflict, "participant not checked in")
		case errors.Is(err, domain.ErrParticipantNotFound):
			respondError(w, http.StatusNotFound, "participant not found")
		default:
			h.logger.Error("failed to update check-in state", "participant_id", participantID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update check-in state")
		}
		return
	}

	respondJSON(w, http.StatusOK, participant)
}

// authorize resolves the request's principal and checks it may act on the
// event. Writes the error response itself when admission fails.
func (h *ParticipantHandler) authorize(w http.ResponseWriter, r *http.Request, eventID string) (*domain.Principal, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	principal, err := h.store.AuthenticateToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return nil, false
		}
		h.logger.Error("authentication failed", "error", err)
		respondError(w, http.StatusInternalServerError, "authentication failed")
		return nil, false
	}

	ok, err := h.store.CanObserve(r.Context(), principal, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			respondError(w, http.StatusNotFound, "event not found")
			return nil, false
		}
		h.logger.Error("permission check failed", "event_id", eventID, "error", err)
		respondError(w, http.StatusInternalServerError, "permission check failed")
		return nil, false
	}
	if !ok {
		respondError(w, http.StatusForbidden, "not permitted to act on this event")
		return nil, false
	}

	return principal, true
}

// notifyContext detaches the publish from the request's cancellation: once
// the mutation has committed, the notification goes out even if the caller
// hangs up.
func notifyContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
