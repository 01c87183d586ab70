// Package gateway runs one actor per live websocket connection: it admits
// the connection (authenticate, then authorize against the target scope),
// joins it to its group(s), serves the initial snapshot and dispatches
// inbound control messages. Admission failures are rejected before the
// websocket handshake completes, so an unauthenticated or unauthorized
// client never sees a single frame.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ldonohue/eventlive/internal/domain"
	"github.com/ldonohue/eventlive/internal/registry"
)

// Store is the persistence surface the gateway reads: admission checks and
// the snapshot projections.
type Store interface {
	AuthenticateToken(ctx context.Context, token string) (*domain.Principal, error)
	CanObserve(ctx context.Context, p *domain.Principal, eventID string) (bool, error)
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error)
	ListAccessibleEvents(ctx context.Context, p *domain.Principal) ([]domain.Event, error)
}

type Gateway struct {
	store    Store
	registry registry.Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongWait     time.Duration

	mu    sync.Mutex
	conns map[string]*connection
}

func New(store Store, reg registry.Registry, pingInterval, pongWait time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:    store,
		registry: reg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is the proxy's concern
			},
		},
		pingInterval: pingInterval,
		pongWait:     pongWait,
		conns:        make(map[string]*connection),
	}
}

// HandleEventChannel serves the per-event detail channel. The principal must
// be the event's creator, assigned staff, or a superuser.
func (g *Gateway) HandleEventChannel(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	principal, err := g.authenticate(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ok, err := g.store.CanObserve(r.Context(), principal, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		g.logger.Error("permission check failed", "event_id", eventID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not permitted to observe this event", http.StatusForbidden)
		return
	}

	g.serve(w, r, principal, eventID)
}

// HandleDashboard serves the aggregate dashboard channel. Any authenticated
// principal is admitted, scoped to its own accessible events.
func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	principal, err := g.authenticate(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	g.serve(w, r, principal, "")
}

// authenticate extracts the bearer token from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func (g *Gateway) authenticate(r *http.Request) (*domain.Principal, error) {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); auth != "" {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return g.store.AuthenticateToken(r.Context(), token)
}

// serve upgrades the connection, joins its groups, sends the snapshot and
// starts the pumps. An empty eventID means the dashboard channel.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, principal *domain.Principal, eventID string) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	groups := []string{registry.DashboardGroup(principal.ID)}
	if eventID != "" {
		groups = []string{registry.EventGroup(eventID)}
	}

	c := &connection{
		id:        uuid.NewString(),
		principal: principal,
		eventID:   eventID,
		groups:    groups,
		ws:        ws,
		send:      make(chan []byte, 64),
		done:      make(chan struct{}),
		gw:        g,
	}

	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()

	// Join before reading the snapshot: an update racing the snapshot read
	// is then delivered live as well, so nothing is lost in the gap.
	for _, group := range c.groups {
		g.registry.Join(group, c)
	}

	g.logger.Debug("connection joined",
		"connection", c.id, "principal", principal.ID, "event_id", eventID)

	go c.writePump()
	go c.readPump()

	if err := c.sendSnapshot(context.Background()); err != nil {
		g.logger.Error("failed to send initial snapshot", "connection", c.id, "error", err)
		c.teardown("snapshot failed")
	}
}

func (g *Gateway) remove(c *connection) {
	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()
}

// ConnectionCount returns the number of live connections on this node.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Close tears down every live connection. Used on server shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.teardown("server shutdown")
	}
}
