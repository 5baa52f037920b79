// Package mediation implements the marketplace verbs: buyer requests, admin
// quotes and approvals, campaign transitions and the cascades they drive
// across assets, offer requests and campaigns. It also serves the derived
// read views.
//
// The store only offers single-document atomicity, so every verb performs its
// peer writes first, each conditioned on the state it observed, and writes the
// governing document last. When a later write fails, the earlier ones are
// compensated and the verb fails.
package mediation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"beatspace/models"
	"beatspace/store"
	"beatspace/websocket"
)

// Notifier is the push channel the service emits lifecycle events on.
type Notifier interface {
	SendToPrincipal(id string, ev websocket.Event) int
	SendToAdmins(ev websocket.Event) int
	Connected(id string) bool
}

type Service struct {
	store  *store.Store
	notify Notifier
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(st *store.Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:  st,
		notify: notifier,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = discard{}
	}
	s.logger = s.logger.With("module", "mediation")
	return s
}

func (s *Service) Store() *store.Store { return s.store }

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

type discard struct{}

func (discard) SendToPrincipal(string, websocket.Event) int { return 0 }
func (discard) SendToAdmins(websocket.Event) int            { return 0 }
func (discard) Connected(string) bool                       { return false }

// toAdmins and toPrincipal are fire-and-forget; delivery never affects the verb.
func (s *Service) toAdmins(eventType string, payload map[string]interface{}) {
	n := s.notify.SendToAdmins(websocket.NewEvent(eventType, payload))
	s.logger.Debug("event emitted", "event", "ws_emit", "type", eventType, "audience", "admins", "delivered", n)
}

func (s *Service) toPrincipal(id, eventType string, payload map[string]interface{}) {
	if id == "" {
		return
	}
	n := s.notify.SendToPrincipal(id, websocket.NewEvent(eventType, payload))
	s.logger.Debug("event emitted", "event", "ws_emit", "type", eventType, "audience", id, "delivered", n)
}

// audit records a committed transition. Failures are logged, never returned.
func (s *Service) audit(ctx context.Context, actor models.Principal, action, entityType, entityID, from, to string, details map[string]interface{}) {
	entry := &models.AuditLog{
		ID:         s.newID(),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		FromStatus: from,
		ToStatus:   to,
		Details:    details,
		CreatedAt:  s.timestamp(),
	}
	if err := s.store.Audit.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed", "event", "audit_failed", "action", action, "entity_id", entityID, "error", err)
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
