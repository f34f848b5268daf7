package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/savegress/amldesk/pkg/models"
)

// DefaultAuditCapacity is the number of audit entries kept per install
const DefaultAuditCapacity = 50

// Audit actions written by the application
const (
	ActionCaseOpened    = "Création du dossier"
	ActionKYCValidated  = "Validation KYC"
	ActionStatusChanged = "Changement de statut"
	ActionCommentAdded  = "Ajout de commentaire"
	ActionExportPDF     = "Export PDF"
)

// Mirror persists the audit trail outside the process
type Mirror interface {
	PushAudit(ctx context.Context, entry models.AuditEntry, capacity int) error
	LoadAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Clock returns the current time
type Clock func() time.Time

// MonotonicClock wraps a clock so successive readings never go backwards
func MonotonicClock(base Clock) Clock {
	if base == nil {
		base = time.Now
	}
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := base()
		if now.Before(last) {
			now = last
		}
		last = now
		return now
	}
}

// AuditTrail is the bounded, newest-first audit log of one install
type AuditTrail struct {
	mu     sync.RWMutex
	items  *Deque[models.AuditEntry]
	mirror Mirror
	clock  Clock
	logger *zap.Logger
}

// AuditOption configures an AuditTrail
type AuditOption func(*AuditTrail)

// WithMirror persists every entry through m
func WithMirror(m Mirror) AuditOption {
	return func(a *AuditTrail) { a.mirror = m }
}

// WithClock replaces the time source
func WithClock(c Clock) AuditOption {
	return func(a *AuditTrail) { a.clock = MonotonicClock(c) }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) AuditOption {
	return func(a *AuditTrail) { a.logger = l }
}

// NewAuditTrail creates a trail keeping at most capacity entries
func NewAuditTrail(capacity int, opts ...AuditOption) *AuditTrail {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	a := &AuditTrail{
		items:  NewDeque[models.AuditEntry](capacity),
		clock:  MonotonicClock(time.Now),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append records an event at the head of the trail, never stamped earlier
// than the current head. Mirror failures are logged; the in-memory trail
// stays authoritative.
func (a *AuditTrail) Append(ctx context.Context, user, action, details string) models.AuditEntry {
	a.mu.Lock()
	now := a.clock()
	if head, ok := a.items.Front(); ok && now.Before(head.Timestamp) {
		now = head.Timestamp
	}
	entry := models.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		User:      user,
		Action:    action,
		Details:   details,
	}
	a.items.PushFront(entry)
	a.mu.Unlock()

	if a.mirror != nil {
		if err := a.mirror.PushAudit(ctx, entry, a.items.Cap()); err != nil {
			a.logger.Warn("audit mirror push failed",
				zap.String("action", action),
				zap.Error(err))
		}
	}
	return entry
}

// Entries returns the trail, newest first
func (a *AuditTrail) Entries() []models.AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.items.Items()
}

// Len returns the number of entries held
func (a *AuditTrail) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.items.Len()
}

// Restore reloads the trail from the mirror. Entries arrive newest first.
func (a *AuditTrail) Restore(ctx context.Context) (int, error) {
	if a.mirror == nil {
		return 0, nil
	}
	entries, err := a.mirror.LoadAudit(ctx, a.items.Cap())
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.items.Reset()
	for i := len(entries) - 1; i >= 0; i-- {
		a.items.PushFront(entries[i])
	}
	return a.items.Len(), nil
}
