package casework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/internal/ledger"
	"github.com/savegress/amldesk/internal/store"
	"github.com/savegress/amldesk/pkg/models"
)

// DefaultMaxCommentLength bounds free-text comments, in characters
const DefaultMaxCommentLength = 250

// Config holds case workflow configuration
type Config struct {
	MaxCommentLength int `yaml:"max_comment_length" json:"max_comment_length"`
	// CommentRetention caps the stored comment list; 0 keeps everything
	CommentRetention int `yaml:"comment_retention" json:"comment_retention"`
}

// Command is one analyst action on one client
type Command struct {
	ClientID string
	Action   Action
	Text     string
	Author   models.UserRef
}

// Handler applies analyst actions to client records
type Handler struct {
	config *Config
	store  store.ClientStore
	audit  *ledger.AuditTrail
	policy ledger.CommentPolicy
	locks  *keyedMutex
	clock  ledger.Clock
	logger *zap.Logger
}

// NewHandler creates a case action handler
func NewHandler(config *Config, s store.ClientStore, audit *ledger.AuditTrail, logger *zap.Logger) *Handler {
	if config == nil {
		config = &Config{}
	}
	if config.MaxCommentLength <= 0 {
		config.MaxCommentLength = DefaultMaxCommentLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = ledger.NewAuditTrail(ledger.DefaultAuditCapacity)
	}

	return &Handler{
		config: config,
		store:  s,
		audit:  audit,
		policy: ledger.CommentPolicy{Retention: config.CommentRetention},
		locks:  newKeyedMutex(),
		clock:  ledger.MonotonicClock(time.Now),
		logger: logger,
	}
}

// SetClock replaces the comment time source
func (h *Handler) SetClock(c ledger.Clock) {
	h.clock = ledger.MonotonicClock(c)
}

// commentText returns the text to persist for cmd
func (h *Handler) commentText(cmd Command) (string, error) {
	if cmd.Action.IsPreset() {
		return cmd.Action.PresetText(), nil
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return "", apperr.Validation("comment text is required")
	}
	if n := utf8.RuneCountInString(text); n > h.config.MaxCommentLength {
		return "", apperr.Validation("comment is %d characters, limit is %d", n, h.config.MaxCommentLength)
	}
	return text, nil
}

func (h *Handler) validate(cmd Command) (string, error) {
	if strings.TrimSpace(cmd.ClientID) == "" {
		return "", apperr.Validation("client id is required")
	}
	if _, err := ParseAction(string(cmd.Action)); err != nil {
		return "", err
	}
	if !CanAct(cmd.Author.Role) {
		return "", apperr.Forbidden("role %q may not record case actions", cmd.Author.Role)
	}
	return h.commentText(cmd)
}

// RecordAction prepends a comment and, for preset actions, sets the status,
// in a single store write. The stored record is returned as the new state.
// On any error the record and the audit trail are left unchanged.
func (h *Handler) RecordAction(ctx context.Context, cmd Command) (*models.Client, error) {
	start := time.Now()
	client, err := h.recordAction(ctx, cmd)
	actionDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
		if result == "" {
			result = "error"
		}
		h.logger.Warn("case action failed",
			zap.String("client_id", cmd.ClientID),
			zap.String("action", string(cmd.Action)),
			zap.String("user", cmd.Author.Display()),
			zap.Error(err))
	}
	label := string(cmd.Action)
	if _, perr := ParseAction(label); perr != nil {
		label = "invalid"
	}
	actionsTotal.WithLabelValues(label, result).Inc()
	return client, err
}

func (h *Handler) recordAction(ctx context.Context, cmd Command) (*models.Client, error) {
	text, err := h.validate(cmd)
	if err != nil {
		return nil, err
	}

	unlock := h.locks.Lock(cmd.ClientID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := h.store.FetchClient(ctx, cmd.ClientID)
	if err != nil {
		return nil, classify("fetch client", err)
	}

	now := h.clock()
	if len(current.Comments) > 0 && now.Before(current.Comments[0].Timestamp) {
		now = current.Comments[0].Timestamp
	}
	comment := ledger.NewComment(cmd.Author, text, now)
	patch := store.Patch{
		Comments: h.policy.Prepend(current.Comments, comment),
		Status:   Transition(current.Status, cmd.Action),
	}

	updated, err := h.store.PatchClient(ctx, cmd.ClientID, patch)
	if err != nil {
		return nil, classify("patch client", err)
	}

	auditAction, details := ledger.ActionCommentAdded, fmt.Sprintf("%s: %s", cmd.ClientID, text)
	if cmd.Action.IsPreset() {
		auditAction = ledger.ActionStatusChanged
		details = fmt.Sprintf("%s: %s -> %s", cmd.ClientID, current.Status, updated.Status)
	}
	h.audit.Append(ctx, cmd.Author.Display(), auditAction, details)

	h.logger.Info("case action recorded",
		zap.String("client_id", cmd.ClientID),
		zap.String("action", string(cmd.Action)),
		zap.String("status", string(updated.Status)),
		zap.Int("comments", len(updated.Comments)),
		zap.String("user", cmd.Author.Display()))

	return updated, nil
}

// classify keeps taxonomy errors and cancellation as they are and wraps
// anything else as a persistence failure
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.Persistence(op, err)
}
