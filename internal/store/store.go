// Package store provides the client record store adapters
package store

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/scoring"
	"github.com/savegress/amldesk/pkg/models"
)

// DefaultPageSize is the client list page size
const DefaultPageSize = 10

// MaxPageSize bounds a single list request
const MaxPageSize = 500

// ClientStore is the record store the case workflow and dashboard read from.
// Records returned are owned by the caller.
type ClientStore interface {
	// FetchClient returns the authoritative record or apperr.ErrNotFound
	FetchClient(ctx context.Context, id string) (*models.Client, error)

	// PatchClient replaces comments and status in one write and returns the stored record
	PatchClient(ctx context.Context, id string, patch Patch) (*models.Client, error)

	// FetchAllClients returns every record
	FetchAllClients(ctx context.Context) ([]*models.Client, error)

	// ListClients returns one page of records matching q
	ListClients(ctx context.Context, q Query) (*Page, error)

	// UpsertClient inserts or refreshes an ingested record. Comments and
	// status of an existing record are kept.
	UpsertClient(ctx context.Context, c *models.Client) error

	// Close releases the underlying resources
	Close() error
}

// Patch is the only mutation the case workflow performs
type Patch struct {
	Comments []models.Comment  `json:"comments"`
	Status   models.CaseStatus `json:"status"`
}

// Query selects a page of clients. Search matches first or last name
// case-insensitively, or the id exactly.
type Query struct {
	Search string
	Page   int
	Limit  int
}

// Normalize fills defaults: page 1, limit DefaultPageSize
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Offset returns the row offset of the page, saturating at math.MaxInt
func (q Query) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Page is a slice of a client listing
type Page struct {
	Items []*models.Client `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// Pages returns the number of pages for the listing
func (p *Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Matches reports whether c satisfies the search term
func Matches(c *models.Client, search string) bool {
	if search == "" {
		return true
	}
	if c.ID == search {
		return true
	}
	s := strings.ToLower(search)
	return strings.Contains(strings.ToLower(c.FirstName), s) ||
		strings.Contains(strings.ToLower(c.LastName), s)
}

// Option configures a store adapter
type Option func(*options)

type options struct {
	thresholds scoring.Thresholds
	logger     *zap.Logger
}

func defaultOptions() options {
	return options{thresholds: scoring.DefaultThresholds, logger: zap.NewNop()}
}

// WithThresholds sets the thresholds used to recompute derived scores on read
func WithThresholds(t scoring.Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// prepare recomputes derived scores and normalizes missing arrays on a
// record leaving the store
func (o options) prepare(c *models.Client) *models.Client {
	for _, err := range o.thresholds.Rescore(c) {
		o.logger.Debug("partial client record",
			zap.String("client_id", c.ID),
			zap.Error(err))
	}
	return c
}
