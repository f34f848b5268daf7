package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
)

// Memory is an in-process ClientStore for tests and demos
type Memory struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
	opts    options

	// injected failures
	patchErr error
	readErr  error
	patches  int
}

// NewMemory creates an empty memory store
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{clients: make(map[string]*models.Client), opts: o}
}

// Seed stores clients as-is, replacing any existing record with the same id
func (m *Memory) Seed(clients ...*models.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range clients {
		m.clients[c.ID] = c.Clone()
	}
}

// FailPatches makes every following PatchClient return err; nil clears it
func (m *Memory) FailPatches(err error) {
	m.mu.Lock()
	m.patchErr = err
	m.mu.Unlock()
}

// FailReads makes every following read return err; nil clears it
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// PatchCount returns the number of successful patches
func (m *Memory) PatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.patches
}

func (m *Memory) FetchClient(ctx context.Context, id string) (*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, apperr.Persistence("fetch client", m.readErr)
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, apperr.NotFound("client", id)
	}
	return m.opts.prepare(c.Clone()), nil
}

func (m *Memory) PatchClient(ctx context.Context, id string, patch Patch) (*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patchErr != nil {
		return nil, apperr.Persistence("patch client", m.patchErr)
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, apperr.NotFound("client", id)
	}

	next := c.Clone()
	next.Comments = append([]models.Comment(nil), patch.Comments...)
	next.Status = patch.Status
	next.UpdatedAt = time.Now().UTC()
	m.clients[id] = next
	m.patches++

	return m.opts.prepare(next.Clone()), nil
}

func (m *Memory) FetchAllClients(ctx context.Context) ([]*models.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, apperr.Persistence("fetch clients", m.readErr)
	}
	out := make([]*models.Client, 0, len(m.clients))
	for _, id := range m.sortedIDs() {
		out = append(out, m.opts.prepare(m.clients[id].Clone()))
	}
	return out, nil
}

func (m *Memory) ListClients(ctx context.Context, q Query) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readErr != nil {
		return nil, apperr.Persistence("list clients", m.readErr)
	}

	var matched []*models.Client
	for _, id := range m.sortedIDs() {
		if c := m.clients[id]; Matches(c, q.Search) {
			matched = append(matched, c)
		}
	}

	page := &Page{Items: []*models.Client{}, Total: len(matched), Page: q.Page, Limit: q.Limit}
	start := q.Offset()
	if start >= len(matched) {
		return page, nil
	}
	end := len(matched)
	if q.Limit < end-start {
		end = start + q.Limit
	}
	for _, c := range matched[start:end] {
		page.Items = append(page.Items, m.opts.prepare(c.Clone()))
	}
	return page, nil
}

func (m *Memory) UpsertClient(ctx context.Context, c *models.Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return apperr.Validation("client id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := c.Clone()
	if existing, ok := m.clients[c.ID]; ok {
		next.Comments = existing.Comments
		next.Status = existing.Status
	}
	next.UpdatedAt = time.Now().UTC()
	m.clients[c.ID] = next
	return nil
}

func (m *Memory) Close() error { return nil }

// sortedIDs must be called with the lock held
func (m *Memory) sortedIDs() []string {
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
