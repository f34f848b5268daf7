package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS aml_clients (
	id          TEXT PRIMARY KEY,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'default',
	comments    JSONB NOT NULL DEFAULT '[]'::jsonb,
	document    JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_aml_clients_last_name ON aml_clients (lower(last_name));
`

// Postgres is the primary ClientStore backed by a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgres connects to databaseURL and ensures the schema exists
func NewPostgres(ctx context.Context, databaseURL string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Postgres{pool: pool, opts: o}, nil
}

func (p *Postgres) FetchClient(ctx context.Context, id string) (*models.Client, error) {
	query := `
		SELECT document, comments, status, updated_at
		FROM aml_clients WHERE id = $1
	`

	var r row
	err := p.pool.QueryRow(ctx, query, id).Scan(&r.document, &r.comments, &r.status, &r.updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, apperr.Persistence("fetch client", err)
	}
	return p.finish(r)
}

func (p *Postgres) PatchClient(ctx context.Context, id string, patch Patch) (*models.Client, error) {
	comments, err := encodeComments(patch.Comments)
	if err != nil {
		return nil, apperr.Persistence("patch client", err)
	}

	query := `
		UPDATE aml_clients
		SET comments = $2, status = $3, updated_at = now()
		WHERE id = $1
		RETURNING document, comments, status, updated_at
	`

	var r row
	err = p.pool.QueryRow(ctx, query, id, comments, statusOrDefault(patch.Status)).
		Scan(&r.document, &r.comments, &r.status, &r.updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, apperr.Persistence("patch client", err)
	}
	return p.finish(r)
}

func (p *Postgres) FetchAllClients(ctx context.Context) ([]*models.Client, error) {
	query := `
		SELECT document, comments, status, updated_at
		FROM aml_clients ORDER BY id
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.Persistence("fetch clients", err)
	}
	return p.collect(rows)
}

func (p *Postgres) ListClients(ctx context.Context, q Query) (*Page, error) {
	q = q.Normalize()

	where := `
		WHERE $1::text = ''
		   OR id = $1::text
		   OR position(lower($1::text) in lower(first_name)) > 0
		   OR position(lower($1::text) in lower(last_name)) > 0
	`

	page := &Page{Page: q.Page, Limit: q.Limit}
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM aml_clients `+where, q.Search).Scan(&page.Total); err != nil {
		return nil, apperr.Persistence("count clients", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT document, comments, status, updated_at
		FROM aml_clients `+where+`
		ORDER BY id
		LIMIT $2 OFFSET $3`, q.Search, q.Limit, q.Offset())
	if err != nil {
		return nil, apperr.Persistence("list clients", err)
	}
	items, err := p.collect(rows)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

func (p *Postgres) UpsertClient(ctx context.Context, c *models.Client) error {
	if c == nil || c.ID == "" {
		return apperr.Validation("client id is required")
	}
	doc, comments, err := encodeClient(c)
	if err != nil {
		return apperr.Persistence("upsert client", err)
	}

	query := `
		INSERT INTO aml_clients (id, first_name, last_name, status, comments, document, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			document = EXCLUDED.document,
			updated_at = now()
	`

	_, err = p.pool.Exec(ctx, query, c.ID, c.FirstName, c.LastName, statusOrDefault(c.Status), comments, doc)
	if err != nil {
		return apperr.Persistence("upsert client", err)
	}
	return nil
}

// Close closes the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) collect(rows pgx.Rows) ([]*models.Client, error) {
	defer rows.Close()

	out := []*models.Client{}
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.document, &r.comments, &r.status, &r.updated); err != nil {
			return nil, apperr.Persistence("scan client", err)
		}
		c, err := p.finish(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("iterate clients", err)
	}
	return out, nil
}

func (p *Postgres) finish(r row) (*models.Client, error) {
	c, err := r.decode()
	if err != nil {
		return nil, apperr.Persistence("decode client", err)
	}
	return p.opts.prepare(c), nil
}
