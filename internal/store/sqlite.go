package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS aml_clients (
	id          TEXT PRIMARY KEY,
	first_name  TEXT NOT NULL DEFAULT '',
	last_name   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'default',
	comments    TEXT NOT NULL DEFAULT '[]',
	document    TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aml_clients_last_name ON aml_clients (lower(last_name));
`

const sqliteColumns = `document, comments, status, updated_at`

// SQLite is the embedded ClientStore used by single-analyst installs
type SQLite struct {
	db     *sql.DB
	dbPath string
	opts   options
}

// NewSQLite opens (or creates) amldesk.db under dataPath
func NewSQLite(dataPath string, opts ...Option) (*SQLite, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "amldesk.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQLite{db: db, dbPath: dbPath, opts: o}, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) FetchClient(ctx context.Context, id string) (*models.Client, error) {
	r, err := scanSQLiteRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM aml_clients WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, apperr.Persistence("fetch client", err)
	}
	return s.finish(r)
}

func (s *SQLite) PatchClient(ctx context.Context, id string, patch Patch) (*models.Client, error) {
	comments, err := encodeComments(patch.Comments)
	if err != nil {
		return nil, apperr.Persistence("patch client", err)
	}

	r, err := scanSQLiteRow(s.db.QueryRowContext(ctx, `
		UPDATE aml_clients
		SET comments = ?, status = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+sqliteColumns,
		string(comments), statusOrDefault(patch.Status), time.Now().UnixMilli(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, apperr.Persistence("patch client", err)
	}
	return s.finish(r)
}

func (s *SQLite) FetchAllClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM aml_clients ORDER BY id`)
	if err != nil {
		return nil, apperr.Persistence("fetch clients", err)
	}
	return s.collect(rows)
}

func (s *SQLite) ListClients(ctx context.Context, q Query) (*Page, error) {
	q = q.Normalize()

	where := `
		WHERE ?1 = ''
		   OR id = ?1
		   OR instr(lower(first_name), lower(?1)) > 0
		   OR instr(lower(last_name), lower(?1)) > 0
	`

	page := &Page{Page: q.Page, Limit: q.Limit}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM aml_clients `+where, q.Search).Scan(&page.Total); err != nil {
		return nil, apperr.Persistence("count clients", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+` FROM aml_clients `+where+`
		ORDER BY id
		LIMIT ?2 OFFSET ?3`, q.Search, q.Limit, q.Offset())
	if err != nil {
		return nil, apperr.Persistence("list clients", err)
	}
	items, err := s.collect(rows)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

func (s *SQLite) UpsertClient(ctx context.Context, c *models.Client) error {
	if c == nil || c.ID == "" {
		return apperr.Validation("client id is required")
	}
	doc, comments, err := encodeClient(c)
	if err != nil {
		return apperr.Persistence("upsert client", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO aml_clients (id, first_name, last_name, status, comments, document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			document = excluded.document,
			updated_at = excluded.updated_at
	`, c.ID, c.FirstName, c.LastName, statusOrDefault(c.Status), string(comments), string(doc), time.Now().UnixMilli())
	if err != nil {
		return apperr.Persistence("upsert client", err)
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(sc scanner) (row, error) {
	var (
		r         row
		doc, cmts string
		updated   int64
	)
	if err := sc.Scan(&doc, &cmts, &r.status, &updated); err != nil {
		return r, err
	}
	r.document = []byte(doc)
	r.comments = []byte(cmts)
	r.updated = time.UnixMilli(updated)
	return r, nil
}

func (s *SQLite) collect(rows *sql.Rows) ([]*models.Client, error) {
	defer rows.Close()

	out := []*models.Client{}
	for rows.Next() {
		r, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, apperr.Persistence("scan client", err)
		}
		c, err := s.finish(r)
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

func (s *SQLite) finish(r row) (*models.Client, error) {
	c, err := r.decode()
	if err != nil {
		return nil, apperr.Persistence("decode client", err)
	}
	return s.opts.prepare(c), nil
}
