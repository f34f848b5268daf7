package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/pkg/models"
)

func sampleClient(id, first, last string) *models.Client {
	return &models.Client{
		ID:        id,
		FirstName: first,
		LastName:  last,
		BirthDate: "1980-04-12",
		RiskScore: 3, // stale on purpose
		ScoringDetails: []models.ScoringDetail{
			{Label: "A", Value: 40},
			{Label: "B", Value: -10},
			{Label: "C", Value: 50},
		},
		BehavioralDetails: []models.BehaviorDetail{{Label: "x", Value: 2}, {Label: "y", Value: 3}},
		Status:            models.CaseStatusDefault,
	}
}

// runContract exercises the behavior every adapter must share
func runContract(t *testing.T, s ClientStore) {
	ctx := context.Background()

	for _, c := range []*models.Client{
		sampleClient("C1", "Alice", "Martin"),
		sampleClient("C2", "Bruno", "Dubois"),
		sampleClient("C3", "Camille", "Martinez"),
	} {
		require.NoError(t, s.UpsertClient(ctx, c))
	}

	t.Run("fetch recomputes derived scores", func(t *testing.T) {
		c, err := s.FetchClient(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, 80, c.RiskScore)
		assert.Equal(t, 3, c.BehavioralScore)
		assert.Equal(t, models.CaseStatusDefault, c.Status)
		assert.NotNil(t, c.Comments)
		assert.NotNil(t, c.Alerts)
	})

	t.Run("fetch missing", func(t *testing.T) {
		_, err := s.FetchClient(ctx, "nope")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("patch replaces comments and status", func(t *testing.T) {
		comment := models.Comment{
			ID:        "cm1",
			Timestamp: time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC),
			Author:    models.UserRef{ID: "u1", Email: "ana@example.com"},
			Text:      "Blocage",
		}
		got, err := s.PatchClient(ctx, "C2", Patch{Comments: []models.Comment{comment}, Status: models.CaseStatusBlock})
		require.NoError(t, err)
		assert.Equal(t, models.CaseStatusBlock, got.Status)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "Blocage", got.Comments[0].Text)
		assert.True(t, comment.Timestamp.Equal(got.Comments[0].Timestamp))

		again, err := s.FetchClient(ctx, "C2")
		require.NoError(t, err)
		assert.Equal(t, got.Status, again.Status)
		assert.Len(t, again.Comments, 1)
	})

	t.Run("patch missing", func(t *testing.T) {
		_, err := s.PatchClient(ctx, "nope", Patch{Status: models.CaseStatusAbandon})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("upsert keeps case state", func(t *testing.T) {
		refreshed := sampleClient("C2", "Bruno", "Dubois-Leroy")
		require.NoError(t, s.UpsertClient(ctx, refreshed))

		got, err := s.FetchClient(ctx, "C2")
		require.NoError(t, err)
		assert.Equal(t, "Dubois-Leroy", got.LastName)
		assert.Equal(t, models.CaseStatusBlock, got.Status)
		assert.Len(t, got.Comments, 1)
	})

	t.Run("list search", func(t *testing.T) {
		page, err := s.ListClients(ctx, Query{Search: "mart"})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, DefaultPageSize, page.Limit)

		page, err = s.ListClients(ctx, Query{Search: "C3"})
		require.NoError(t, err)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "Camille", page.Items[0].FirstName)

		page, err = s.ListClients(ctx, Query{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.Pages())
		require.Len(t, page.Items, 1)
		assert.Equal(t, "C3", page.Items[0].ID)
	})

	t.Run("fetch all", func(t *testing.T) {
		all, err := s.FetchAllClients(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "C1", all[0].ID)
		for _, c := range all {
			assert.Equal(t, 80, c.RiskScore)
		}
	})

	t.Run("upsert requires id", func(t *testing.T) {
		err := s.UpsertClient(ctx, &models.Client{})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestMemory_Contract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestSQLite_Contract(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "amldesk-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	s, err := NewSQLite(tmpDir)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(tmpDir, "amldesk.db"))
	require.NoError(t, err)

	runContract(t, s)
}

func TestMemory_IsolatesCallers(t *testing.T) {
	m := NewMemory()
	m.Seed(sampleClient("C1", "Alice", "Martin"))
	ctx := context.Background()

	c, err := m.FetchClient(ctx, "C1")
	require.NoError(t, err)
	c.Comments = append(c.Comments, models.Comment{Text: "local only"})
	c.Status = models.CaseStatusAbandon

	again, err := m.FetchClient(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, again.Comments)
	assert.Equal(t, models.CaseStatusDefault, again.Status)
}

func TestMemory_FailureInjection(t *testing.T) {
	m := NewMemory()
	m.Seed(sampleClient("C1", "Alice", "Martin"))
	ctx := context.Background()

	m.FailPatches(errors.New("disk full"))
	_, err := m.PatchClient(ctx, "C1", Patch{Status: models.CaseStatusBlock})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, 0, m.PatchCount())

	c, err := m.FetchClient(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusDefault, c.Status)

	m.FailReads(errors.New("timeout"))
	_, err = m.FetchAllClients(ctx)
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	m.Seed(sampleClient("C1", "Alice", "Martin"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.PatchClient(ctx, "C1", Patch{Status: models.CaseStatusBlock})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.PatchCount())
}

func TestQuery_Normalize(t *testing.T) {
	q := Query{Search: "  mart ", Page: -1, Limit: 0}.Normalize()
	assert.Equal(t, "mart", q.Search)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.Limit)
	assert.Equal(t, 0, q.Offset())

	q = Query{Page: 3, Limit: 10000}.Normalize()
	assert.Equal(t, MaxPageSize, q.Limit)
	assert.Equal(t, 2*MaxPageSize, q.Offset())

	q = Query{Page: 1_000_000_000_000_000_000, Limit: 10}.Normalize()
	assert.Equal(t, math.MaxInt, q.Offset())
}

func TestMemory_ListClientsHugePage(t *testing.T) {
	m := NewMemory()
	m.Seed(&models.Client{ID: "C1", LastName: "Martin"})

	page, err := m.ListClients(context.Background(), Query{Page: 1_000_000_000_000_000_000, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Empty(t, page.Items)
}

func TestDemoClients(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a := DemoClients(20, 7, now)
	b := DemoClients(20, 7, now)
	require.Len(t, a, 20)
	assert.Equal(t, a, b)

	m := NewMemory()
	m.Seed(a...)
	all, err := m.FetchAllClients(context.Background())
	require.NoError(t, err)
	for _, c := range all {
		assert.GreaterOrEqual(t, c.RiskScore, 0)
		assert.LessOrEqual(t, c.RiskScore, 100)
		assert.Len(t, c.ScoreHistory, 10)
	}
}
