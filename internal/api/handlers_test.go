package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegress/amldesk/internal/cache"
	"github.com/savegress/amldesk/internal/casework"
	"github.com/savegress/amldesk/internal/config"
	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/internal/ledger"
	"github.com/savegress/amldesk/internal/scoring"
	"github.com/savegress/amldesk/internal/store"
	"github.com/savegress/amldesk/pkg/models"
)

const apiPrefix = "/api/v1/amldesk"

type testEnv struct {
	server *Server
	store  *store.Memory
	audit  *ledger.AuditTrail
	cache  *fakeCache
	dash   *dashboard.Service
}

// fakeCache stands in for redis as both health backend and snapshot cache
type fakeCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func (c *fakeCache) IsEnabled() bool                { return true }
func (c *fakeCache) Ping(ctx context.Context) error { return nil }

func (c *fakeCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{"enabled": true, "keys": len(c.data)}, nil
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	*dest.(*dashboard.Snapshot) = *v.(*dashboard.Snapshot)
	return nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func seedClients() []*models.Client {
	return []*models.Client{
		{
			ID: "C1", FirstName: "Alice", LastName: "Martin", BirthDate: "1984-02-11",
			ScoringDetails:    []models.ScoringDetail{{Label: "Multi-comptes", Value: 50}, {Label: "PEP", Value: 20}},
			BehavioralDetails: []models.BehaviorDetail{{Label: "Dépôts fractionnés", Value: 4}},
			Alerts:            []models.Alert{{Message: "Dépôt inhabituel", Status: models.AlertStatusOpen}},
			Status:            models.CaseStatusDefault,
		},
		{
			ID: "C2", FirstName: "Bruno", LastName: "Dubois", BirthDate: "1990-01-01",
			ScoringDetails: []models.ScoringDetail{{Label: "Réputation", Value: 10}},
			Status:         models.CaseStatusDefault,
		},
	}
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.JWTSecret = secret

	mem := store.NewMemory()
	mem.Seed(seedClients()...)
	audit := ledger.NewAuditTrail(ledger.DefaultAuditCapacity)

	dash, err := dashboard.NewService(&dashboard.Config{}, mem, scoring.DefaultThresholds, nil)
	require.NoError(t, err)
	t.Cleanup(dash.Stop)
	fc := &fakeCache{data: map[string]interface{}{}}
	dash.SetCache(fc)

	hub := NewHub(nil, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := NewServer(cfg, Deps{
		Store:      mem,
		Cases:      casework.NewHandler(nil, mem, audit, nil),
		Audit:      audit,
		Dashboard:  dash,
		Hub:        hub,
		Cache:      fc,
		Thresholds: scoring.DefaultThresholds,
	}, nil)

	return &testEnv{server: srv, store: mem, audit: audit, cache: fc, dash: dash}
}

func (e *testEnv) do(t *testing.T, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Email", "ana@example.com")
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "amldesk", body["service"])
	assert.Equal(t, map[string]interface{}{"enabled": true, "keys": float64(0)}, body["cache"])
	assert.Contains(t, body, "dashboard_pool")
}

func TestListClients_Search(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients?search=MART", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "C1", items[0].(map[string]interface{})["id"])
}

func TestListClients_Pagination(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients?page=2&limit=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 2, body["pages"])
	assert.Len(t, body["items"], 1)
}

func TestGetClient(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/C1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 70, body["riskScore"])
	assert.Equal(t, "high", body["riskBand"])
	assert.EqualValues(t, 0, body["operationalScore"], "no score history")
	assert.EqualValues(t, 4, body["behavioralScore"])
	assert.EqualValues(t, 1, body["openAlerts"])
}

func TestGetClient_OperationalScoreFromHistory(t *testing.T) {
	env := newTestEnv(t, "")
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	env.store.Seed(&models.Client{
		ID:                "H1",
		BehavioralDetails: []models.BehaviorDetail{{Label: "Dépôts fractionnés", Value: 4}},
		ScoreHistory: []models.ScoreHistoryEntry{
			{Date: day, Score: 80},
			{Date: day.AddDate(0, 0, 1), Score: 90},
		},
	})

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/H1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 85, body["operationalScore"])
	assert.EqualValues(t, 4, body["behavioralScore"])

	history := body["scoreHistory"].([]interface{})
	require.Len(t, history, 2)
	assert.EqualValues(t, 90, history[0].(map[string]interface{})["score"])
	chart := body["scoreChart"].([]interface{})
	require.Len(t, chart, 2)
	assert.EqualValues(t, 80, chart[0].(map[string]interface{})["score"])
}

func TestGetClient_NotFound(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodGet, apiPrefix+"/clients/NOPE", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetClient_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.FailReads(errors.New("connection reset"))

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/C1", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestRecordAction_Preset(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, apiPrefix+"/clients/C1/actions/block", "analyst", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, string(models.CaseStatusBlock), body["status"])
	comments := body["comments"].([]interface{})
	require.Len(t, comments, 1)
	assert.Equal(t, "Blocage", comments[0].(map[string]interface{})["value"])

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ActionStatusChanged, entries[0].Action)
}

func TestRecordAction_Validate(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, apiPrefix+"/clients/C2/actions/validate", "analyst", `{"text":"  RAS  "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, string(models.CaseStatusDefault), body["status"])
	comments := body["comments"].([]interface{})
	assert.Equal(t, "RAS", comments[0].(map[string]interface{})["value"])
}

func TestRecordAction_Errors(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name   string
		path   string
		role   string
		body   string
		status int
	}{
		{"empty comment", "/clients/C1/actions/validate", "analyst", `{"text":"   "}`, http.StatusBadRequest},
		{"too long", "/clients/C1/actions/validate", "analyst", `{"text":"` + strings.Repeat("x", 251) + `"}`, http.StatusBadRequest},
		{"unknown action", "/clients/C1/actions/delete", "analyst", "", http.StatusBadRequest},
		{"plain user", "/clients/C1/actions/block", "user", "", http.StatusForbidden},
		{"unknown client", "/clients/NOPE/actions/block", "analyst", "", http.StatusNotFound},
		{"malformed body", "/clients/C1/actions/validate", "analyst", `{"text":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, apiPrefix+tt.path, tt.role, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	c, err := env.store.FetchClient(context.Background(), "C1")
	require.NoError(t, err)
	assert.Empty(t, c.Comments)
	assert.Equal(t, models.CaseStatusDefault, c.Status)
	assert.Zero(t, env.audit.Len())
}

func TestListComments(t *testing.T) {
	env := newTestEnv(t, "")
	for _, text := range []string{"un", "deux", "trois"} {
		w := env.do(t, http.MethodPost, apiPrefix+"/clients/C1/actions/validate", "analyst", `{"text":"`+text+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/C1/comments?page=1&limit=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	items := body["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "trois", items[0].(map[string]interface{})["value"])
	assert.Equal(t, "deux", items[1].(map[string]interface{})["value"])
}

func TestListComments_HugePage(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, apiPrefix+"/clients/C2/actions/validate", "analyst", `{"text":"RAS"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, apiPrefix+"/clients/C2/comments?page=1000000000000000000", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.Empty(t, body["items"])

	w = env.do(t, http.MethodGet, apiPrefix+"/clients?page=1000000000000000000", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w)["items"])
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/C1/report", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Fiche Client C1", body["title"])
	assert.Len(t, body["sections"], 6)

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ActionExportPDF, entries[0].Action)
	assert.Equal(t, "C1", entries[0].Details)
}

func TestGetReportText(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/C2/report.txt", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Fiche Client C2\n"))
	assert.Contains(t, w.Body.String(), "En cours d'analyse")
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/clients/export.csv", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Prénom,Nom,Risk Score,Behavioral Score,Birth Date", lines[0])
	assert.Equal(t, "C1,Alice,Martin,70,4,1984-02-11", lines[1])
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, apiPrefix+"/dashboard", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["high"])
	assert.EqualValues(t, 1, body["low"])

	w = env.do(t, http.MethodPost, apiPrefix+"/dashboard/refresh", "", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestListAudit(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, apiPrefix+"/clients/C1/actions/abandon", "analyst", "")
	env.do(t, http.MethodPost, apiPrefix+"/clients/C2/actions/block", "analyst", "")

	w := env.do(t, http.MethodGet, apiPrefix+"/audit?limit=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Contains(t, items[0].(map[string]interface{})["details"], "C2")
	assert.EqualValues(t, 2, body["total"])
}

func TestIngestClients(t *testing.T) {
	env := newTestEnv(t, "")

	payload := `[
		{"id":"C1","firstName":"Alice","lastName":"Martin-Durand","kycValidated":true},
		{"id":"C9","firstName":"Zoé","lastName":"Petit","scoringDetails":[{"label":"PEP","value":40}]}
	]`

	w := env.do(t, http.MethodPost, apiPrefix+"/clients", "analyst", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, apiPrefix+"/clients", "admin", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["created"])
	assert.EqualValues(t, 1, body["updated"])

	c, err := env.store.FetchClient(context.Background(), "C9")
	require.NoError(t, err)
	assert.Equal(t, 40, c.RiskScore)

	actions := map[string]string{}
	for _, e := range env.audit.Entries() {
		actions[e.Action] = e.Details
	}
	assert.Equal(t, "C9", actions[ledger.ActionCaseOpened])
	assert.Equal(t, "C1", actions[ledger.ActionKYCValidated])
}

func TestIngestClients_InvalidatesCachedDashboard(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.dash.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, env.cache.has(cache.KeyDashboard))

	w := env.do(t, http.MethodPost, apiPrefix+"/clients", "admin", `[{"id":"C3","lastName":"Roux"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.cache.has(cache.KeyDashboard))
}

func TestIngestClients_MissingID(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, apiPrefix+"/clients", "admin", `[{"firstName":"Anon"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
