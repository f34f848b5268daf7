package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/internal/casework"
	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/internal/ledger"
	"github.com/savegress/amldesk/internal/reporting"
	"github.com/savegress/amldesk/internal/scoring"
	"github.com/savegress/amldesk/internal/store"
	"github.com/savegress/amldesk/pkg/models"
)

// MaxIngestBatch bounds one bulk upsert request
const MaxIngestBatch = 1000

// CacheBackend is the optional shared cache reported by the health endpoint
type CacheBackend interface {
	IsEnabled() bool
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Deps are the services behind the HTTP API
type Deps struct {
	Store      store.ClientStore
	Cases      *casework.Handler
	Audit      *ledger.AuditTrail
	Dashboard  *dashboard.Service
	Hub        *Hub
	Cache      CacheBackend
	Thresholds scoring.Thresholds
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store          store.ClientStore
	cases          *casework.Handler
	audit          *ledger.AuditTrail
	dashboard      *dashboard.Service
	hub            *Hub
	cache          CacheBackend
	thresholds     scoring.Thresholds
	commentPage    int
	reportComments int
	clock          func() time.Time
	logger         *zap.Logger
}

// NewHandlers creates new handlers
func NewHandlers(deps Deps, commentPage, reportComments int, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if commentPage <= 0 {
		commentPage = ledger.DefaultCommentPageSize
	}
	if reportComments <= 0 {
		reportComments = ledger.DefaultCommentPageSize
	}
	if deps.Audit == nil {
		deps.Audit = ledger.NewAuditTrail(ledger.DefaultAuditCapacity)
	}
	if deps.Thresholds == (scoring.Thresholds{}) {
		deps.Thresholds = scoring.DefaultThresholds
	}
	return &Handlers{
		store:          deps.Store,
		cases:          deps.Cases,
		audit:          deps.Audit,
		dashboard:      deps.Dashboard,
		hub:            deps.Hub,
		cache:          deps.Cache,
		thresholds:     deps.Thresholds,
		commentPage:    commentPage,
		reportComments: reportComments,
		clock:          time.Now,
		logger:         logger,
	}
}

// clientView adds the classification the UI badges need. The score history
// is listed newest first; scoreChart carries the same points oldest first.
type clientView struct {
	*models.Client
	ScoreHistory     []models.ScoreHistoryEntry `json:"scoreHistory"`
	ScoreChart       []models.ScoreHistoryEntry `json:"scoreChart"`
	RiskBand         models.RiskBand            `json:"riskBand"`
	OperationalScore int                        `json:"operationalScore"`
	OpenAlerts       int                        `json:"openAlerts"`
}

func (h *Handlers) view(c *models.Client) clientView {
	return clientView{
		Client:           c,
		ScoreHistory:     scoring.HistoryNewestFirst(c.ScoreHistory),
		ScoreChart:       scoring.HistoryChronological(c.ScoreHistory),
		RiskBand:         h.thresholds.Classify(c.RiskScore),
		OperationalScore: scoring.OperationalScore(c.ScoreHistory),
		OpenAlerts:       c.OpenAlerts(),
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "healthy",
		"service": "amldesk",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.cache != nil && h.cache.IsEnabled() {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["cache"] = err.Error()
		} else if stats, err := h.cache.Stats(ctx); err != nil {
			body["cache"] = "ok"
			h.logger.Warn("cache stats failed", zap.Error(err))
		} else {
			body["cache"] = stats
		}
	}
	if h.dashboard != nil {
		if s := h.dashboard.Latest(); s != nil {
			body["dashboard_computed_at"] = s.ComputedAt.UTC().Format(time.RFC3339)
		}
		body["dashboard_pool"] = h.dashboard.PoolStats()
	}
	if h.hub != nil {
		body["realtime"] = h.hub.Stats()
	}
	respond(w, status, body)
}

// Client handlers

// ListClients lists clients with search and pagination
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", store.DefaultPageSize),
	}

	page, err := h.store.ListClients(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]clientView, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, h.view(c))
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": page.Total,
		"page":  page.Page,
		"limit": page.Limit,
		"pages": page.Pages(),
	})
}

// ExportCSV streams the client export
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.FetchAllClients(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		filtered := clients[:0]
		for _, c := range clients {
			if store.Matches(c, search) {
				filtered = append(filtered, c)
			}
		}
		clients = filtered
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="clients.csv"`)
	if err := reporting.WriteCSV(w, clients); err != nil {
		h.logger.Error("write csv export", zap.Error(err))
	}
}

// GetClient gets a client by ID
func (h *Handlers) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.FetchClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, h.view(c))
}

// ListComments returns one page of a client's comments, newest first
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.FetchClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", h.commentPage)
	items, total := ledger.PageComments(c.Comments, page, limit)
	respond(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type actionRequest struct {
	Text string `json:"text"`
}

// RecordAction applies an analyst action to a client
func (h *Handlers) RecordAction(w http.ResponseWriter, r *http.Request) {
	action, err := casework.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, _ := UserFromContext(r.Context())
	c, err := h.cases.RecordAction(r.Context(), casework.Command{
		ClientID: chi.URLParam(r, "id"),
		Action:   action,
		Text:     req.Text,
		Author:   user,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.PublishCase(c, user.Display())
	}
	respond(w, http.StatusOK, h.view(c))
}

// Report handlers

func (h *Handlers) assembleReport(r *http.Request) (*reporting.Document, error) {
	id := chi.URLParam(r, "id")
	c, err := h.store.FetchClient(r.Context(), id)
	if err != nil {
		return nil, err
	}

	comments := c.Comments
	if len(comments) > h.reportComments {
		comments = comments[:h.reportComments]
	}
	doc := reporting.Assemble(c, comments, c.Status, h.audit.Entries(), h.clock())

	user, _ := UserFromContext(r.Context())
	h.audit.Append(r.Context(), user.Display(), ledger.ActionExportPDF, id)
	return doc, nil
}

// GetReport returns the client report as structured JSON
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.assembleReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, doc)
}

// GetReportText returns the client report as plain text
func (h *Handlers) GetReportText(w http.ResponseWriter, r *http.Request) {
	doc, err := h.assembleReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="fiche-client-%s.txt"`, doc.ClientID))
	if err := reporting.RenderText(w, doc); err != nil {
		h.logger.Error("render report", zap.String("client_id", doc.ClientID), zap.Error(err))
	}
}

// Dashboard handlers

// GetDashboard returns the latest snapshot, computing one if none exists yet
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if s := h.dashboard.Latest(); s != nil {
		respond(w, http.StatusOK, s)
		return
	}
	h.RefreshDashboard(w, r)
}

// RefreshDashboard forces a recomputation
func (h *Handlers) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, s)
}

// ListAudit returns the audit trail, newest first
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries := h.audit.Entries()
	total := len(entries)
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < total {
		entries = entries[:limit]
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"items": entries,
		"total": total,
	})
}

// IngestClients upserts a batch of client records. Existing comments and
// status are preserved by the store.
func (h *Handlers) IngestClients(w http.ResponseWriter, r *http.Request) {
	var batch []*models.Client
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(batch) > MaxIngestBatch {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Batch exceeds %d records", MaxIngestBatch))
		return
	}

	user, _ := UserFromContext(r.Context())
	created, updated := 0, 0
	defer func() {
		if created+updated > 0 {
			h.invalidateDashboard(r.Context())
		}
	}()
	for i, c := range batch {
		if c == nil || strings.TrimSpace(c.ID) == "" {
			h.writeError(w, r, apperr.Validation("record %d has no id", i))
			return
		}

		prev, err := h.store.FetchClient(r.Context(), c.ID)
		isNew := errors.Is(err, apperr.ErrNotFound)
		if err != nil && !isNew {
			h.writeError(w, r, err)
			return
		}

		if err := h.store.UpsertClient(r.Context(), c); err != nil {
			h.writeError(w, r, err)
			return
		}

		if isNew {
			created++
			h.audit.Append(r.Context(), user.Display(), ledger.ActionCaseOpened, c.ID)
		} else {
			updated++
		}
		if c.KYCValidated && (isNew || !prev.KYCValidated) {
			h.audit.Append(r.Context(), user.Display(), ledger.ActionKYCValidated, c.ID)
		}
	}

	h.logger.Info("clients ingested",
		zap.String("user", user.Display()),
		zap.Int("created", created),
		zap.Int("updated", updated),
	)
	respond(w, http.StatusOK, map[string]int{"created": created, "updated": updated})
}

// invalidateDashboard drops the shared snapshot so it is not served warm
// after the population changed
func (h *Handlers) invalidateDashboard(ctx context.Context) {
	if h.dashboard == nil {
		return
	}
	if err := h.dashboard.Invalidate(ctx); err != nil {
		h.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// writeError maps the error taxonomy to HTTP status codes
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	default:
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindForbidden:
			status = http.StatusForbidden
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindPersistence:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
	}

	if status >= 500 {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, status, http.StatusText(status))
		return
	}
	respondError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
