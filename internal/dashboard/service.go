package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/savegress/amldesk/internal/apperr"
	"github.com/savegress/amldesk/internal/cache"
	"github.com/savegress/amldesk/internal/scoring"
	"github.com/savegress/amldesk/internal/store"
	"github.com/savegress/amldesk/pkg/models"
	"github.com/savegress/amldesk/pkg/workerpool"
	"github.com/savegress/amldesk/pkg/workerpool/retry"
)

// Config holds dashboard configuration
type Config struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout" json:"refresh_timeout"`
	TopN            int           `yaml:"top_n" json:"top_n"`
	// PageSize > 0 reads the population in pages fetched concurrently;
	// 0 uses a single bulk read
	PageSize int `yaml:"page_size" json:"page_size"`
	Workers  int `yaml:"workers" json:"workers"`
}

// Snapshot is one computed dashboard state
type Snapshot struct {
	Metrics
	Trends     Trends    `json:"trends"`
	ComputedAt time.Time `json:"computedAt"`
}

// Publisher receives every new snapshot
type Publisher interface {
	PublishDashboard(s *Snapshot)
}

// SnapshotCache stores the latest snapshot outside the process
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service refreshes the dashboard periodically and on demand. Concurrent
// refreshes share one computation.
//
// A refresh reads the store without a global snapshot, so records changed
// while it runs may be observed before or after the change.
type Service struct {
	config     *Config
	store      store.ClientStore
	thresholds scoring.Thresholds
	pool       *workerpool.WorkerPool
	retry      retry.Policy
	cache      SnapshotCache
	logger     *zap.Logger

	group singleflight.Group

	mu         sync.RWMutex
	latest     *Snapshot
	publishers []Publisher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	clock   func() time.Time
}

// NewService creates a dashboard service
func NewService(config *Config, s store.ClientStore, t scoring.Thresholds, logger *zap.Logger) (*Service, error) {
	if config == nil {
		config = &Config{}
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 5 * time.Minute
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = time.Minute
	}
	if config.TopN <= 0 {
		config.TopN = DefaultTopN
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := workerpool.NewWorkerPool(workerpool.Config{
		Workers:         config.Workers,
		QueueSize:       config.Workers * 2,
		ShutdownTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy()
	policy.ShouldRetry = func(err error) bool {
		return errors.Is(err, apperr.ErrPersistence)
	}

	return &Service{
		config:     config,
		store:      s,
		thresholds: t,
		pool:       pool,
		retry:      policy,
		logger:     logger,
		clock:      time.Now,
	}, nil
}

// SetCache enables snapshot caching
func (s *Service) SetCache(c SnapshotCache) {
	s.cache = c
}

// Subscribe registers a publisher for new snapshots
func (s *Service) Subscribe(p Publisher) {
	s.mu.Lock()
	s.publishers = append(s.publishers, p)
	s.mu.Unlock()
}

// Latest returns the last snapshot without blocking; nil before the first refresh
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Invalidate drops the cached snapshot so the next start computes afresh.
// The in-process snapshot stays until the next refresh replaces it.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cache.KeyDashboard)
}

// PoolStats reports the bulk-read worker pool
func (s *Service) PoolStats() workerpool.Stats {
	return s.pool.Stats()
}

// Start warms the snapshot from the cache and begins periodic refreshes
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if s.cache != nil {
		var cached Snapshot
		if err := s.cache.Get(ctx, cache.KeyDashboard, &cached); err == nil {
			s.mu.Lock()
			if s.latest == nil {
				s.latest = &cached
			}
			s.mu.Unlock()
		}
	}

	go s.loop()
	return nil
}

// Stop ends periodic refreshes and releases the worker pool
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.pool.Stop()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	if err := s.pool.Stop(); err != nil {
		s.logger.Warn("dashboard pool stop", zap.Error(err))
	}
}

func (s *Service) loop() {
	defer close(s.doneCh)

	s.refreshLogged()

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refreshLogged()
		}
	}
}

func (s *Service) refreshLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RefreshTimeout)
	defer cancel()

	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error("dashboard refresh failed", zap.Error(err))
	}
}

// Refresh recomputes the snapshot. Callers arriving while a refresh is
// running wait for and share its result; ctx only bounds the wait.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.RefreshTimeout)
		defer cancel()
		return s.compute(rctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *Service) compute(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	clients, err := s.loadClients(ctx)
	refreshSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		refreshErrors.Inc()
		return nil, err
	}

	metrics := Compute(clients, s.thresholds, s.config.TopN)

	s.mu.Lock()
	var previous *Metrics
	if s.latest != nil {
		previous = &s.latest.Metrics
	}
	snap := &Snapshot{
		Metrics:    metrics,
		Trends:     Compare(metrics, previous),
		ComputedAt: s.clock().UTC(),
	}
	s.latest = snap
	publishers := append([]Publisher(nil), s.publishers...)
	s.mu.Unlock()

	observe(metrics)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyDashboard, snap, cache.TTLDashboard); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	for _, p := range publishers {
		p.PublishDashboard(snap)
	}

	s.logger.Info("dashboard refreshed",
		zap.Int("total", metrics.Total),
		zap.Int("high", metrics.High),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}

// loadClients reads the whole population, retrying idempotent reads
func (s *Service) loadClients(ctx context.Context) ([]*models.Client, error) {
	if s.config.PageSize <= 0 {
		return retry.DoWithResult(ctx, s.retry, func(ctx context.Context) ([]*models.Client, error) {
			return s.store.FetchAllClients(ctx)
		})
	}

	listPage := func(ctx context.Context, page int) (*store.Page, error) {
		return retry.DoWithResult(ctx, s.retry, func(ctx context.Context) (*store.Page, error) {
			return s.store.ListClients(ctx, store.Query{Page: page, Limit: s.config.PageSize})
		})
	}

	first, err := listPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	clients := append([]*models.Client(nil), first.Items...)

	var rest []int
	for p := 2; p <= first.Pages(); p++ {
		rest = append(rest, p)
	}
	pages, err := workerpool.Map(ctx, s.pool, rest, listPage)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		clients = append(clients, p.Items...)
	}
	return clients, nil
}
