// Package service wires the sync pipeline together: it owns the run queue,
// the worker, the timer schedule and the run history the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/kpisync/internal/adapters/cache"
	"github.com/okian/kpisync/internal/adapters/mq/queue"
	"github.com/okian/kpisync/internal/adapters/mq/worker"
	"github.com/okian/kpisync/internal/adapters/notify"
	"github.com/okian/kpisync/internal/adapters/repository"
	"github.com/okian/kpisync/internal/config"
	"github.com/okian/kpisync/internal/domain/individual"
	"github.com/okian/kpisync/internal/domain/kpiload"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/reconcile"
	"github.com/okian/kpisync/internal/domain/teamleader"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/okian/kpisync/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// Service runs KPI syncs on demand and on a schedule.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	layout *layout.Layout
	store  repository.Store
	paths  cache.PathCache
	drives DriveFactory
	window notify.Window
	now    func() time.Time

	loader     *kpiload.Loader
	reconciler *reconcile.Reconciler
	formatter  *teamleader.Formatter
	writer     *individual.Writer

	queue  *queue.InMemoryQueue
	worker *worker.InMemoryWorker
	cron   *cron.Cron
	cancel context.CancelFunc

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLayout overrides the workbook layout.
func WithLayout(l *layout.Layout) Option {
	return func(s *Service) {
		if l != nil {
			s.layout = l
		}
	}
}

// WithStore sets the run history store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDrives replaces the Graph drive factory.
func WithDrives(f DriveFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.drives = f
		}
	}
}

// WithPathCache sets the shared path cache.
func WithPathCache(c cache.PathCache) Option {
	return func(s *Service) {
		if c != nil {
			s.paths = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Without WithLayout the embedded layout (or
// cfg.LayoutPath) is used.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.layout == nil {
		var err error
		if cfg.LayoutPath != "" {
			s.layout, err = layout.Load(cfg.LayoutPath)
		} else {
			s.layout, err = layout.Default()
		}
		if err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.paths == nil {
		s.paths = cache.New(cache.WithTTL(cfg.CacheTTL))
	}
	if s.drives == nil {
		s.drives = GraphDrives(cfg, s.paths, s.logger.Named("graph"))
	}
	w, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	s.window = w

	s.loader = kpiload.New(s.layout, kpiload.WithLogger(s.logger.Named("kpiload")))
	s.reconciler = reconcile.New(s.layout, reconcile.WithLogger(s.logger.Named("reconcile")))
	s.formatter = teamleader.New(s.layout, teamleader.WithLogger(s.logger.Named("teamleader")))
	s.writer = individual.New(s.layout, individual.WithLogger(s.logger.Named("individual")))
	return s, nil
}

// Start launches the worker and, when enabled, the timer schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s, worker.WithName("sync"), worker.WithLogger(s.logger.Named("worker")))
	go s.worker.Run(runCtx)

	if s.cfg.ScheduleEnabled {
		c, err := s.schedule(runCtx)
		if err != nil {
			cancel()
			return err
		}
		s.cron = c
		s.cron.Start()
	}

	s.started = true
	s.logger.Info(ctx, "kpi sync service started",
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Bool("scheduled", s.cfg.ScheduleEnabled),
		logger.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop waits for the current run and shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping kpi sync service...")
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	_ = s.queue.Close()
	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "close run store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "kpi sync service stopped")
}

// Submit queues a run. When wait is true it blocks until the run finishes
// or ctx ends; otherwise it returns as soon as the run is queued.
func (s *Service) Submit(ctx context.Context, req model.RunRequest, wait bool) (model.Result, error) {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return model.Result{}, ErrNotStarted
	}

	job := queue.NewJob(req, wait)
	if err := q.Enqueue(ctx, job); err != nil {
		if errors.Is(err, queue.ErrFull) {
			return model.Result{}, ErrBusy
		}
		return model.Result{}, err
	}
	s.logger.Debug(ctx, "run queued", logger.String("job", job.ID), logger.String("trigger", string(req.Trigger)))
	if !wait {
		return model.Result{}, nil
	}

	select {
	case out := <-job.Reply:
		return out.Result, out.Err
	case <-ctx.Done():
		return model.Result{}, ctx.Err()
	}
}

// Runs returns recent run records, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return s.store.Runs(ctx, limit)
}

// Ready reports whether the service accepts runs.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"queueCapacity":   s.cfg.QueueSize,
		"scheduleEnabled": s.cfg.ScheduleEnabled,
		"schedule":        s.cfg.Schedule,
		"cachedPaths":     s.paths.Size(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["running"] = s.worker.Busy()
		stats["processed"] = s.worker.Processed()
		if s.cron != nil {
			if entries := s.cron.Entries(); len(entries) > 0 {
				stats["nextRun"] = entries[0].Next.Format(time.RFC3339)
			}
		}
	}
	if last, err := s.store.LastRun(ctx); err == nil {
		stats["lastRun"] = map[string]interface{}{
			"id":       last.ID,
			"trigger":  last.Trigger,
			"status":   last.Result.Status,
			"started":  last.StartedAt.Format(time.RFC3339),
			"duration": last.Duration().String(),
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	return stats
}

// httpClient is used for outbound webhooks.
func (s *Service) httpClient() *http.Client {
	return &http.Client{Timeout: s.cfg.HTTPTimeout}
}
