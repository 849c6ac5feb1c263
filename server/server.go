// Package server exposes the scheduler over HTTP and WebSocket.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/schedule"
)

// Server serves the work item API, the schedule trigger and the live run feed
type Server struct {
	catalog schedule.Catalog
	service *schedule.Service
	logger  *zap.SugaredLogger
	hub     *Hub

	mu      sync.RWMutex // guards cfg, limiter and cron
	cfg     *am.Config
	limiter *rate.Limiter // nil = unlimited
	cron    *cron.Cron    // nil = no periodic runs
	serving atomic.Bool

	httpServer *http.Server // built in New so Stop before Serve still shuts it down
	startedAt  time.Time
	timeNow    func() time.Time // Injectable for testing
	memStats   func() (*MemoryStatus, error)

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
}

// New wires a server around an already constructed scheduling service.
// Completed runs are pushed to every /ws/schedule client.
func New(cfg *am.Config, catalog schedule.Catalog, service *schedule.Service, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:       cfg,
		catalog:   catalog,
		service:   service,
		logger:    log,
		hub:       NewHub(log.Named("ws")),
		startedAt: time.Now(),
		timeNow:   time.Now,
		memStats:  hostMemory,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.limiter = newLimiter(cfg.Server.ScheduleRunsPerMinute)
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	service.OnRun(func(r schedule.Result) {
		s.hub.Broadcast(newRunEvent(r))
	})

	s.setState(ServerStateRunning)
	return s
}

func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Debugw("Server state changed", "new_state", newState.String())
}

// newLimiter allows perMinute schedule runs with no burst; 0 means unlimited
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}

func (s *Server) config() *am.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Server) rateLimiter() *rate.Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

// ApplyConfig adopts a reloaded configuration: the schedule rate limit,
// allowed origins and the cron spec. Scheduler settings are fixed for the
// process lifetime, as are the listen port and shutdown timeout; changes to
// them are reported and take effect on restart.
func (s *Server) ApplyConfig(cfg *am.Config) error {
	settings, err := cfg.SchedulerSettings()
	if err != nil {
		return err
	}
	if !sameSettings(settings, s.service.Settings()) {
		s.logger.Warnw("Scheduler settings changed on disk, restart to apply",
			"revenue_threshold", cfg.Scheduler.RevenueThreshold,
			"base_capacity", cfg.Scheduler.BaseCapacity,
			"trend_window_days", cfg.Scheduler.TrendWindowDays,
		)
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	if old.Server.ScheduleRunsPerMinute != cfg.Server.ScheduleRunsPerMinute {
		s.limiter = newLimiter(cfg.Server.ScheduleRunsPerMinute)
	}
	s.mu.Unlock()

	if s.serving.Load() && old.Scheduler.Cron != cfg.Scheduler.Cron {
		s.stopCron()
		if err := s.startCron(); err != nil {
			return err
		}
	}

	s.logger.Infow("Configuration applied",
		"rate_limit_per_minute", cfg.Server.ScheduleRunsPerMinute,
		"cron", cfg.Scheduler.Cron,
	)
	return nil
}

func sameSettings(a, b schedule.Settings) bool {
	return a.RevenueThreshold.Equal(b.RevenueThreshold) &&
		a.BaseCapacity == b.BaseCapacity &&
		a.TrendWindowDays == b.TrendWindowDays
}
