package reflector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the maintenance sweep in the background on a fixed
// interval. It provides lifecycle management (Start/Stop) with graceful
// shutdown; all public methods are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	service  *Service
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the sweep interval. Defaults to 24 hours.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = interval }
}

// NewScheduler creates a scheduler around svc. It does not start
// automatically; call Start to begin sweeping.
func NewScheduler(svc *Service, logger *zap.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		interval: 24 * time.Hour,
		service:  svc,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins the background sweep loop. Calling Start on a running
// scheduler returns an error without starting a second goroutine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("maintenance scheduler started",
		zap.Duration("interval", s.interval))
	go s.run()
	return nil
}

// Stop signals the loop to exit and waits for the in-flight sweep, if any,
// to finish. Stopping an already stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep executes one maintenance pass. Errors are logged, never fatal to
// the loop.
func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rep, err := s.service.Maintain(ctx)
	if err != nil {
		s.logger.Error("maintenance sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("maintenance sweep completed",
		zap.Int("sessions_reflected", rep.SessionsReflected),
		zap.Int("playbooks_decayed", rep.PlaybooksDecayed),
		zap.Int("playbooks_archived", rep.PlaybooksArchived))
}
