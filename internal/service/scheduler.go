package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/lock"
	"github.com/unclebandit/message-scheduler/internal/logging"
)

const DefaultPollInterval = 60 * time.Second

// CycleRunner is implemented by Dispatcher.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (CycleReport, error)
}

// Scheduler runs one cycle at start and one per Interval after that. Cycles
// never overlap: the loop waits for a cycle before reading the next tick, and
// Guard (when set) can extend that across processes.
type Scheduler struct {
	Runner   CycleRunner
	Interval time.Duration
	Guard    lock.Guard
	Logger   *zap.Logger
	Now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewScheduler(runner CycleRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		Runner:   runner,
		Interval: interval,
		Guard:    lock.NewLocalGuard(),
		Logger:   logging.OrNop(logger),
		Now:      time.Now,
	}
}

// Start launches the polling loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}
	if s.Runner == nil {
		return errors.New("scheduler has no cycle runner")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)
	s.logger().Info("starting polling loop", zap.Duration("interval", s.Interval))
	return nil
}

// Stop halts the timer and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.logger().Info("polling loop stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single guarded cycle. The cycle itself is detached from
// ctx cancellation so that shutdown lets it complete.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, bool) {
	cycleCtx := context.WithoutCancel(ctx)

	if s.Guard != nil {
		release, ok, err := s.Guard.TryAcquire(cycleCtx)
		if err != nil {
			s.logger().Error("cycle guard unavailable, skipping cycle", zap.Error(err))
			return CycleReport{}, false
		}
		if !ok {
			s.logger().Info("cycle guard held, skipping tick")
			return CycleReport{}, false
		}
		defer release()
	}

	report, err := s.Runner.RunCycle(cycleCtx, s.now())
	if err != nil {
		s.logger().Error("error in dispatch cycle", zap.Error(err))
		return report, false
	}
	return report, true
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return DefaultPollInterval
	}
	return s.Interval
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Scheduler) logger() *zap.Logger {
	return logging.OrNop(s.Logger)
}
