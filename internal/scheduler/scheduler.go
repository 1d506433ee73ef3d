package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shaibs3/PriceTracker/internal/scrape"
	"go.uber.org/zap"
)

var (
	// ErrTrackingRunning is returned by ScrapeNow while scheduled tracking is on.
	ErrTrackingRunning = errors.New("tracking is already running")
	// ErrInvalidInterval is returned by Start for a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// State of the scheduler.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Runner runs one scrape cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler repeats a scrape cycle on a fixed interval in one background
// goroutine. Stopping is cooperative: a cycle that is already running
// finishes, but no new one starts.
type Scheduler struct {
	cycle  Runner
	out    chan<- scrape.Message
	logger *zap.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{}
	// done is closed when the most recent worker or manual scrape exits.
	done chan struct{}
}

func New(cycle Runner, out chan<- scrape.Message, logger *zap.Logger) *Scheduler {
	done := make(chan struct{})
	close(done)
	return &Scheduler{
		cycle:  cycle,
		out:    out,
		logger: logger.Named("scheduler"),
		state:  Idle,
		done:   done,
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed once the latest background worker or manual
// scrape has exited.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start begins scheduled tracking. Starting while Running is a no-op.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.logger.Debug("start ignored, already running")
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	prev := s.done
	s.state, s.stop, s.done = Running, stop, done

	s.logger.Info("tracking started", zap.Duration("interval", interval))
	go s.loop(ctx, interval, stop, prev, done)
	return nil
}

// Stop ends scheduled tracking. Stopping while Idle is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	s.state = Idle
	close(s.stop)
	s.logger.Info("tracking stopped")
}

// ScrapeNow runs one cycle in the caller's goroutine. It is refused while
// scheduled tracking is running so there is never more than one writer.
func (s *Scheduler) ScrapeNow(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Running {
		s.mu.Unlock()
		return ErrTrackingRunning
	}
	done := make(chan struct{})
	prev := s.done
	s.done = done
	s.mu.Unlock()

	// a stopped worker may still be finishing its last cycle
	select {
	case <-prev:
	case <-ctx.Done():
		go func() {
			<-prev
			close(done)
		}()
		return ctx.Err()
	}
	defer close(done)

	s.logger.Info("manual scrape started")
	err := s.cycle.Run(ctx)
	s.publish(ctx, scrape.RefreshMessage())
	return err
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, stop, prev, done chan struct{}) {
	defer close(done)

	select {
	case <-prev:
	case <-stop:
		return
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := s.cycle.Run(ctx); err != nil {
			s.logger.Error("scrape cycle failed", zap.Error(err))
		}
		s.publish(ctx, scrape.RefreshMessage())

		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) publish(ctx context.Context, msg scrape.Message) {
	select {
	case s.out <- msg:
	case <-ctx.Done():
	}
}
