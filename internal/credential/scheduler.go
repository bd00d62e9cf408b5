package credential

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler maintains at most one recurring background task per key.
type Scheduler interface {
	// Schedule arms a recurring task for the key. It reports whether the
	// task was newly armed; scheduling an already-armed key is a no-op.
	Schedule(key string, interval time.Duration, task func(ctx context.Context)) bool
	Stop()
}

var _ Scheduler = (*IntervalScheduler)(nil)

// IntervalScheduler runs each armed task on its own goroutine at a fixed
// interval. The first run happens one interval after arming.
type IntervalScheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewIntervalScheduler(logger *zap.Logger) *IntervalScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &IntervalScheduler{
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
		rootCtx: ctx,
		cancel:  cancel,
	}
}

func (s *IntervalScheduler) Schedule(key string, interval time.Duration, task func(ctx context.Context)) bool {
	if key == "" || interval <= 0 || task == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rootCtx.Err() != nil {
		return false
	}
	if _, armed := s.cancels[key]; armed {
		return false
	}

	taskCtx, cancel := context.WithCancel(s.rootCtx)
	s.cancels[key] = cancel

	s.wg.Add(1)
	go s.run(taskCtx, key, interval, task)

	return true
}

func (s *IntervalScheduler) run(ctx context.Context, key string, interval time.Duration, task func(ctx context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// Stop cancels every armed task and waits for their goroutines to exit.
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.cancels = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	s.wg.Wait()
}
