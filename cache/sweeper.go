package cache

import (
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const DefaultSweepInterval = 5 * time.Minute

// Sweepable is the slice of Store the background sweeper needs.
type Sweepable interface {
	Sweep() int
}

// Sweeper evicts expired entries on a fixed interval so keys that are never
// re-read cannot grow memory without bound. It is safe to interleave with
// concurrent store access; the store serializes under its own lock.
type Sweeper struct {
	Interval time.Duration
	Logger   glog.Logger

	store     Sweepable
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(store Sweepable, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		Interval: interval,
		store:    store,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sweep. Subsequent calls are no-ops.
func (s *Sweeper) Start() {
	if s == nil || s.store == nil {
		return
	}
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop cancels the periodic sweep and waits for the loop to exit. Safe to
// call more than once and safe to call before Start.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.startOnce.Do(func() {
		close(s.done)
	})
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			removed := s.store.Sweep()
			if removed > 0 && s.Logger != nil {
				s.Logger.Debug("cache sweep evicted entries", "evicted", removed)
			}
		}
	}
}

func (s *Sweeper) interval() time.Duration {
	if s != nil && s.Interval > 0 {
		return s.Interval
	}
	return DefaultSweepInterval
}
