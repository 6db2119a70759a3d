package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager supervises 1..N named workers sharing one dependency set. Workers
// are independent timer loops; the manager only starts, stops, scales, and
// aggregates their counters.
type Manager struct {
	deps Deps
	cfg  Config
	log  *zap.Logger

	mu      sync.Mutex
	running map[string]*supervised
	next    int
}

type supervised struct {
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(deps Deps, cfg Config) *Manager {
	cfg.fillDefaults()
	return &Manager{
		deps:    deps,
		cfg:     cfg,
		log:     deps.Log.Named("manager"),
		running: map[string]*supervised{},
	}
}

// Start launches n workers with staggered first cycles so they do not all
// hit the same priority-ordered batch query at once.
func (m *Manager) Start(ctx context.Context, n int) {
	m.ScaleTo(ctx, m.Count()+n)
}

// ScaleTo adjusts the pool to exactly n workers, starting or stopping as
// needed. Stopping is cooperative: a worker exits at its next suspension
// point with all committed transitions intact. Draining happens after the
// lock is released so Count and Stats stay responsive while workers finish
// their in-flight items.
func (m *Manager) ScaleTo(ctx context.Context, n int) {
	if n < 0 {
		n = 0
	}
	m.mu.Lock()

	var removed []*supervised
	for len(m.running) > n {
		for name, s := range m.running {
			s.cancel()
			removed = append(removed, s)
			delete(m.running, name)
			m.log.Info("worker removed", zap.String("worker", name))
			break
		}
	}

	for len(m.running) < n {
		m.next++
		name := fmt.Sprintf("worker-%d", m.next)
		cfg := m.cfg
		cfg.Stagger = time.Duration(len(m.running)) * (m.cfg.CycleInterval / 4)
		w := NewWorker(name, m.deps, cfg)

		wctx, cancel := context.WithCancel(ctx)
		s := &supervised{worker: w, cancel: cancel, done: make(chan struct{})}
		m.running[name] = s
		go func() {
			defer close(s.done)
			w.Run(wctx)
		}()
		m.log.Info("worker added", zap.String("worker", name))
	}
	m.mu.Unlock()

	for _, s := range removed {
		<-s.done
	}
}

// Stop cancels every worker and waits for all loops to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	workers := make([]*supervised, 0, len(m.running))
	for name, s := range m.running {
		workers = append(workers, s)
		delete(m.running, name)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range workers {
		s := s
		s.cancel()
		g.Go(func() error {
			<-s.done
			return nil
		})
	}
	_ = g.Wait()
	m.log.Info("all workers stopped", zap.Int("count", len(workers)))
}

// Count reports the live worker count.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Stats aggregates counters across the pool.
func (m *Manager) Stats() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total Counters
	for _, s := range m.running {
		total = total.add(s.worker.Counters())
	}
	return total
}

// Workers lists the live worker names, for the control surface.
func (m *Manager) Workers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.running))
	for name := range m.running {
		names = append(names, name)
	}
	return names
}
