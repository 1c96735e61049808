package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/dashboard"
)

// Stats counts what happened to published snapshots.
type Stats struct {
	Pushed  int64 `json:"pushed"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Mirror queues snapshots and pushes them from one background worker, so
// Publish never waits on the network.
type Mirror struct {
	pusher  Pusher
	logger  *zap.Logger
	queue   chan dashboard.Snapshot
	retries int
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}

	pushed  atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithQueueSize sets how many snapshots may wait before new ones are dropped.
func WithQueueSize(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.queue = make(chan dashboard.Snapshot, n)
		}
	}
}

// WithRetries repeats a failed push up to n times, waiting backoff, then
// twice as long, and so on between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(m *Mirror) {
		m.retries = n
		m.backoff = backoff
	}
}

// New starts a mirror pushing through p.
func New(p Pusher, logger *zap.Logger, opts ...Option) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mirror{
		pusher:  p,
		logger:  logger,
		queue:   make(chan dashboard.Snapshot, 64),
		backoff: time.Second,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Publish queues snap. When the queue is full the snapshot is dropped and
// logged; a later change or resync sends a newer one.
func (m *Mirror) Publish(snap dashboard.Snapshot) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.dropped.Add(1)
		return
	}
	select {
	case m.queue <- snap:
	default:
		m.dropped.Add(1)
		m.logger.Warn("mirror queue full, dropping snapshot", zap.String("uid", snap.UID))
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for snap := range m.queue {
		m.push(snap)
	}
}

func (m *Mirror) push(snap dashboard.Snapshot) {
	wait := m.backoff
	for attempt := 0; ; attempt++ {
		err := m.pusher.Push(context.Background(), snap)
		if err == nil {
			m.pushed.Add(1)
			m.logger.Debug("snapshot mirrored", zap.String("uid", snap.UID), zap.Int("panels", len(snap.Panels)))
			return
		}
		if attempt >= m.retries {
			m.failed.Add(1)
			m.logger.Error("mirror push failed", zap.String("uid", snap.UID), zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		m.logger.Warn("mirror push failed, retrying", zap.String("uid", snap.UID), zap.Duration("wait", wait), zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-m.stop:
			// Closing gives up on retries; queued snapshots still get one attempt.
			timer.Stop()
			m.failed.Add(1)
			m.logger.Error("mirror push abandoned on close", zap.String("uid", snap.UID), zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		wait *= 2
	}
}

// Stats returns the push counters.
func (m *Mirror) Stats() Stats {
	return Stats{
		Pushed:  m.pushed.Load(),
		Failed:  m.failed.Load(),
		Dropped: m.dropped.Load(),
	}
}

// Close stops accepting snapshots and waits for the queued ones to be
// pushed, or for ctx to end. A push waiting to retry is abandoned.
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
		close(m.queue)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
