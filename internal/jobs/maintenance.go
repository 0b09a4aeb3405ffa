package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

// MessageProcessor runs stored messages through the engine
type MessageProcessor interface {
	Process(ctx context.Context, messageID string) error
	SweepUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]*models.InboundMessage, error)
}

// SessionPurger removes expired conversation sessions
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Options tune the maintenance loops. Zero values take the defaults.
type Options struct {
	PurgeInterval    time.Duration
	SweepInterval    time.Duration
	SweepMinAge      time.Duration
	SweepBatch       int
	SweepConcurrency int
}

const (
	defaultPurgeInterval = 5 * time.Minute
	defaultSweepInterval = 30 * time.Second
	defaultSweepMinAge   = 20 * time.Second
	defaultSweepBatch    = 100
)

func (o Options) withDefaults() Options {
	if o.PurgeInterval <= 0 {
		o.PurgeInterval = defaultPurgeInterval
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	if o.SweepMinAge < 0 {
		o.SweepMinAge = defaultSweepMinAge
	}
	if o.SweepBatch <= 0 {
		o.SweepBatch = defaultSweepBatch
	}
	if o.SweepConcurrency <= 0 {
		o.SweepConcurrency = 1
	}
	return o
}

// Maintenance runs the background loops: expired session purge and the
// recovery sweep for messages whose processing never completed
type Maintenance struct {
	processor MessageProcessor
	sessions  SessionPurger
	opts      Options
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenance creates the maintenance job scheduler
func NewMaintenance(processor MessageProcessor, sessions SessionPurger, opts Options, logger *zap.Logger) *Maintenance {
	return &Maintenance{
		processor: processor,
		sessions:  sessions,
		opts:      opts.withDefaults(),
		logger:    logging.Component(logger, "maintenance"),
	}
}

// Start begins the scheduled loops. They stop when ctx is cancelled or Stop is called.
func (m *Maintenance) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.logger.Warn("maintenance jobs already running")
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("starting maintenance jobs",
		zap.Duration("purge_interval", m.opts.PurgeInterval),
		zap.Duration("sweep_interval", m.opts.SweepInterval),
		zap.Int("sweep_concurrency", m.opts.SweepConcurrency))

	m.wg.Add(2)
	go m.every(ctx, m.opts.PurgeInterval, func(ctx context.Context) {
		m.PurgeSessions(ctx)
	})
	go m.every(ctx, m.opts.SweepInterval, func(ctx context.Context) {
		_, _ = m.Sweep(ctx)
	})
}

// Stop halts the loops and waits for an in-flight run to finish
func (m *Maintenance) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	m.logger.Info("stopping maintenance jobs")
	cancel()
	m.wg.Wait()
}

func (m *Maintenance) every(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// PurgeSessions deletes expired sessions and returns how many went away
func (m *Maintenance) PurgeSessions(ctx context.Context) int64 {
	n, err := m.sessions.PurgeExpired(ctx)
	if err != nil {
		m.logger.Error("session purge failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		m.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
	return n
}

// Sweep processes messages that were stored but never processed, with at
// most SweepConcurrency in flight. It returns how many completed cleanly.
func (m *Maintenance) Sweep(ctx context.Context) (int, error) {
	msgs, err := m.processor.SweepUnprocessed(ctx, m.opts.SweepMinAge, m.opts.SweepBatch)
	if err != nil {
		m.logger.Error("recovery sweep could not load messages", zap.Error(err))
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.SweepConcurrency)
	for _, msg := range msgs {
		id := msg.ID
		g.Go(func() error {
			if err := m.processor.Process(gctx, id); err != nil {
				// one bad message must not stop the rest of the batch
				m.logger.Error("recovery sweep failed to process message", zap.String("message_id", id), zap.Error(err))
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("recovery sweep finished", zap.Int("found", len(msgs)), zap.Int64("processed", done.Load()))
	return int(done.Load()), nil
}
