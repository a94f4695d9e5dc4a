package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"accountservice/internal/domain"
)

const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 5 * time.Second

	finalFlushTimeout = 10 * time.Second
)

// LastActiveBatcher coalesces last-active updates per account and applies
// them in bulk. Only the newest timestamp per account is kept between
// flushes. Pending updates are lost if the process dies before a flush.
type LastActiveBatcher struct {
	handler  Handler
	size     int
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	flushCh chan struct{}
	done    chan struct{}
}

func NewLastActiveBatcher(h Handler, size int, interval time.Duration, logger *slog.Logger) *LastActiveBatcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LastActiveBatcher{
		handler:  h,
		size:     size,
		interval: interval,
		logger:   logger,
		pending:  make(map[string]time.Time, size),
		flushCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (b *LastActiveBatcher) Add(msg LastActiveChanged) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.pending[msg.AccountID]; !ok || msg.LastActive.After(cur) {
		b.pending[msg.AccountID] = msg.LastActive
	}
	if len(b.pending) >= b.size {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
}

func (b *LastActiveBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Run flushes on the interval or when the batch is full until ctx is done,
// then performs a final flush on a fresh deadline.
func (b *LastActiveBatcher) Run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			n := b.Flush(flushCtx)
			cancel()
			b.logger.Info("events: last-active batcher stopped", "flushed", n)
			return
		case <-ticker.C:
			b.Flush(ctx)
		case <-b.flushCh:
			b.Flush(ctx)
		}
	}
}

// Done is closed after Run has performed its final flush.
func (b *LastActiveBatcher) Done() <-chan struct{} {
	return b.done
}

// Flush applies every pending update and returns how many were applied.
func (b *LastActiveBatcher) Flush(ctx context.Context) int {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return 0
	}
	batch := b.pending
	b.pending = make(map[string]time.Time, b.size)
	b.mu.Unlock()

	applied := 0
	for id, at := range batch {
		err := b.handler.HandleLastActiveChanged(ctx, LastActiveChanged{AccountID: id, LastActive: at})
		switch {
		case err == nil:
			applied++
		case errors.Is(err, domain.ErrNotFound):
			b.logger.Debug("events: last-active for unknown account", "account_id", id)
		default:
			b.logger.Warn("events: last-active write failed", "account_id", id, "err", err)
		}
	}

	b.logger.Debug("events: flushed last-active batch", "size", len(batch), "applied", applied)
	return applied
}
