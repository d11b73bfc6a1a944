package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Buffer queues login attempts in memory and writes them in batches.
//
// Record and Flush share one mutex that is held only to append or to swap
// the queue, never across the database write. An event recorded while a
// flush is in progress lands in exactly one of the outgoing batch or the
// fresh queue.
type Buffer struct {
	repo Repository
	now  func() time.Time

	mu    sync.Mutex
	queue []LoginAuditEvent
}

// NewBuffer creates an empty buffer that flushes into repo.
func NewBuffer(repo Repository) *Buffer {
	return &Buffer{
		repo: repo,
		now:  time.Now,
	}
}

// Record appends an attempt and returns immediately. A zero Time is set to
// now and an empty IP to UnknownIP.
func (b *Buffer) Record(event LoginAuditEvent) {
	if event.Time.IsZero() {
		event.Time = b.now().UTC()
	}
	if event.IP == "" {
		event.IP = UnknownIP
	}

	b.mu.Lock()
	b.queue = append(b.queue, event)
	b.mu.Unlock()
}

// Len returns the number of queued events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// swap detaches the current queue and installs an empty one.
func (b *Buffer) swap() []LoginAuditEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.queue
	b.queue = nil
	return batch
}

// Flush writes everything queued so far in one bulk insert. An empty queue
// is a no-op. On a failed write the batch is dropped, not re-queued.
func (b *Buffer) Flush(ctx context.Context) error {
	batch := b.swap()
	if len(batch) == 0 {
		return nil
	}

	if err := b.repo.BulkInsert(ctx, batch); err != nil {
		slog.Warn("dropping login audit batch",
			slog.Int("events", len(batch)),
			slog.Any("error", err),
		)
		return fmt.Errorf("flushing %d login audit events: %w", len(batch), err)
	}

	slog.Debug("login audit batch flushed", slog.Int("events", len(batch)))
	return nil
}

// FlushTask returns a scheduler run function that flushes on a context
// detached from the caller's cancellation and bounded by timeout. A batch
// already taken off the queue when shutdown begins is still written.
func (b *Buffer) FlushTask(timeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return b.Flush(flushCtx)
	}
}
