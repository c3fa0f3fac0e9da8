package tiered

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

type writeOp struct {
	key    string
	value  []byte
	remove bool
	done   chan error // nil = никто не ждёт результата
}

// durableWriter applies durable tier operations one at a time in the order
// they were submitted, so two writes to one key never reorder. It also
// tracks which keys still have queued operations or a failed last one.
type durableWriter struct {
	backend storage.Backend
	logger  *slog.Logger
	ops     chan writeOp
	stopped chan struct{}
	pending map[string]int
	failed  map[string]bool
	mu      sync.RWMutex
	closed  bool
	trackMu sync.Mutex
}

func newDurableWriter(logger *slog.Logger, backend storage.Backend, depth int) *durableWriter {
	w := &durableWriter{
		backend: backend,
		logger:  logger,
		ops:     make(chan writeOp, depth),
		stopped: make(chan struct{}),
		pending: make(map[string]int),
		failed:  make(map[string]bool),
	}
	go w.run()
	return w
}

func (w *durableWriter) run() {
	defer close(w.stopped)

	ctx := context.Background()
	for op := range w.ops {
		var err error
		// op без значения и без удаления служит барьером для flush
		switch {
		case op.remove:
			err = w.backend.Delete(ctx, op.key)
		case op.value != nil:
			err = w.backend.Put(ctx, op.key, op.value)
		}
		if err != nil {
			w.logger.Warn("Durable tier operation failed",
				"tier", w.backend.Name(), "key", op.key, "remove", op.remove, "error", err)
		}
		w.settle(op.key, err)
		if op.done != nil {
			op.done <- err
		}
	}
}

func (w *durableWriter) submit(op writeOp) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		if op.done != nil {
			op.done <- storage.ErrStorageClosed
		}
		return
	}

	if op.key != "" {
		w.trackMu.Lock()
		w.pending[op.key]++
		w.trackMu.Unlock()
	}
	w.ops <- op
}

func (w *durableWriter) settle(key string, err error) {
	if key == "" {
		return
	}

	w.trackMu.Lock()
	defer w.trackMu.Unlock()

	if w.pending[key]--; w.pending[key] <= 0 {
		delete(w.pending, key)
	}
	if err != nil {
		w.failed[key] = true
	} else {
		delete(w.failed, key)
	}
}

// settled reports whether the durable tier holds this instance's latest
// operation on key: nothing is queued and the last operation succeeded.
func (w *durableWriter) settled(key string) bool {
	w.trackMu.Lock()
	defer w.trackMu.Unlock()
	return w.pending[key] == 0 && !w.failed[key]
}

func (w *durableWriter) put(key string, value []byte, done chan error) {
	w.submit(writeOp{key: key, value: value, done: done})
}

func (w *durableWriter) remove(key string, done chan error) {
	w.submit(writeOp{key: key, remove: true, done: done})
}

func (w *durableWriter) flush(ctx context.Context) error {
	done := make(chan error, 1)
	w.submit(writeOp{done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close waits for queued operations to finish.
func (w *durableWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ops)
	w.mu.Unlock()

	<-w.stopped
}
