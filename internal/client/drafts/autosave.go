package drafts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
)

// AutoSaver debounces saves of one draft: each Update restarts the delay.
// Close flushes pending data instead of dropping it.
type AutoSaver struct {
	store *Store
	clock clock.Clock
	key   string
	delay time.Duration

	mu      sync.Mutex
	pending json.RawMessage
	timer   *clock.Timer
	closed  bool

	// saveMu упорядочивает сохранения: значение, взятое раньше, пишется раньше
	saveMu sync.Mutex
}

// NewAutoSaver creates a debounced saver for key.
func (s *Store) NewAutoSaver(key string, delay time.Duration) *AutoSaver {
	return &AutoSaver{
		store: s,
		clock: s.clock,
		key:   key,
		delay: delay,
	}
}

// Update records the latest value and reschedules the save.
// The value is encoded immediately so later mutation by the caller
// does not change what gets saved.
func (a *AutoSaver) Update(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		// После Close сохраняем сразу
		a.saveMu.Lock()
		a.store.SaveDraft(context.Background(), a.key, json.RawMessage(raw))
		a.saveMu.Unlock()
		return nil
	}

	a.pending = raw
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.delay <= 0 {
		a.mu.Unlock()
		a.Flush(context.Background())
		return nil
	}
	a.timer = a.clock.AfterFunc(a.delay, func() { a.Flush(context.Background()) })
	a.mu.Unlock()
	return nil
}

// Pending reports whether an update is waiting for the timer.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush saves the pending value now. Returns true when there was nothing
// to save or the save succeeded. Concurrent flushes run one at a time, so
// an older value never lands after a newer one.
func (a *AutoSaver) Flush(ctx context.Context) bool {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	raw := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if raw == nil {
		return true
	}
	if !a.store.SaveDraft(ctx, a.key, raw) {
		// Возвращаем значение, чтобы следующий Flush попробовал снова
		a.mu.Lock()
		if a.pending == nil {
			a.pending = raw
		}
		a.mu.Unlock()
		return false
	}
	return true
}

// Close flushes synchronously and stops debouncing.
func (a *AutoSaver) Close(ctx context.Context) bool {
	ok := a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return ok
}
