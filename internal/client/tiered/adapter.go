// Package tiered stores records across an ordered list of storage tiers:
// a fast quota-limited tier, a durable tier and an in-memory last resort.
// Storage errors never cross the public API: writes report a bool, reads
// report absence.
package tiered

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/memory"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// tombstonePrefix marks records removed through Remove. Tombstones live in
// the durable tier only.
const tombstonePrefix = "tombstone:"

// TombstoneRetention is how long tombstones are kept by default.
const TombstoneRetention = 30 * 24 * time.Hour

// Tiers lists the backends in priority order. Fast and Durable may be nil;
// a nil Memory is replaced with a fresh in-memory backend.
type Tiers struct {
	Fast    storage.Backend
	Durable storage.Backend
	Memory  storage.Backend
}

// Adapter is safe for concurrent use.
type Adapter struct {
	tiers     Tiers
	logger    *slog.Logger
	stamps    *clock.Monotonic
	writer    *durableWriter
	highWater float64

	quotaHit  atomic.Bool
	usageHigh atomic.Bool
	closeOnce sync.Once
}

// New starts the durable writer. highWater is the fraction of the fast
// tier quota above which the adapter reports itself degraded.
func New(logger *slog.Logger, tiers Tiers, stamps *clock.Monotonic, highWater float64) *Adapter {
	if tiers.Memory == nil {
		tiers.Memory = memory.New()
	}

	a := &Adapter{
		tiers:     tiers,
		logger:    logger,
		stamps:    stamps,
		highWater: highWater,
	}
	if tiers.Durable != nil {
		a.writer = newDurableWriter(logger, tiers.Durable, 256)
	}
	return a
}

// Write persists value under key. Returns true if any tier accepted it.
func (a *Adapter) Write(ctx context.Context, key string, value any) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		a.logger.Error("Failed to encode value", "key", key, "error", err)
		return false
	}
	return a.WriteRaw(ctx, key, payload)
}

// WriteRaw is Write for an already encoded JSON payload.
func (a *Adapter) WriteRaw(ctx context.Context, key string, payload json.RawMessage) bool {
	rec := models.StorageRecord{
		Key:           key,
		Payload:       payload,
		SavedAt:       a.stamps.Stamp(),
		SchemaVersion: models.SchemaVersion,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		a.logger.Error("Failed to encode record", "key", key, "error", err)
		return false
	}

	fastErr := a.put(ctx, a.tiers.Fast, key, data)
	if fastErr == nil {
		// Долговременный уровень пишется всегда, параллельно с быстрым
		if a.writer != nil {
			a.writer.put(key, data, nil)
		}
		a.refreshUsage(ctx)
		return true
	}

	// Быстрый уровень не принял запись: старое значение в нём не должно
	// затенять новое при чтении
	a.evictFast(ctx, key)

	if a.writer != nil {
		done := make(chan error, 1)
		a.writer.put(key, data, done)
		select {
		case err := <-done:
			if err == nil {
				return true
			}
		case <-ctx.Done():
			a.logger.Warn("Gave up waiting for durable write", "key", key, "error", ctx.Err())
		}
	}

	if err := a.put(ctx, a.tiers.Memory, key, data); err == nil {
		a.logger.Warn("Record kept in memory only", "key", key)
		a.dropDurable(ctx, key)
		return true
	}

	a.logger.Error("All storage tiers rejected write", "key", key)
	return false
}

// Read returns the newest parseable record for key across all tiers.
// The durable tier is shared with other instances and decides once this
// instance has no durable operation outstanding for key: a newer durable
// record wins, ties included, and a fast copy missing from the durable
// tier is dropped if a tombstone shows it was removed elsewhere.
func (a *Adapter) Read(ctx context.Context, key string) (*models.StorageRecord, bool) {
	fast := a.get(ctx, a.tiers.Fast, key)
	durable := a.get(ctx, a.tiers.Durable, key)
	mem := a.get(ctx, a.tiers.Memory, key)

	candidates := []*models.StorageRecord{fast.rec, durable.rec, mem.rec}
	if a.durableSettled(key) {
		// Порядок задаёт победителя при равных SavedAt
		candidates = []*models.StorageRecord{durable.rec, mem.rec}
		if durable.state != lookupMissing || a.fastCopyLive(ctx, key, fast) {
			candidates = append(candidates, fast.rec)
		}
	}

	var best *models.StorageRecord
	for _, rec := range candidates {
		if rec != nil && (best == nil || rec.SavedAt > best.SavedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, false
	}

	a.stamps.Observe(best.SavedAt)
	return best, true
}

// Remove deletes key from every tier and leaves a tombstone in the durable
// tier so other instances drop their fast copies. It returns once the
// durable tier has applied both, so an earlier queued write can't bring
// the key back.
func (a *Adapter) Remove(ctx context.Context, key string) {
	if a.tiers.Fast != nil {
		if err := a.tiers.Fast.Delete(ctx, key); err != nil {
			a.tierError(a.tiers.Fast, "delete", key, err)
		} else {
			a.quotaHit.Store(false)
		}
	}

	if a.writer != nil {
		a.writer.remove(key, nil)

		tomb, err := json.Marshal(models.StorageRecord{
			Key:           key,
			Payload:       json.RawMessage(`true`),
			SavedAt:       a.stamps.Stamp(),
			SchemaVersion: models.SchemaVersion,
		})
		done := make(chan error, 1)
		if err == nil {
			a.writer.put(tombstonePrefix+key, tomb, done)
		} else {
			a.writer.submit(writeOp{done: done})
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if err := a.tiers.Memory.Delete(ctx, key); err != nil {
		a.tierError(a.tiers.Memory, "delete", key, err)
	}
	a.refreshUsage(ctx)
}

// Keys returns the sorted union of keys with prefix across all tiers.
// Fast copies removed elsewhere are left out, as in Read.
func (a *Adapter) Keys(ctx context.Context, prefix string) []string {
	seen := make(map[string]struct{})

	durable, durableOK := a.keys(ctx, a.tiers.Durable, prefix)
	for _, k := range durable {
		seen[k] = struct{}{}
	}
	mem, _ := a.keys(ctx, a.tiers.Memory, prefix)
	for _, k := range mem {
		seen[k] = struct{}{}
	}

	fast, _ := a.keys(ctx, a.tiers.Fast, prefix)
	for _, k := range fast {
		if _, ok := seen[k]; ok {
			continue
		}
		if durableOK && a.durableSettled(k) && !a.fastCopyLive(ctx, k, a.get(ctx, a.tiers.Fast, k)) {
			continue
		}
		seen[k] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		if strings.HasPrefix(k, tombstonePrefix) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PurgeTombstones deletes tombstones older than maxAge. Returns the number
// removed.
func (a *Adapter) PurgeTombstones(ctx context.Context, maxAge time.Duration) int {
	keys, ok := a.keys(ctx, a.tiers.Durable, tombstonePrefix)
	if !ok || a.writer == nil {
		return 0
	}

	cutoff := a.stamps.Stamp() - maxAge.Milliseconds()
	purged := 0
	for _, k := range keys {
		tomb := a.get(ctx, a.tiers.Durable, k)
		if tomb.rec != nil && tomb.rec.SavedAt >= cutoff {
			continue
		}
		a.writer.remove(k, nil)
		purged++
	}
	if purged > 0 {
		a.logger.Debug("Purged tombstones", "count", purged)
	}
	return purged
}

type lookupState int

const (
	lookupFound lookupState = iota
	lookupMissing
	lookupFailed // ошибка уровня или нечитаемое значение
)

type lookup struct {
	rec   *models.StorageRecord
	raw   []byte
	state lookupState
}

func (a *Adapter) get(ctx context.Context, b storage.Backend, key string) lookup {
	if b == nil {
		return lookup{state: lookupFailed}
	}

	data, err := b.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return lookup{state: lookupMissing}
		}
		a.tierError(b, "get", key, err)
		return lookup{state: lookupFailed}
	}

	rec, err := decodeRecord(key, data)
	if err != nil {
		a.logger.Warn("Unparseable record, ignoring tier",
			"key", key, "tier", b.Name(), "error", err)
		return lookup{state: lookupFailed}
	}
	return lookup{rec: rec, raw: data, state: lookupFound}
}

// fastCopyLive decides about a fast copy the durable tier doesn't have.
// A tombstone at least as new means another instance removed the key: the
// copy is evicted. Otherwise the copy never reached the durable tier, for
// example after a crash, and it is written there again.
func (a *Adapter) fastCopyLive(ctx context.Context, key string, fast lookup) bool {
	if fast.rec == nil {
		return false
	}

	tomb := a.get(ctx, a.tiers.Durable, tombstonePrefix+key)
	if tomb.rec != nil && tomb.rec.SavedAt >= fast.rec.SavedAt {
		a.logger.Debug("Fast copy removed elsewhere, dropping it", "key", key)
		a.evictFast(ctx, key)
		return false
	}

	a.writer.put(key, fast.raw, nil)
	return true
}

func (a *Adapter) durableSettled(key string) bool {
	return a.writer != nil && a.writer.settled(key)
}

func (a *Adapter) keys(ctx context.Context, b storage.Backend, prefix string) ([]string, bool) {
	if b == nil {
		return nil, false
	}
	keys, err := b.Keys(ctx, prefix)
	if err != nil {
		a.tierError(b, "keys", prefix, err)
		return nil, false
	}
	return keys, true
}

// IsDegraded reports whether the fast tier is known to be short on space.
func (a *Adapter) IsDegraded() bool {
	return a.quotaHit.Load() || a.usageHigh.Load()
}

// Flush blocks until every durable write queued so far has been applied.
func (a *Adapter) Flush(ctx context.Context) error {
	if a.writer == nil {
		return nil
	}
	return a.writer.flush(ctx)
}

// Close drains the durable writer and closes all tiers.
func (a *Adapter) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.writer != nil {
			a.writer.close()
		}
		for _, b := range a.ordered() {
			if err := b.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
			}
		}
	})
	return errors.Join(errs...)
}

func (a *Adapter) ordered() []storage.Backend {
	out := make([]storage.Backend, 0, 3)
	for _, b := range []storage.Backend{a.tiers.Fast, a.tiers.Durable, a.tiers.Memory} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (a *Adapter) put(ctx context.Context, b storage.Backend, key string, data []byte) error {
	if b == nil {
		return storage.ErrStorageClosed
	}
	err := b.Put(ctx, key, data)
	if err != nil {
		if b == a.tiers.Fast && errors.Is(err, storage.ErrQuotaExceeded) {
			a.quotaHit.Store(true)
		}
		a.tierError(b, "put", key, err)
	}
	return err
}

func (a *Adapter) evictFast(ctx context.Context, key string) {
	if a.tiers.Fast == nil {
		return
	}
	if err := a.tiers.Fast.Delete(ctx, key); err != nil {
		a.logger.Debug("Failed to evict stale fast record", "key", key, "error", err)
	}
}

// dropDurable removes the previous durable copy of a record that only the
// memory tier accepted, so the old value can't be read back.
func (a *Adapter) dropDurable(ctx context.Context, key string) {
	if a.writer == nil {
		return
	}
	done := make(chan error, 1)
	a.writer.remove(key, done)
	select {
	case err := <-done:
		if err != nil {
			a.logger.Warn("Failed to drop stale durable record", "key", key, "error", err)
		}
	case <-ctx.Done():
	}
}

func (a *Adapter) refreshUsage(ctx context.Context) {
	reporter, ok := a.tiers.Fast.(storage.UsageReporter)
	if !ok {
		return
	}
	used, limit, err := reporter.Usage(ctx)
	if err != nil || limit <= 0 {
		return
	}
	a.usageHigh.Store(float64(used) >= a.highWater*float64(limit))
}

func (a *Adapter) tierError(b storage.Backend, op, key string, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`offlinekit_storage_errors_total{tier=%q,op=%q}`, b.Name(), op)).Inc()
	a.logger.Warn("Storage tier error", "tier", b.Name(), "op", op, "key", key, "error", err)
}
