// Package drafts persists unsubmitted user input so a crash or restart
// never loses typed text.
package drafts

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// Key namespaces
const (
	Prefix          = "draft:"
	KeyQuickCapture = "quick-capture"
	PrefixTaskEdit  = "task-edit:"
	PrefixEmergency = "emergency:"
)

// PageType тип страницы межвкладочных сообщений о черновиках
const PageType = "draft"

// Records is the storage the store writes through.
type Records interface {
	WriteRaw(ctx context.Context, key string, payload json.RawMessage) bool
	Read(ctx context.Context, key string) (*models.StorageRecord, bool)
	Remove(ctx context.Context, key string)
	Keys(ctx context.Context, prefix string) []string
}

//go:generate moq -out broadcaster_mock.go . Broadcaster

// Broadcaster publishes a local save to other tabs.
type Broadcaster interface {
	BroadcastPage(ctx context.Context, pageType, pageID string, data json.RawMessage) error
}

// Store is the draft store. Saves are not debounced here; see AutoSaver.
type Store struct {
	records Records
	logger  *slog.Logger
	clock   clock.Clock

	mu          sync.RWMutex
	broadcaster Broadcaster
}

// NewStore creates a draft store over records.
func NewStore(logger *slog.Logger, records Records, clk clock.Clock) *Store {
	return &Store{
		records: records,
		logger:  logger,
		clock:   clk,
	}
}

// SetBroadcaster attaches the cross-tab publisher. nil detaches it.
func (s *Store) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// SaveDraft persists data under key and, when a broadcaster is attached,
// tells other tabs about it. Returns false if no storage tier accepted it.
func (s *Store) SaveDraft(ctx context.Context, key string, data any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("Failed to encode draft", "draft", key, "error", err)
		return false
	}

	if !s.SaveLocal(ctx, key, raw) {
		s.logger.Error("Draft was not persisted", "draft", key)
		return false
	}

	s.mu.RLock()
	b := s.broadcaster
	s.mu.RUnlock()

	if b != nil {
		if err := b.BroadcastPage(ctx, PageType, key, raw); err != nil {
			// Сохранение уже выполнено, рассылка best-effort
			s.logger.Warn("Failed to broadcast draft", "draft", key, "error", err)
		}
	}
	return true
}

// SaveLocal persists without broadcasting. Used when the value came from
// another tab or from a conflict resolution that broadcasts on its own.
func (s *Store) SaveLocal(ctx context.Context, key string, raw json.RawMessage) bool {
	return s.records.WriteRaw(ctx, Prefix+key, raw)
}

// LoadDraft returns the draft saved under key.
func (s *Store) LoadDraft(ctx context.Context, key string) (*models.Draft, bool) {
	rec, ok := s.records.Read(ctx, Prefix+key)
	if !ok {
		return nil, false
	}
	return &models.Draft{
		ID:        key,
		Key:       Prefix + key,
		Data:      rec.Payload,
		Timestamp: rec.SavedAt,
		Source:    models.DraftSourceForm,
	}, true
}

// DeleteDraft removes a draft. Key may be a formal draft key or the full
// storage key of a legacy draft (Draft.Key).
func (s *Store) DeleteDraft(ctx context.Context, key string) {
	s.records.Remove(ctx, storageKey(key))
}

// ListPendingDrafts returns every draft the user has not submitted yet,
// including legacy and emergency snapshots, newest first.
func (s *Store) ListPendingDrafts(ctx context.Context) []models.Draft {
	var keys []string
	keys = append(keys, s.records.Keys(ctx, Prefix)...)
	keys = append(keys, s.records.Keys(ctx, KeyQuickCapture)...)
	keys = append(keys, s.records.Keys(ctx, PrefixTaskEdit)...)
	keys = append(keys, s.records.Keys(ctx, PrefixEmergency)...)

	drafts := make([]models.Draft, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, KeyQuickCapture) && key != KeyQuickCapture {
			continue
		}

		rec, ok := s.records.Read(ctx, key)
		if !ok {
			continue
		}

		d, ok := normalize(key, rec)
		if !ok {
			s.logger.Warn("Dropping unreadable draft", "key", key)
			continue
		}
		drafts = append(drafts, d)
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		if drafts[i].Timestamp != drafts[j].Timestamp {
			return drafts[i].Timestamp > drafts[j].Timestamp
		}
		return drafts[i].Key < drafts[j].Key
	})
	return drafts
}

// Count returns the number of pending drafts.
func (s *Store) Count(ctx context.Context) int {
	return len(s.ListPendingDrafts(ctx))
}

// Prune deletes formal drafts older than maxAge and returns how many were
// removed. Legacy and emergency snapshots are never pruned.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) int {
	cutoff := s.clock.Now().Add(-maxAge).UnixMilli()

	removed := 0
	for _, key := range s.records.Keys(ctx, Prefix) {
		rec, ok := s.records.Read(ctx, key)
		if !ok || rec.SavedAt >= cutoff {
			continue
		}
		s.records.Remove(ctx, key)
		removed++
	}

	if removed > 0 {
		s.logger.Info("Pruned old drafts", "count", removed, "max_age", maxAge)
	}
	return removed
}

func storageKey(key string) string {
	if key == KeyQuickCapture ||
		strings.HasPrefix(key, Prefix) ||
		strings.HasPrefix(key, PrefixTaskEdit) ||
		strings.HasPrefix(key, PrefixEmergency) {
		return key
	}
	return Prefix + key
}
