// Package crosstab lets concurrently running client instances see each
// other's saves. It detects divergent edits and reports them; it never
// merges or deletes data on its own.
package crosstab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// Сигналы без данных
const (
	SignalMutationSynced = "mutation-synced"
	SignalQueueChanged   = "queue-changed"
)

var (
	// ErrNoConflict indicates that no unresolved conflict exists for the key
	ErrNoConflict = errors.New("no conflict for key")

	// ErrNoSaver indicates that ResolveConflict was called before SetSaver
	ErrNoSaver = errors.New("no save function configured")
)

// Key identifies one logical value shared between tabs.
type Key struct {
	PageType string
	PageID   string // "" = null
}

func (k Key) String() string {
	if k.PageID == "" {
		return k.PageType
	}
	return k.PageType + ":" + k.PageID
}

// RemoteUpdate is a value accepted from another tab.
type RemoteUpdate struct {
	Key       Key
	Data      json.RawMessage
	TabID     string
	Timestamp int64
}

// Signal is a non-data event from another tab.
type Signal struct {
	Name      string
	TabID     string
	Timestamp int64
}

// SaveFunc writes a resolved value through the normal save path.
type SaveFunc func(ctx context.Context, key Key, data json.RawMessage) error

// Options tune the coordinator.
type Options struct {
	TabID     string        // пустой: генерируется UUID
	Threshold time.Duration // по умолчанию 5s
}

// Coordinator tracks the values this tab saved itself and compares them
// with broadcasts from other tabs. Values accepted from other tabs are
// never used as the local side of a comparison.
type Coordinator struct {
	bus       Bus
	clk       clock.Clock
	logger    *slog.Logger
	local     *xsync.MapOf[Key, models.Snapshot]
	conflicts *xsync.MapOf[Key, *models.ConflictDescriptor]
	later     *xsync.MapOf[Key, models.Snapshot] // удалённые значения, пришедшие после конфликта
	save      SaveFunc
	tabID     string

	onUpdate   []func(RemoteUpdate)
	onConflict []func(models.ConflictDescriptor)
	onSignal   []func(Signal)

	threshold time.Duration
	mu        sync.RWMutex
}

// New creates a coordinator publishing on bus.
func New(logger *slog.Logger, bus Bus, clk clock.Clock, opts Options) *Coordinator {
	if opts.TabID == "" {
		opts.TabID = uuid.New().String()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 5 * time.Second
	}

	return &Coordinator{
		bus:       bus,
		clk:       clk,
		logger:    logger.With("tab_id", opts.TabID),
		tabID:     opts.TabID,
		threshold: opts.Threshold,
		local:     xsync.NewMapOf[Key, models.Snapshot](),
		conflicts: xsync.NewMapOf[Key, *models.ConflictDescriptor](),
		later:     xsync.NewMapOf[Key, models.Snapshot](),
	}
}

// TabID returns the identifier of this instance. Stable for its lifetime.
func (c *Coordinator) TabID() string { return c.tabID }

// SetSaver sets the function used to write resolved conflicts.
func (c *Coordinator) SetSaver(fn SaveFunc) {
	c.mu.Lock()
	c.save = fn
	c.mu.Unlock()
}

// OnRemoteUpdate registers fn for values accepted from other tabs.
func (c *Coordinator) OnRemoteUpdate(fn func(RemoteUpdate)) {
	c.mu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.mu.Unlock()
}

// OnConflict registers fn for newly detected conflicts.
func (c *Coordinator) OnConflict(fn func(models.ConflictDescriptor)) {
	c.mu.Lock()
	c.onConflict = append(c.onConflict, fn)
	c.mu.Unlock()
}

// OnSignal registers fn for signals from other tabs.
func (c *Coordinator) OnSignal(fn func(Signal)) {
	c.mu.Lock()
	c.onSignal = append(c.onSignal, fn)
	c.mu.Unlock()
}

// Broadcast publishes data for key and records it as this tab's value.
func (c *Coordinator) Broadcast(ctx context.Context, key Key, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast data: %w", err)
	}
	return c.publish(ctx, key, raw, false)
}

// BroadcastPage is Broadcast for callers that already hold encoded data.
func (c *Coordinator) BroadcastPage(ctx context.Context, pageType, pageID string, data json.RawMessage) error {
	return c.publish(ctx, Key{PageType: pageType, PageID: pageID}, data, false)
}

// BroadcastSignal publishes a named event without data.
func (c *Coordinator) BroadcastSignal(ctx context.Context, name string) error {
	msg := api.TabMessage{
		Kind:      api.TabMessageSignal,
		Signal:    name,
		TabID:     c.tabID,
		Timestamp: clock.UnixMilli(c.clk),
	}
	if err := c.bus.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish signal %s: %w", name, err)
	}
	return nil
}

// TrackLocal records a local save without publishing it.
func (c *Coordinator) TrackLocal(key Key, data json.RawMessage, ts int64) {
	c.local.Store(key, models.Snapshot{
		Data:        append(json.RawMessage(nil), data...),
		Timestamp:   ts,
		OriginTabID: c.tabID,
		Source:      "local",
	})
}

// Conflicts returns unresolved conflicts ordered by detection time.
func (c *Coordinator) Conflicts() []models.ConflictDescriptor {
	var out []models.ConflictDescriptor
	c.conflicts.Range(func(_ Key, d *models.ConflictDescriptor) bool {
		out = append(out, *d)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt != out[j].DetectedAt {
			return out[i].DetectedAt < out[j].DetectedAt
		}
		return out[i].PageType+out[i].PageID < out[j].PageType+out[j].PageID
	})
	return out
}

// ResolveConflict writes the chosen side through the save function and
// re-broadcasts it so every tab converges on one value. The descriptor
// shown to the user is the one resolved: remote values received while the
// conflict was open do not change it. If such a value differs from the
// chosen one, a new conflict is raised for it after the resolution.
func (c *Coordinator) ResolveConflict(ctx context.Context, key Key, choice models.Resolution) error {
	d, ok := c.conflicts.Load(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConflict, key)
	}

	var chosen models.Snapshot
	switch choice {
	case models.ResolveLocal:
		chosen = d.Local
	case models.ResolveRemote:
		chosen = d.Remote
	default:
		return fmt.Errorf("unknown resolution %q", choice)
	}

	c.mu.RLock()
	save := c.save
	c.mu.RUnlock()
	if save == nil {
		return ErrNoSaver
	}

	if err := save(ctx, key, chosen.Data); err != nil {
		return fmt.Errorf("failed to save resolved value for %s: %w", key, err)
	}
	c.conflicts.Delete(key)

	c.logger.Info("Conflict resolved", "key", key.String(), "choice", choice)

	// Новая отметка времени: решение новее обеих сторон
	if err := c.publish(ctx, key, chosen.Data, true); err != nil {
		c.logger.Warn("Failed to broadcast resolution", "key", key.String(), "error", err)
	}

	// Значение, пришедшее во время выбора, сравнивается с решением
	if held, ok := c.later.LoadAndDelete(key); ok && !jsonEqual(held.Data, chosen.Data) {
		c.compare(key, held)
	}
	return nil
}

// Run delivers incoming messages until ctx is done or the bus closes.
func (c *Coordinator) Run(ctx context.Context) error {
	in := c.bus.Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			c.handle(msg)
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, key Key, data json.RawMessage, resolved bool) error {
	ts := clock.UnixMilli(c.clk)
	c.TrackLocal(key, data, ts)

	msg := api.TabMessage{
		Kind:      api.TabMessageUpdate,
		PageType:  key.PageType,
		PageID:    key.PageID,
		Data:      data,
		Resolved:  resolved,
		TabID:     c.tabID,
		Timestamp: ts,
	}
	if err := c.bus.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

func (c *Coordinator) handle(msg api.TabMessage) {
	// Собственные сообщения игнорируем
	if msg.TabID == c.tabID {
		return
	}

	switch msg.Kind {
	case api.TabMessageSignal:
		c.dispatchSignal(Signal{Name: msg.Signal, TabID: msg.TabID, Timestamp: msg.Timestamp})
	case api.TabMessageUpdate:
		c.receiveUpdate(msg)
	default:
		c.logger.Debug("Unknown tab message", "kind", msg.Kind, "from", msg.TabID)
	}
}

func (c *Coordinator) receiveUpdate(msg api.TabMessage) {
	key := Key{PageType: msg.PageType, PageID: msg.PageID}
	remote := models.Snapshot{
		Data:        append(json.RawMessage(nil), msg.Data...),
		Timestamp:   msg.Timestamp,
		OriginTabID: msg.TabID,
		Source:      "remote",
	}

	// Решение, принятое в другой вкладке, закрывает конфликт и здесь
	if msg.Resolved {
		c.conflicts.Delete(key)
		c.later.Delete(key)
		c.accept(key, remote)
		return
	}

	// Открытый конфликт не меняется; новое значение ждёт решения
	if _, ok := c.conflicts.Load(key); ok {
		c.later.Store(key, remote)
		return
	}

	c.compare(key, remote)
}

// compare raises a conflict when remote is too far from this tab's own
// save and accepts it otherwise.
func (c *Coordinator) compare(key Key, remote models.Snapshot) {
	local, ok := c.local.Load(key)
	if ok {
		gap := local.Timestamp - remote.Timestamp
		if gap < 0 {
			gap = -gap
		}
		if gap > c.threshold.Milliseconds() {
			c.raiseConflict(key, local, remote)
			return
		}
	}

	c.accept(key, remote)
}

// accept applies remote. The tab now shows the remote value, so its own
// earlier save no longer takes part in comparisons.
func (c *Coordinator) accept(key Key, remote models.Snapshot) {
	c.local.Delete(key)
	c.dispatchUpdate(RemoteUpdate{
		Key:       key,
		Data:      remote.Data,
		TabID:     remote.OriginTabID,
		Timestamp: remote.Timestamp,
	})
}

func (c *Coordinator) raiseConflict(key Key, local, remote models.Snapshot) {
	d := &models.ConflictDescriptor{
		PageType:   key.PageType,
		PageID:     key.PageID,
		Local:      local.Clone(),
		Remote:     remote,
		DetectedAt: clock.UnixMilli(c.clk),
	}
	if _, loaded := c.conflicts.LoadOrStore(key, d); loaded {
		return
	}

	c.logger.Warn("Conflict detected",
		"key", key.String(), "local_ts", local.Timestamp, "remote_ts", remote.Timestamp, "from", remote.OriginTabID)

	c.mu.RLock()
	handlers := append([]func(models.ConflictDescriptor){}, c.onConflict...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(*d)
	}
}

func (c *Coordinator) dispatchUpdate(u RemoteUpdate) {
	c.mu.RLock()
	handlers := append([]func(RemoteUpdate){}, c.onUpdate...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(u)
	}
}

func (c *Coordinator) dispatchSignal(s Signal) {
	c.mu.RLock()
	handlers := append([]func(Signal){}, c.onSignal...)
	c.mu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func jsonEqual(a, b json.RawMessage) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return string(a) == string(b)
	}
	return reflect.DeepEqual(x, y)
}
