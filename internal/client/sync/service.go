// Package sync drains the mutation queue to the server.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/api"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	wire "github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// SignalMutationSynced имя сигнала, рассылаемого другим вкладкам после доставки
const SignalMutationSynced = "mutation-synced"

var (
	syncedTotal     = metrics.NewCounter(`offlinekit_sync_mutations_total{result="synced"}`)
	failedTotal     = metrics.NewCounter(`offlinekit_sync_mutations_total{result="failed"}`)
	passesTotal     = metrics.NewCounter(`offlinekit_sync_passes_total`)
	attemptDuration = metrics.NewHistogram(`offlinekit_sync_attempt_duration_seconds`)

	lastPending atomic.Int64
	_           = metrics.NewGauge(`offlinekit_queue_pending`, func() float64 {
		return float64(lastPending.Load())
	})
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс координатора синхронизации
type Service interface {
	// TriggerSync выполняет один проход по очереди
	TriggerSync(ctx context.Context) (Result, error)

	// IsSyncing сообщает, идёт ли сейчас проход
	IsSyncing() bool

	// PendingCount количество мутаций, ожидающих доставки (включая in-flight)
	PendingCount(ctx context.Context) int

	// FailedCount количество мутаций с неудачной попыткой (включая abandoned)
	FailedCount(ctx context.Context) int
}

// Connectivity is the online/offline hint the coordinator reacts to.
type Connectivity interface {
	IsOnline() bool
	Subscribe() (<-chan bool, func())
}

// Signaler tells other tabs that the queue changed.
type Signaler interface {
	BroadcastSignal(ctx context.Context, name string) error
}

// Result contains sync pass results
type Result struct {
	Synced int // количество доставленных мутаций
	Failed int // количество неудачных попыток
}

// State is the observable state published to subscribers.
type State struct {
	LastResult Result
	LastSyncAt int64 // epoch ms окончания последнего прохода, 0 = не было
	Pending    int
	Failed     int
	IsSyncing  bool
}

// Options tune the coordinator.
type Options struct {
	RequestTimeout time.Duration // RequestTimeout предел одной попытки
	Interval       time.Duration // Interval период автоматической синхронизации
	MinGap         time.Duration // MinGap минимальный интервал между автоматическими проходами
	Burst          int
	Concurrency    int // Concurrency сколько сущностей отправляются параллельно
}

// Coordinator drains the queue. Each mutation is claimed in storage before
// its network call, so concurrent passes never send the same mutation twice.
type Coordinator struct {
	logger   *slog.Logger
	queue    *queue.Queue
	remote   api.Remote
	conn     Connectivity
	clk      clock.Clock
	limiter  *rate.Limiter
	subs     map[int]chan State
	signaler Signaler
	opts     Options

	nextID     int
	lastResult Result
	lastSyncAt int64
	mu         gosync.Mutex
	syncing    atomic.Int32
}

var _ Service = (*Coordinator)(nil)

// NewCoordinator creates a sync coordinator
func NewCoordinator(logger *slog.Logger, q *queue.Queue, remote api.Remote, conn Connectivity, clk clock.Clock, opts Options) *Coordinator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.MinGap <= 0 {
		opts.MinGap = 2 * time.Second
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}

	c := &Coordinator{
		logger:  logger,
		queue:   q,
		remote:  remote,
		conn:    conn,
		clk:     clk,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.MinGap), opts.Burst),
		subs:    make(map[int]chan State),
	}
	q.OnChange(func() { c.publish(context.Background()) })
	return c
}

// SetSignaler attaches the cross-tab publisher.
func (c *Coordinator) SetSignaler(s Signaler) {
	c.mu.Lock()
	c.signaler = s
	c.mu.Unlock()
}

// IsSyncing reports whether a pass is running.
func (c *Coordinator) IsSyncing() bool { return c.syncing.Load() > 0 }

// PendingCount returns mutations that have not failed yet, in-flight included.
func (c *Coordinator) PendingCount(ctx context.Context) int {
	counts := c.queue.Counts(ctx)
	return counts.Pending + counts.InFlight
}

// FailedCount returns mutations with at least one failed attempt,
// abandoned included.
func (c *Coordinator) FailedCount(ctx context.Context) int {
	counts := c.queue.Counts(ctx)
	return counts.Failed + counts.Abandoned
}

// Subscribe returns a channel receiving the latest state after every
// change, and a cancel function.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// TriggerSync performs one pass:
// 1. Groups eligible mutations by target entity in creation order
// 2. Drains groups in parallel, each group strictly in order
// 3. Stops a group at its first failure so later mutations never overtake it
func (c *Coordinator) TriggerSync(ctx context.Context) (Result, error) {
	c.syncing.Add(1)
	c.publish(ctx)
	defer func() {
		c.syncing.Add(-1)
		lastPending.Store(int64(c.PendingCount(context.WithoutCancel(ctx))))
		c.publish(context.WithoutCancel(ctx))
	}()

	passesTotal.Inc()
	groups := groupByEntity(c.queue.ListPending(ctx))
	if len(groups) == 0 {
		return Result{}, ctx.Err()
	}

	c.logger.Info("Starting synchronization", "entities", len(groups))

	var synced, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)

	for _, group := range groups {
		g.Go(func() error {
			s, f := c.drain(ctx, group)
			synced.Add(int64(s))
			failed.Add(int64(f))
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Synced: int(synced.Load()), Failed: int(failed.Load())}

	c.mu.Lock()
	c.lastResult = result
	c.lastSyncAt = clock.UnixMilli(c.clk)
	c.mu.Unlock()

	c.logger.Info("Synchronization completed", "synced", result.Synced, "failed", result.Failed)
	return result, ctx.Err()
}

// Run triggers passes automatically: on the offline to online transition
// and periodically while online with eligible work. Blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	online, unsubscribe := c.conn.Subscribe()
	defer unsubscribe()

	ticker := c.clk.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	if c.conn.IsOnline() {
		c.autoSync(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up := <-online:
			if up {
				c.autoSync(ctx, "online")
			}
		case <-ticker.C:
			if c.conn.IsOnline() {
				c.autoSync(ctx, "periodic")
			}
		}
	}
}

func (c *Coordinator) autoSync(ctx context.Context, reason string) {
	if len(c.queue.ListEligible(ctx)) == 0 {
		return
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	c.logger.Debug("Automatic sync", "reason", reason)
	if _, err := c.TriggerSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("Automatic sync failed", "reason", reason, "error", err)
	}
}

// drain claims the group and sends it in order. Claims not attempted
// because of an earlier failure are released without counting an attempt.
func (c *Coordinator) drain(ctx context.Context, group []models.QueuedMutation) (synced, failed int) {
	// Учёт в очереди не должен прерываться отменой прохода
	bookkeeping := context.WithoutCancel(ctx)

	claimed := make([]models.QueuedMutation, 0, len(group))
	for _, m := range group {
		if err := c.queue.MarkInFlight(bookkeeping, m.ID); err != nil {
			// Другой проход уже владеет мутацией или она исчезла
			c.logger.Debug("Claim refused", "mutation_id", m.ID, "error", err)
			break
		}
		claimed = append(claimed, m)
	}

	for i, m := range claimed {
		if ctx.Err() != nil {
			c.release(bookkeeping, claimed[i:])
			return synced, failed
		}

		if err := c.attempt(ctx, m); err != nil {
			failed++
			failedTotal.Inc()
			if markErr := c.queue.MarkFailed(bookkeeping, m.ID, err); markErr != nil {
				c.logger.Error("Failed to record attempt", "mutation_id", m.ID, "error", markErr)
			}
			c.release(bookkeeping, claimed[i+1:])
			return synced, failed
		}

		synced++
		syncedTotal.Inc()
		if err := c.queue.Dequeue(bookkeeping, m.ID); err != nil {
			// Повторная отправка безопасна: сервер ответит replayed
			c.logger.Error("Failed to dequeue delivered mutation", "mutation_id", m.ID, "error", err)
		}
		c.signal(bookkeeping)
	}
	return synced, failed
}

func (c *Coordinator) attempt(ctx context.Context, m models.QueuedMutation) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.remote.ApplyMutation(ctx, Request(m))
	attemptDuration.UpdateDuration(start)
	if err != nil {
		return err
	}

	c.logger.Debug("Mutation delivered",
		"mutation_id", m.ID, "entity", m.TargetEntity, "version", resp.Version, "replayed", resp.Replayed)
	return nil
}

func (c *Coordinator) release(ctx context.Context, rest []models.QueuedMutation) {
	for _, m := range rest {
		if err := c.queue.Release(ctx, m.ID); err != nil {
			c.logger.Warn("Failed to release claim", "mutation_id", m.ID, "error", err)
		}
	}
}

func (c *Coordinator) signal(ctx context.Context) {
	c.mu.Lock()
	s := c.signaler
	c.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.BroadcastSignal(ctx, SignalMutationSynced); err != nil {
		c.logger.Warn("Failed to broadcast sync signal", "error", err)
	}
}

// publish sends the current state to subscribers, latest value wins.
func (c *Coordinator) publish(ctx context.Context) {
	c.mu.Lock()
	if len(c.subs) == 0 {
		c.mu.Unlock()
		return
	}
	subs := make([]chan State, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	state := State{LastResult: c.lastResult, LastSyncAt: c.lastSyncAt}
	c.mu.Unlock()

	counts := c.queue.Counts(ctx)
	state.Pending = counts.Pending + counts.InFlight
	state.Failed = counts.Failed + counts.Abandoned
	state.IsSyncing = c.IsSyncing()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

// Request converts a queued mutation into its wire form. The mutation id
// is the idempotency key.
func Request(m models.QueuedMutation) wire.MutationRequest {
	return wire.MutationRequest{
		ID:           m.ID,
		Kind:         string(m.Kind),
		TargetEntity: m.TargetEntity,
		Payload:      m.Payload,
		OriginTabID:  m.OriginTabID,
		CreatedAt:    m.CreatedAt,
	}
}

// groupByEntity splits entries (in creation order) into per-entity runs
// of eligible mutations. An entity with an attempt already in flight is
// skipped entirely: sending its later mutations could overtake it.
func groupByEntity(all []models.QueuedMutation) [][]models.QueuedMutation {
	busy := make(map[string]bool)
	for _, m := range all {
		if m.Status == models.StatusInFlight {
			busy[m.TargetEntity] = true
		}
	}

	index := make(map[string]int)
	var groups [][]models.QueuedMutation
	for _, m := range all {
		if !m.Eligible() || busy[m.TargetEntity] {
			continue
		}
		i, ok := index[m.TargetEntity]
		if !ok {
			i = len(groups)
			index[m.TargetEntity] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}
