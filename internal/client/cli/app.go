package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/api"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/connectivity"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/crosstab"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/data"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/drafts"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/recovery"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/boltdb"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/memory"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/sqlite"
	clientsync "github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/sync"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/tiered"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/config"
)

// ErrDraftNotSaved indicates that no storage tier accepted a resolved draft
var ErrDraftNotSaved = errors.New("draft not saved")

// App is one tab: every client component wired over the same storage.
type App struct {
	Storage  *tiered.Adapter
	Drafts   *drafts.Store
	Queue    *queue.Queue
	Remote   *api.Client
	Monitor  *connectivity.Monitor
	Sync     *clientsync.Coordinator
	Tabs     *crosstab.Coordinator
	Data     data.Service
	Recovery *recovery.Surface

	bus    crosstab.Bus
	clock  clock.Clock
	logger *slog.Logger
	cfg    config.Config
}

// Options are the parts of App that differ between the binary and tests.
type Options struct {
	Clock clock.Clock
	Hub   *crosstab.MemoryHub // Hub общая шина для config.BusMemory
}

// Open creates the data dir, opens the storage tiers and wires the
// components together.
func Open(ctx context.Context, logger *slog.Logger, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if cfg.TabID == "" {
		cfg.TabID = uuid.NewString()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	tiers, err := openTiers(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		logger:  logger,
		cfg:     cfg,
		clock:   opts.Clock,
		Storage: tiered.New(logger.With("component", "storage"), tiers, clock.NewMonotonic(opts.Clock), cfg.HighWaterMark),
		Remote:  api.NewClient(cfg.ServerURL, cfg.Token),
	}
	app.Storage.PurgeTombstones(ctx, tiered.TombstoneRetention)

	app.bus, err = openBus(ctx, logger, cfg, opts, app.Remote)
	if err != nil {
		_ = app.Storage.Close()
		return nil, err
	}

	app.Drafts = drafts.NewStore(logger.With("component", "drafts"), app.Storage, opts.Clock)
	app.Queue = queue.Open(ctx, logger.With("component", "queue"), app.Storage, opts.Clock, queue.Options{
		TabID:          cfg.TabID,
		AttemptCeiling: cfg.AttemptCeiling,
		StaleAfter:     2 * cfg.RequestTimeout,
	})
	app.Monitor = connectivity.NewMonitor(logger.With("component", "connectivity"), app.Remote, opts.Clock, cfg.PingInterval, false)
	app.Sync = clientsync.NewCoordinator(logger.With("component", "sync"), app.Queue, app.Remote, app.Monitor, opts.Clock, clientsync.Options{
		RequestTimeout: cfg.RequestTimeout,
		Interval:       cfg.SyncInterval,
		MinGap:         cfg.SyncMinGap,
		Burst:          cfg.SyncBurst,
		Concurrency:    cfg.SyncConcurrency,
	})
	app.Tabs = crosstab.New(logger.With("component", "crosstab"), app.bus, opts.Clock, crosstab.Options{
		TabID:     cfg.TabID,
		Threshold: cfg.ConflictThreshold,
	})
	app.Data = data.NewService(logger.With("component", "data"), app.Remote, app.Queue, app.Drafts, app.Monitor, opts.Clock, data.Options{
		TabID:          cfg.TabID,
		RequestTimeout: cfg.RequestTimeout,
	})
	app.Recovery = recovery.New(logger.With("component", "recovery"), recovery.Deps{
		Queue:   app.Queue,
		Drafts:  app.Drafts,
		Storage: app.Storage,
		Conn:    app.Monitor,
		Sync:    app.Sync,
		Data:    app.Data,
	}, cfg.DraftMaxAge)

	app.wire(context.WithoutCancel(ctx))
	return app, nil
}

// wire connects the components that talk to each other through callbacks.
func (a *App) wire(ctx context.Context) {
	a.Drafts.SetBroadcaster(a.Tabs)
	a.Sync.SetSignaler(a.Tabs)

	a.Tabs.SetSaver(func(ctx context.Context, key crosstab.Key, raw json.RawMessage) error {
		if key.PageType != drafts.PageType {
			return fmt.Errorf("unsupported page type %q", key.PageType)
		}
		if !a.Drafts.SaveLocal(ctx, key.PageID, raw) {
			return ErrDraftNotSaved
		}
		return nil
	})

	// Хранилище общее, но вкладка могла писать в другой уровень
	a.Tabs.OnRemoteUpdate(func(u crosstab.RemoteUpdate) {
		if u.Key.PageType == drafts.PageType {
			a.Drafts.SaveLocal(ctx, u.Key.PageID, u.Data)
		}
	})

	a.Tabs.OnSignal(func(s crosstab.Signal) {
		switch s.Name {
		case crosstab.SignalMutationSynced, crosstab.SignalQueueChanged:
			a.Queue.Reload(ctx)
		}
	})
}

// TabID returns this tab's identifier.
func (a *App) TabID() string { return a.cfg.TabID }

// Config returns the configuration the app was opened with.
func (a *App) Config() config.Config { return a.cfg }

// Connect probes the server once so one-shot commands see real state.
func (a *App) Connect(ctx context.Context) bool {
	return a.Monitor.Check(ctx)
}

// NotifyQueueChanged tells other tabs to reload the queue after a user action.
func (a *App) NotifyQueueChanged(ctx context.Context) {
	if err := a.Tabs.BroadcastSignal(ctx, crosstab.SignalQueueChanged); err != nil {
		a.logger.Warn("Failed to notify other tabs", "error", err)
	}
}

// Run starts the background loops and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Monitor.Run(ctx) })
	g.Go(func() error { return a.Sync.Run(ctx) })
	g.Go(func() error { return a.Tabs.Run(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close flushes pending durable writes and releases every resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Storage.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush storage: %w", err))
	}
	if err := a.bus.Close(); err != nil && !errors.Is(err, crosstab.ErrBusClosed) {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// openTiers opens the bbolt fast tier and the sqlite durable tier.
// The durable tier is encrypted when a passphrase is configured. A fast
// tier locked by another tab is skipped: the durable tier is shared.
func openTiers(ctx context.Context, logger *slog.Logger, cfg config.Config) (tiered.Tiers, error) {
	tiers := tiered.Tiers{Memory: memory.New()}

	fast, err := boltdb.New(ctx, cfg.FastPath(), cfg.FastQuotaBytes)
	if err != nil {
		logger.Warn("Fast tier unavailable, using durable tier only", "path", cfg.FastPath(), "error", err)
	} else {
		tiers.Fast = fast
	}

	durable, err := sqlite.New(ctx, cfg.DurablePath(), cfg.CompressAtBytes)
	if err != nil {
		closeTiers(tiers)
		return tiered.Tiers{}, fmt.Errorf("failed to open durable tier: %w", err)
	}
	tiers.Durable = durable

	if cfg.Passphrase == "" {
		return tiers, nil
	}

	sealer, err := storage.OpenSealer(ctx, durable, cfg.Passphrase)
	if err != nil {
		closeTiers(tiers)
		return tiered.Tiers{}, err
	}
	tiers.Durable = storage.Sealed(durable, sealer)
	return tiers, nil
}

func closeTiers(t tiered.Tiers) {
	for _, b := range []storage.Backend{t.Fast, t.Durable} {
		if b != nil {
			_ = b.Close()
		}
	}
}

func openBus(ctx context.Context, logger *slog.Logger, cfg config.Config, opts Options, remote *api.Client) (crosstab.Bus, error) {
	logger = logger.With("component", "bus")

	switch cfg.Bus {
	case config.BusMemory:
		if opts.Hub == nil {
			opts.Hub = crosstab.NewMemoryHub()
		}
		return opts.Hub.Join(), nil
	case config.BusWebsocket:
		return crosstab.DialWebsocket(ctx, logger, remote.TabsURL(), remote.Token())
	default:
		return crosstab.NewDirBus(logger, cfg.BroadcastDir(), cfg.TabID, cfg.BroadcastTTL, opts.Clock)
	}
}
