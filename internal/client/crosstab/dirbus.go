package crosstab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fxamacker/cbor/v2"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

const messageExt = ".msg"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("crosstab: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("crosstab: CBOR decoder initialization failed: " + err.Error())
	}
}

// DirBus exchanges messages between processes sharing a data directory.
// Each message is one CBOR file; peers pick it up through fsnotify.
// Files older than the TTL are swept.
type DirBus struct {
	logger  *slog.Logger
	clk     clock.Clock
	watcher *fsnotify.Watcher
	out     chan api.TabMessage
	done    chan struct{}
	seen    map[string]struct{}
	seenMu  sync.Mutex
	dir     string
	tabID   string
	ttl     time.Duration
	wg      sync.WaitGroup
	seq     atomic.Uint64
	once    sync.Once
	closed  atomic.Bool
}

var _ Bus = (*DirBus)(nil)

// NewDirBus starts watching dir. Messages already present are not replayed.
func NewDirBus(logger *slog.Logger, dir, tabID string, ttl time.Duration, clk clock.Clock) (*DirBus, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create broadcast directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	b := &DirBus{
		logger:  logger,
		clk:     clk,
		watcher: watcher,
		out:     make(chan api.TabMessage, 64),
		done:    make(chan struct{}),
		seen:    make(map[string]struct{}),
		dir:     dir,
		tabID:   tabID,
		ttl:     ttl,
	}

	b.wg.Add(1)
	go b.watch()

	if ttl > 0 {
		b.wg.Add(1)
		go b.sweepLoop()
	}
	return b, nil
}

// Publish writes msg to a new file. The file is renamed into place so
// readers never see a partial message.
func (b *DirBus) Publish(ctx context.Context, msg api.TabMessage) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encMode.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	name := fmt.Sprintf("%013d-%s-%06d%s", clock.UnixMilli(b.clk), b.tabID, b.seq.Add(1), messageExt)
	tmp := filepath.Join(b.dir, "."+name+".tmp")

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(b.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Receive returns the incoming channel. It is closed by Close.
func (b *DirBus) Receive() <-chan api.TabMessage { return b.out }

func (b *DirBus) Close() error {
	var err error
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.done)
		err = b.watcher.Close()
		b.wg.Wait()
		close(b.out)
	})
	return err
}

func (b *DirBus) watch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			b.receive(event.Name)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("Broadcast watcher error", "error", err)
		}
	}
}

func (b *DirBus) receive(path string) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, messageExt) || strings.HasPrefix(name, ".") {
		return
	}
	// Свои файлы не читаем
	if messageTab(name) == b.tabID {
		return
	}
	b.seenMu.Lock()
	_, dup := b.seen[name]
	b.seenMu.Unlock()
	if dup {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("Failed to read broadcast", "file", name, "error", err)
		}
		return
	}
	b.seenMu.Lock()
	b.seen[name] = struct{}{}
	b.seenMu.Unlock()

	var msg api.TabMessage
	if err := decMode.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("Corrupted broadcast", "file", name, "error", err)
		return
	}

	select {
	case b.out <- msg:
	case <-b.done:
	}
}

func (b *DirBus) sweepLoop() {
	defer b.wg.Done()

	ticker := b.clk.NewTicker(b.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

// sweep removes message files older than ttl. Any process may remove any
// file; a message a peer hasn't read by then is lost.
func (b *DirBus) sweep() int {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.logger.Warn("Failed to list broadcast directory", "error", err)
		return 0
	}

	cutoff := clock.UnixMilli(b.clk) - b.ttl.Milliseconds()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		ts, ok := messageTime(name)
		if !ok || ts > cutoff {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, name)); err == nil || errors.Is(err, os.ErrNotExist) {
			removed++
		}
	}

	// seen хранит только имена, которые ещё могут прийти повторно
	b.seenMu.Lock()
	for name := range b.seen {
		if ts, ok := messageTime(name); !ok || ts <= cutoff {
			delete(b.seen, name)
		}
	}
	b.seenMu.Unlock()
	return removed
}

// messageTime extracts the publish time from a message file name.
func messageTime(name string) (int64, bool) {
	if !strings.HasSuffix(name, messageExt) || strings.HasPrefix(name, ".") {
		return 0, false
	}
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// messageTab extracts the publisher tab id: the part between the time
// prefix and the sequence suffix.
func messageTab(name string) string {
	name = strings.TrimSuffix(name, messageExt)
	first := strings.IndexByte(name, '-')
	last := strings.LastIndexByte(name, '-')
	if first < 0 || last <= first {
		return ""
	}
	return name[first+1 : last]
}
