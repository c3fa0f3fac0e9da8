package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/crosstab"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/recovery"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// Conflict policies of the watch command
const (
	OnConflictAsk    = "ask"
	OnConflictLocal  = "local"
	OnConflictRemote = "remote"
	OnConflictIgnore = "ignore"
)

// defaultRefresh период обновления баннера и обслуживания хранилища
const defaultRefresh = time.Minute

// ErrUnknownPolicy indicates an unsupported --on-conflict value
var ErrUnknownPolicy = errors.New("unknown conflict policy")

// runWatch keeps the tab alive: background sync, cross-tab messages and a
// banner printed whenever the status changes.
func (c *Cli) runWatch(ctx context.Context, policy string, refresh time.Duration) error {
	switch policy {
	case OnConflictAsk, OnConflictLocal, OnConflictRemote, OnConflictIgnore:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	conflicts := make(chan models.ConflictDescriptor, 16)
	c.app.Tabs.OnConflict(func(d models.ConflictDescriptor) {
		select {
		case conflicts <- d:
		default:
			// Дескриптор остаётся в Tabs.Conflicts() до решения
		}
	})

	states, unsubscribe := c.app.Sync.Subscribe()
	defer unsubscribe()
	online, unsubscribeOnline := c.app.Monitor.Subscribe()
	defer unsubscribeOnline()

	runErr := make(chan error, 1)
	go func() { runErr <- c.app.Run(ctx) }()

	ticker := c.app.clock.NewTicker(refresh)
	defer ticker.Stop()

	c.io.Printf("Watching as tab %s (Ctrl+C to stop)\n", c.app.TabID())

	last := ""
	show := func() {
		banner := recovery.Banner(c.app.Recovery.Status(ctx))
		if banner != last {
			c.io.Println(banner)
			last = banner
		}
	}
	show()

	for {
		select {
		case <-ctx.Done():
			return <-runErr
		case err := <-runErr:
			return err
		case <-states:
			show()
		case <-online:
			show()
		case d := <-conflicts:
			c.handleConflict(ctx, d, policy)
			show()
		case <-ticker.C:
			if n := c.app.Recovery.Maintain(ctx); n > 0 {
				c.io.Printf("Storage almost full: removed %d old draft(s)\n", n)
			}
			show()
		}
	}
}

func (c *Cli) handleConflict(ctx context.Context, d models.ConflictDescriptor, policy string) {
	key := crosstab.Key{PageType: d.PageType, PageID: d.PageID}

	c.io.Printf("\nConflict on %s: another tab saved a different version\n", key)
	c.io.Printf("  local:  %s (%s)\n", preview(string(d.Local.Data), 60), formatMillis(d.Local.Timestamp))
	c.io.Printf("  remote: %s (%s)\n", preview(string(d.Remote.Data), 60), formatMillis(d.Remote.Timestamp))

	var choice models.Resolution
	switch policy {
	case OnConflictLocal:
		choice = models.ResolveLocal
	case OnConflictRemote:
		choice = models.ResolveRemote
	case OnConflictAsk:
		var ok bool
		if choice, ok = c.askResolution(); !ok {
			c.io.Println("Left unresolved.")
			return
		}
	default:
		c.io.Println("Left unresolved.")
		return
	}

	if err := c.app.Tabs.ResolveConflict(ctx, key, choice); err != nil {
		c.io.Printf("Failed to resolve %s: %v\n", key, err)
		return
	}
	c.io.Printf("✓ Kept %s version of %s\n", choice, key)
}

func (c *Cli) askResolution() (models.Resolution, bool) {
	for {
		answer, err := c.io.ReadInput("Keep [l]ocal or [r]emote version? ")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.io.Printf("Failed to read answer: %v\n", err)
			}
			return "", false
		}

		switch strings.ToLower(answer) {
		case "l", "local":
			return models.ResolveLocal, true
		case "r", "remote":
			return models.ResolveRemote, true
		}
	}
}
