package cli

import (
	"context"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/recovery"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")

	if !c.app.Connect(ctx) {
		c.io.Println("Server unreachable, changes stay queued.")
		c.io.Println(recovery.Banner(c.app.Recovery.Status(ctx)))
		return nil
	}

	result, err := c.app.Recovery.SyncNow(ctx)
	if err != nil {
		return fmt.Errorf("synchronization interrupted: %w", err)
	}

	c.io.Println()
	c.io.Printf("Delivered: %d change(s)\n", result.Synced)
	if result.Failed > 0 {
		c.io.Printf("Failed:    %d change(s)\n", result.Failed)
	}
	c.io.Println()
	c.io.Println(recovery.Banner(c.app.Recovery.Status(ctx)))
	return nil
}
