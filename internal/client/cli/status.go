package cli

import (
	"context"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/recovery"
)

func (c *Cli) runStatus(ctx context.Context, verbose bool) error {
	c.app.Connect(ctx)
	st := c.app.Recovery.Status(ctx)

	c.io.Println(recovery.Banner(st))
	if err := statusTmpl.Execute(c.io, st); err != nil {
		return fmt.Errorf("failed to render status: %w", err)
	}

	if !verbose {
		return nil
	}
	if err := mutationsTmpl.Execute(c.io, mutationViews(c.app.Recovery.Mutations(ctx))); err != nil {
		return fmt.Errorf("failed to render queue: %w", err)
	}
	return c.runDrafts(ctx)
}

func (c *Cli) runQueue(ctx context.Context) error {
	if err := mutationsTmpl.Execute(c.io, mutationViews(c.app.Recovery.Mutations(ctx))); err != nil {
		return fmt.Errorf("failed to render queue: %w", err)
	}
	return nil
}

func (c *Cli) runDrafts(ctx context.Context) error {
	if err := draftsTmpl.Execute(c.io, draftViews(c.app.Recovery.Drafts(ctx))); err != nil {
		return fmt.Errorf("failed to render drafts: %w", err)
	}
	return nil
}
