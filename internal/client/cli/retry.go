package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
)

// ErrMissingID indicates that a command needs a mutation id
var ErrMissingID = errors.New("missing mutation id")

func (c *Cli) runRetry(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := c.app.Recovery.Retry(ctx, id); err != nil {
		if errors.Is(err, queue.ErrAlreadyInFlight) {
			return fmt.Errorf("change %s is being delivered right now", id)
		}
		return fmt.Errorf("failed to retry: %w", err)
	}
	c.app.NotifyQueueChanged(ctx)

	c.io.Printf("✓ Change %s will be sent on the next sync\n", id)
	return nil
}

func (c *Cli) runRetryDrafts(ctx context.Context) error {
	c.app.Connect(ctx)
	report := c.app.Recovery.RetryDrafts(ctx)
	if report.Queued > 0 {
		c.app.NotifyQueueChanged(ctx)
	}

	c.io.Printf("Drafts:    %d\n", report.Attempted)
	c.io.Printf("Delivered: %d\n", report.Delivered)
	c.io.Printf("Queued:    %d\n", report.Queued)
	for _, err := range report.Errors {
		c.io.Printf("Error:     %v\n", err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d draft(s) could not be submitted", len(report.Errors))
	}
	return nil
}

func (c *Cli) runDiscard(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	if err := c.app.Recovery.Discard(ctx, id); err != nil {
		if errors.Is(err, queue.ErrAlreadyInFlight) {
			return fmt.Errorf("change %s is being delivered right now", id)
		}
		return fmt.Errorf("failed to discard: %w", err)
	}
	c.app.NotifyQueueChanged(ctx)

	c.io.Printf("✓ Change %s discarded\n", id)
	return nil
}

func (c *Cli) runDiscardAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		answer, err := c.io.ReadInput("Discard every draft and queued change? This cannot be undone [y/N]: ")
		if err != nil {
			return fmt.Errorf("failed to read answer: %w", err)
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			c.io.Println("Nothing discarded.")
			return nil
		}
	}

	report := c.app.Recovery.DiscardAll(ctx)
	c.app.NotifyQueueChanged(ctx)

	c.io.Printf("Discarded %d draft(s) and %d change(s)\n", report.Drafts, report.Mutations)
	if report.Skipped > 0 {
		c.io.Printf("Skipped %d change(s) being delivered right now\n", report.Skipped)
	}
	return nil
}
