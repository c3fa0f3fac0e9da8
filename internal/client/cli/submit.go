package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/data"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

func (c *Cli) runSubmit(ctx context.Context, kind, entity, payload, draftKey string) error {
	sub := data.Submission{
		Kind:         models.MutationKind(kind),
		TargetEntity: entity,
		DraftKey:     draftKey,
	}
	if payload != "" {
		sub.Payload = textOrJSON(payload)
	}

	c.app.Connect(ctx)
	result, err := c.app.Data.Submit(ctx, sub)
	if err != nil {
		return fmt.Errorf("failed to submit: %w", err)
	}

	switch {
	case result.Delivered:
		c.io.Printf("✓ Saved %s (version %d)\n", entity, result.Version)
	case result.Queued:
		c.app.NotifyQueueChanged(ctx)
		c.io.Printf("Queued %s as %s\n", entity, result.MutationID)
		if result.LastError != "" {
			c.io.Printf("Last attempt failed (%s): %s\n", result.Failure, result.LastError)
		}
	}
	return nil
}

func (c *Cli) runDraftSave(ctx context.Context, key, content string) error {
	if key == "" {
		return fmt.Errorf("missing draft key")
	}
	if !c.app.Drafts.SaveDraft(ctx, key, textOrJSON(content)) {
		return fmt.Errorf("draft %s was not saved", key)
	}
	c.io.Printf("✓ Draft %s saved\n", key)
	return nil
}

func (c *Cli) runDraftDelete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("missing draft key")
	}
	c.app.Drafts.DeleteDraft(ctx, key)
	c.io.Printf("✓ Draft %s deleted\n", key)
	return nil
}

// textOrJSON keeps valid JSON as is and wraps anything else as {"text": ...}.
func textOrJSON(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	raw, _ := json.Marshal(map[string]string{"text": s})
	return raw
}
