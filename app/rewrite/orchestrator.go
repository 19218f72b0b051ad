package rewrite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blogsmith/refresher/app/database"
)

// Orchestrator makes exactly one rewrite call per article. Retrying is
// left to the caller.
type Orchestrator struct {
	client Completer
	limits Limits
}

func NewOrchestrator(client Completer, limits Limits) *Orchestrator {
	return &Orchestrator{client: client, limits: limits}
}

func (o *Orchestrator) Rewrite(ctx context.Context, original database.Article, refs []ReferenceText) (string, error) {
	prompt := BuildPrompt(original.Content, refs, o.limits)

	slog.Debug("Rewrite prompt assembled", "slug", original.Slug, "prompt_length", len(prompt), "references", len(refs))

	content, err := o.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("rewrite failed: %w", err)
	}

	return content, nil
}
