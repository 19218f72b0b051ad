package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// AugmentTask runs phase two over every original, or over IDs when set.
type AugmentTask struct {
	Task
	augmenter Augmenter
	IDs       []int64
}

func NewAugmentTask(augmenter Augmenter, ids ...int64) *AugmentTask {
	return &AugmentTask{
		Task:      NewTask(TaskTypeAugment),
		augmenter: augmenter,
		IDs:       ids,
	}
}

func (t *AugmentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.augmenter.Run(ctx, t.IDs...)
	if err != nil {
		return fmt.Errorf("augmentation failed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"id", t.GetID(),
		"duration", t.GetDuration(),
		"published", report.Published,
		"skipped", report.Skipped,
		"errors", report.Failed)

	return nil
}
