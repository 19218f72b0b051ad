package tasks

import (
	"context"
	"log/slog"
)

// CrawlTask runs phase one: crawl, extract and store originals.
type CrawlTask struct {
	Task
	ingester  Ingester
	target    int
	startPage int
}

func NewCrawlTask(ingester Ingester, target, startPage int) *CrawlTask {
	return &CrawlTask{
		Task:      NewTask(TaskTypeCrawl),
		ingester:  ingester,
		target:    target,
		startPage: startPage,
	}
}

func (t *CrawlTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report := t.ingester.Run(ctx, t.target, t.startPage)

	slog.Info("Task completed",
		"type", t.GetType(),
		"id", t.GetID(),
		"duration", t.GetDuration(),
		"candidates", report.Candidates,
		"stored", report.Stored,
		"errors", report.Failed)

	return nil
}
