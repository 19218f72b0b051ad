package tasks

import (
	"context"

	"github.com/blogsmith/refresher/app/pipeline"
)

// TaskSchedulerInterface is what the API and main need from the scheduler.
//
//	scheduler := NewScheduler(DefaultQueueSize, DefaultTaskTimeout)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewCrawlTask(ingester, 5, 15))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	QueueLength() int
}

type Ingester interface {
	Run(ctx context.Context, target, startPage int) pipeline.IngestReport
}

type Augmenter interface {
	Run(ctx context.Context, ids ...int64) (pipeline.Report, error)
}
