package publisher

import (
	"context"

	"github.com/c360/sttp/measurement"
	"github.com/c360/sttp/pkg/worker"
)

// routingJob fans one published batch out to a single connection. The
// worker pool, not the caller of PublishMeasurements, owns the cost of
// matching a batch against a connection's subscription and encoding the
// result.
type routingJob struct {
	conn  *connection
	batch measurement.Batch
}

// newRoutingPool builds the bounded worker pool PublishMeasurements
// fans batches out through. workers <= 0 selects the fixed default of
// 4 workers.
func newRoutingPool(e *Engine, workers, queueSize int) *worker.Pool[routingJob] {
	if workers <= 0 {
		workers = defaultRoutingWorkers()
	}
	opts := []worker.Option[routingJob]{}
	if e.registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[routingJob](e.registry, "publisher_routing"))
	}
	return worker.NewPool(workers, queueSize, routeToConnection, opts...)
}

func routeToConnection(ctx context.Context, job routingJob) error {
	frame, ok := job.conn.encodeBatch(job.batch)
	if !ok {
		return nil
	}
	job.conn.enqueue(frame)
	return nil
}

func defaultRoutingWorkers() int {
	return 4
}
