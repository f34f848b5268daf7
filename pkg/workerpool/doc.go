// Package workerpool runs bounded concurrent work for the bulk readers of
// the record store.
//
// A WorkerPool owns a fixed set of goroutines fed by a buffered queue.
// Submission applies backpressure when the queue is full, tasks honour
// their context, and panics are recovered into TaskError values.
//
//	pool, err := workerpool.NewWorkerPool(workerpool.Config{
//	    Workers:   4,
//	    QueueSize: 16,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Stop()
//
//	pages, err := workerpool.Map(ctx, pool, []int{1, 2, 3},
//	    func(ctx context.Context, page int) (*store.Page, error) {
//	        return s.ListClients(ctx, store.Query{Page: page, Limit: 200})
//	    })
//
// The retry subpackage wraps idempotent calls with exponential backoff.
package workerpool
