package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// TaskFunc is a unit of work. It receives the context it was submitted with.
type TaskFunc func(ctx context.Context) error

// Task is a queued unit of work
type Task struct {
	ID      string
	Fn      TaskFunc
	Ctx     context.Context
	Created time.Time
	done    func(error)
}

var taskCounter atomic.Uint64

func newTask(ctx context.Context, fn TaskFunc, done func(error)) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Task{
		ID:      fmt.Sprintf("task-%d", taskCounter.Add(1)),
		Fn:      fn,
		Ctx:     ctx,
		Created: time.Now(),
		done:    done,
	}
}
