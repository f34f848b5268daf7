package workerpool

import (
	"errors"
	"fmt"
)

var (
	ErrPoolClosed     = errors.New("worker pool is closed")
	ErrInvalidConfig  = errors.New("invalid pool configuration")
	ErrForcedShutdown = errors.New("forced shutdown due to timeout")
)

// TaskError wraps a failed or panicked task
type TaskError struct {
	TaskID string
	Err    error
	Stack  string // set when the task panicked
}

func (e *TaskError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("task %s panicked: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
