// ipc.go - bounded UI-to-core command queue (spec.md §5 concurrency model)

package main

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// CoreCommand is a unit of work the UI/debugger thread hands to the single
// goroutine that owns the Machine (spec.md §5: the core is not safe for
// concurrent mutation, so all UI-originated requests funnel through here).
type CoreCommand func(m *Machine)

// CommandQueue bounds how many in-flight commands the UI may enqueue before
// it must block, preventing an unthrottled UI from starving the emulation
// goroutine's own scheduling.
type CommandQueue struct {
	sem   *semaphore.Weighted
	queue chan CoreCommand
}

// NewCommandQueue creates a queue that accepts at most capacity outstanding
// commands.
func NewCommandQueue(capacity int64) *CommandQueue {
	return &CommandQueue{
		sem:   semaphore.NewWeighted(capacity),
		queue: make(chan CoreCommand, capacity),
	}
}

// Submit blocks until a slot is free (or ctx is cancelled) and enqueues cmd.
func (q *CommandQueue) Submit(ctx context.Context, cmd CoreCommand) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	q.queue <- cmd
	return nil
}

// Drain runs every currently queued command against m, releasing its slot
// as each one completes. Called once per frame by the emulation goroutine
// between scheduler ticks.
func (q *CommandQueue) Drain(m *Machine) {
	for {
		select {
		case cmd := <-q.queue:
			cmd(m)
			q.sem.Release(1)
		default:
			return
		}
	}
}
