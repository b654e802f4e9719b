// Package window implements the Context Window: a fixed-size FIFO that
// emits a deep-copy snapshot of the last W contexts once it is full, and
// keeps emitting one snapshot per new context thereafter (sliding by one),
// matching original_source/datagen/live_processor.py's sliding-window
// logic in process_screenshot_batch.
package window

import (
	"context"

	"ctrain/pipeline"
)

// Window accumulates Context values and emits ContextWindow snapshots.
type Window struct {
	size     int
	contexts []pipeline.Context
	sequence int64
}

// New builds a Window of the given size.
func New(size int) *Window {
	return &Window{size: size}
}

// RunWorker drains in, pushes each Context into the sliding window, and
// emits a ContextWindow snapshot on out whenever the window is full.
func RunWorker(ctx context.Context, w *Window, in <-chan pipeline.Context, out chan<- pipeline.ContextWindow) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			snapshot, ready := w.Push(c)
			if !ready {
				continue
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Push appends c to the window. It returns (snapshot, true) once the
// window holds size contexts; before that it returns (zero, false).
func (w *Window) Push(c pipeline.Context) (pipeline.ContextWindow, bool) {
	w.contexts = append(w.contexts, c)
	if len(w.contexts) > w.size {
		w.contexts = w.contexts[len(w.contexts)-w.size:]
	}
	if len(w.contexts) < w.size {
		return pipeline.ContextWindow{}, false
	}

	w.sequence++
	snapshot := pipeline.ContextWindow{
		Contexts: append([]pipeline.Context(nil), w.contexts...),
		Sequence: w.sequence,
	}
	return snapshot, true
}
