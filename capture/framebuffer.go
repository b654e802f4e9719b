// Package capture holds the Frame Buffer: the first pipeline stage, which
// accumulates frame paths submitted by the capture source until it has
// enough for one chunk, then hands the chunk to the Context Synthesizer.
//
// Grounded on the rolling per-service buffer in
// server/webrtc/batch_manager.go's AddFrame, generalized from a
// map-keyed-by-service buffer down to the single buffer this system needs
// (multi-tenant service fan-out is not part of this system's scope).
package capture

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

// FrameBuffer accumulates submitted frame paths and cuts a FrameChunk once
// framesPerChunk have arrived.
type FrameBuffer struct {
	mu             sync.Mutex
	framesPerChunk int
	buffer         []string
	sequence       int64

	out chan<- pipeline.FrameChunk
	log zerolog.Logger
}

// New builds a FrameBuffer that hands cut chunks to out. out should be a
// bounded channel owned by the caller; Submit blocks on a full out channel
// rather than dropping frames.
func New(framesPerChunk int, out chan<- pipeline.FrameChunk, log zerolog.Logger) *FrameBuffer {
	return &FrameBuffer{
		framesPerChunk: framesPerChunk,
		out:            out,
		log:            log,
	}
}

// Submit records one new frame path. When the buffer reaches
// framesPerChunk, it cuts a FrameChunk and blocks sending it to the next
// stage, which is the pipeline's sole backpressure point back to whatever
// is calling Submit.
func (b *FrameBuffer) Submit(ctx context.Context, path string) error {
	b.mu.Lock()
	b.buffer = append(b.buffer, path)

	var chunk *pipeline.FrameChunk
	if len(b.buffer) == b.framesPerChunk {
		b.sequence++
		c := pipeline.FrameChunk{
			Paths:    append([]string(nil), b.buffer...),
			Sequence: b.sequence,
		}
		chunk = &c
		b.buffer = b.buffer[:0]
	}
	b.mu.Unlock()

	if chunk == nil {
		return nil
	}

	b.log.Debug().Int("frames", len(chunk.Paths)).Int64("sequence", chunk.Sequence).Msg("cutting frame chunk")

	select {
	case b.out <- *chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of frames currently buffered, for
// diagnostics/tests.
func (b *FrameBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
