package vision

import (
	"context"

	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

// RunWorker drains in, synthesizes a Context per chunk, and sends each
// Context to out. It never exits on a single chunk's failure: a failed
// call is logged and skipped, matching the catch-all-and-continue stage
// loops in original_source/datagen/live_processor.py
// (process_screenshot_queue_worker).
func RunWorker(ctx context.Context, session *Session, author string, in <-chan pipeline.FrameChunk, out chan<- pipeline.Context, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-in:
			if !ok {
				return
			}
			synthesized, err := session.Describe(ctx, chunk, author)
			if err != nil {
				log.Error().Err(err).Int64("sequence", chunk.Sequence).Msg("context synthesis failed, dropping chunk")
				continue
			}
			select {
			case out <- synthesized:
			case <-ctx.Done():
				return
			}
		}
	}
}
