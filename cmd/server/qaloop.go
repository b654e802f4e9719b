package main

import (
	"context"

	"github.com/rs/zerolog"

	"ctrain/pipeline"
	"ctrain/qa"
	"ctrain/store"
	"ctrain/train"
)

// runQALoop drains context windows, accumulates generated QAPairs across
// batchesBeforeGenerate windows before converting them to ExampleRecords
// and appending to the store, matching original_source's
// generation_batch_count >= batches_before_callback accumulation in
// LiveDataProcessor.generate_synthetic_data. Every carved batch is
// dispatched to training in its own background goroutine, decoupled from
// this loop, matching original_source's background_tasks.add_task
// fire-and-forget dispatch.
func runQALoop(ctx context.Context, gen *qa.Generator, windows <-chan pipeline.ContextWindow, st *store.Store, dispatcher *train.Dispatcher, batchesBeforeGenerate int, log zerolog.Logger) {
	var accumulated []pipeline.QAPair
	windowCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-windows:
			if !ok {
				return
			}

			pairs, err := gen.Generate(ctx, w)
			if err != nil {
				log.Error().Err(err).Int64("sequence", w.Sequence).Msg("qa generation failed for window, skipping")
				continue
			}
			accumulated = append(accumulated, pairs...)
			windowCount++

			if windowCount < batchesBeforeGenerate {
				continue
			}

			records := make([]pipeline.ExampleRecord, len(accumulated))
			for i, p := range accumulated {
				records[i] = pipeline.ExampleRecord{Prompt: p.Question, Completion: p.Answer}
			}
			accumulated = nil
			windowCount = 0

			_, batches, err := st.Append(records)
			if err != nil {
				log.Error().Err(err).Msg("failed to append examples to store")
				continue
			}

			for _, b := range batches {
				b := b
				go func() {
					if err := dispatcher.Dispatch(context.Background(), b); err != nil {
						log.Error().Err(err).Str("batch", b.Path).Msg("training dispatch failed")
					}
				}()
			}
		}
	}
}
