package capture

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ctrain/pipeline"
)

func TestSubmitCutsChunkAtThreshold(t *testing.T) {
	out := make(chan pipeline.FrameChunk, 1)
	buf := New(3, out, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, buf.Submit(ctx, "a.jpg"))
	require.NoError(t, buf.Submit(ctx, "b.jpg"))
	require.Equal(t, 2, buf.Pending())

	require.NoError(t, buf.Submit(ctx, "c.jpg"))
	require.Equal(t, 0, buf.Pending())

	select {
	case chunk := <-out:
		require.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, chunk.Paths)
		require.Equal(t, int64(1), chunk.Sequence)
	default:
		t.Fatal("expected a chunk to have been cut")
	}
}

func TestSubmitBlocksOnFullOutChannel(t *testing.T) {
	out := make(chan pipeline.FrameChunk) // unbuffered: send blocks until received
	buf := New(1, out, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-cancelled context: Submit must return ctx.Err() instead of hanging

	err := buf.Submit(ctx, "a.jpg")
	require.ErrorIs(t, err, context.Canceled)
}
