package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ctrain/pipeline"
)

func ctx(content string) pipeline.Context {
	return pipeline.Context{Time: time.Now(), Author: "the user", Content: content}
}

func TestWindowEmitsOnlyOnceFull(t *testing.T) {
	w := New(3)

	_, ready := w.Push(ctx("one"))
	require.False(t, ready)
	_, ready = w.Push(ctx("two"))
	require.False(t, ready)

	snap, ready := w.Push(ctx("three"))
	require.True(t, ready)
	require.Len(t, snap.Contexts, 3)
	require.Equal(t, int64(1), snap.Sequence)
}

func TestWindowSlidesByOneAfterFull(t *testing.T) {
	w := New(2)

	w.Push(ctx("one"))
	w.Push(ctx("two"))

	snap, ready := w.Push(ctx("three"))
	require.True(t, ready)
	require.Equal(t, []string{"two", "three"}, []string{snap.Contexts[0].Content, snap.Contexts[1].Content})
}

func TestWindowSnapshotIsDeepCopy(t *testing.T) {
	w := New(1)
	snap, ready := w.Push(ctx("one"))
	require.True(t, ready)

	w.Push(ctx("two"))
	require.Equal(t, "one", snap.Contexts[0].Content, "earlier snapshot must not mutate after later pushes")
}
