package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCellReportsUnsetUntilObserved(t *testing.T) {
	var c Cell
	_, ok := c.Value()
	require.False(t, ok)

	c.set(0.42)
	v, ok := c.Value()
	require.True(t, ok)
	require.Equal(t, 0.42, v)
}

func TestTailerExtractsLossFromAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trainer.log")
	require.NoError(t, os.WriteFile(path, []byte("starting up\n"), 0o644))

	cell := &Cell{}
	tailer := NewTailer(path, cell, zerolog.Nop())
	tailer.poll = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tailer.Run(ctx)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("step 10 {'loss': 1.2345, 'epoch': 1}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		v, ok := cell.Value()
		return ok && v == 1.2345
	}, 2*time.Second, 10*time.Millisecond)
}
