package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ctrain/pipeline"
)

func records(n int) []pipeline.ExampleRecord {
	out := make([]pipeline.ExampleRecord, n)
	for i := range out {
		out[i] = pipeline.ExampleRecord{
			Prompt:     fmt.Sprintf("prompt-%d", i),
			Completion: fmt.Sprintf("completion-%d", i),
		}
	}
	return out
}

func TestAppendBelowThresholdCarvesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "examples.jsonl"), 10, zerolog.Nop())
	require.NoError(t, err)

	total, batches, err := s.Append(records(5))
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Empty(t, batches)
}

func TestCarveKeepsOldestAndCutsNewestInOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "examples.jsonl"), 10, zerolog.Nop())
	require.NoError(t, err)

	// 25 records with batchSize 10: numBatches=2, exportStart=5.
	// Oldest 5 stay in the store; the newest 20 are carved into 2 batches
	// of 10, each batch preserving arrival order.
	total, batches, err := s.Append(records(25))
	require.NoError(t, err)
	require.Equal(t, 25, total)
	require.Len(t, batches, 2)

	first, err := ReadBatch(batches[0].Path)
	require.NoError(t, err)
	require.Len(t, first, 10)
	require.Equal(t, "prompt-5", first[0].Prompt)
	require.Equal(t, "prompt-14", first[9].Prompt)

	second, err := ReadBatch(batches[1].Path)
	require.NoError(t, err)
	require.Len(t, second, 10)
	require.Equal(t, "prompt-15", second[0].Prompt)
	require.Equal(t, "prompt-24", second[9].Prompt)

	remaining, err := s.Pending()
	require.NoError(t, err)
	require.Equal(t, 5, remaining)
}

func TestAppendAcrossMultipleCallsAccumulates(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "examples.jsonl"), 10, zerolog.Nop())
	require.NoError(t, err)

	total, batches, err := s.Append(records(4))
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Empty(t, batches)

	total, batches, err = s.Append(records(3))
	require.NoError(t, err)
	require.Equal(t, 7, total)
	require.Empty(t, batches)

	total, batches, err = s.Append(records(3))
	require.NoError(t, err)
	require.Equal(t, 10, total)
	require.Len(t, batches, 1)
}
