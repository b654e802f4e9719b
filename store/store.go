// Package store implements the Example Store: an append-only NDJSON log
// of training examples plus the carve operation that cuts full-size
// batches off it for the Training Dispatcher.
//
// The append and carve algorithms are grounded byte-for-byte on
// original_source/infra/app/main.py's _append_examples and
// _prepare_training_batches: carve the *newest* batchSize*K lines into K
// batch files (oldest-to-newest order within each file), and keep the
// *oldest* remainder in the store. Durable write discipline (write a temp
// file, fsync, rename over the original) is grounded on the directory-
// bootstrap style of relay/database.go and the flush-serialization
// discipline of the pack's event appender.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

// Store is a durable, single-writer append log of ExampleRecords.
type Store struct {
	mu        sync.Mutex
	path      string
	stem      string
	batchSize int
	log       zerolog.Logger
}

// New opens (creating if necessary) the store at path. stem is derived from
// path's base filename (extension stripped) and prefixes every carved batch
// file, e.g. "examples_train_batch_<ts>_<NNN>.jsonl" for a store at
// ".../examples.jsonl".
func New(path string, batchSize int, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	f.Close()

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return &Store{path: path, stem: stem, batchSize: batchSize, log: log}, nil
}

// Append writes records to the store and returns the new total line
// count. It also returns the K full batches, if any, that Append cut
// immediately as a side effect of crossing the batch-size threshold,
// matching the original's "append, then maybe prepare batches" sequencing
// inside a single request.
func (s *Store) Append(records []pipeline.ExampleRecord) (total int, batches []pipeline.BatchFile, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.countLocked()
	if err != nil {
		return 0, nil, fmt.Errorf("count existing lines: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, nil, fmt.Errorf("open store for append: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			f.Close()
			return 0, nil, fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			return 0, nil, fmt.Errorf("write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, nil, fmt.Errorf("flush store: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, nil, fmt.Errorf("sync store: %w", err)
	}
	f.Close()

	total = current + len(records)

	if total >= s.batchSize {
		batches, err = s.carveLocked(total)
		if err != nil {
			return total, nil, fmt.Errorf("carve batches: %w", err)
		}
	}

	return total, batches, nil
}

// Pending returns the current number of lines held in the store without
// carving anything.
func (s *Store) Pending() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *Store) countLocked() (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		count++
	}
	return count, sc.Err()
}

// carveLocked implements the "carve newest, keep oldest" algorithm:
// numBatches = total / batchSize (integer division); the *tail*
// numBatches*batchSize lines are cut into numBatches batch files in
// arrival order; the *head* remainder lines are rewritten back as the new
// store contents. The caller must hold s.mu.
func (s *Store) carveLocked(total int) ([]pipeline.BatchFile, error) {
	lines, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}

	numBatches := total / s.batchSize
	if numBatches == 0 {
		return nil, nil
	}
	exportStart := total - numBatches*s.batchSize
	exportRegion := lines[exportStart:]
	remainder := lines[:exportStart]

	timestampBase := time.Now().UTC().Format("20060102_150405.000000")
	dir := filepath.Dir(s.path)

	var batches []pipeline.BatchFile
	for i := 0; i < numBatches; i++ {
		batchLines := exportRegion[i*s.batchSize : (i+1)*s.batchSize]
		name := fmt.Sprintf("%s_train_batch_%s_%03d.jsonl", s.stem, timestampBase, i+1)
		path := filepath.Join(dir, name)
		if err := writeFileAtomic(path, batchLines); err != nil {
			return nil, fmt.Errorf("write batch %s: %w", name, err)
		}
		batches = append(batches, pipeline.BatchFile{
			Path:      path,
			Count:     len(batchLines),
			CreatedAt: time.Now(),
		})
		s.log.Info().Str("path", path).Int("count", len(batchLines)).Msg("carved training batch")
	}

	if err := writeFileAtomic(s.path, remainder); err != nil {
		return nil, fmt.Errorf("rewrite store remainder: %w", err)
	}

	return batches, nil
}

func (s *Store) readAllLocked() ([][]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		line := make([]byte, len(sc.Bytes()))
		copy(line, sc.Bytes())
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// writeFileAtomic writes lines (newline-joined) to a temp file in the same
// directory, fsyncs it, then renames it over path.
func writeFileAtomic(path string, lines [][]byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadBatch loads every ExampleRecord from a batch file, for the Ingress
// API's sampling endpoint.
func ReadBatch(path string) ([]pipeline.ExampleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []pipeline.ExampleRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var r pipeline.ExampleRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("parse batch record: %w", err)
		}
		records = append(records, r)
	}
	return records, sc.Err()
}
