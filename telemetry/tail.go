// Package telemetry implements the Telemetry Tail: it follows the
// trainer's log file the way `tail -f -n 100` would, extracts loss values
// as they appear, and publishes the latest one through a lock-free cell.
//
// Grounded on original_source/infra/app/main.py's tail_log_file: same
// "start 100 lines from the end, then follow new writes" behavior and the
// same loss-extraction regex.
package telemetry

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var lossRe = regexp.MustCompile(`\{'loss':\s*([\d.]+)`)

// Cell holds the most recently observed loss value. The zero value has no
// observation yet; Value returns (0, false) until one arrives.
type Cell struct {
	v atomic.Pointer[float64]
}

// Value returns the latest loss value and whether one has ever been
// observed.
func (c *Cell) Value() (float64, bool) {
	p := c.v.Load()
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (c *Cell) set(v float64) {
	c.v.Store(&v)
}

// Tailer follows a log file and writes every loss value it finds into a
// Cell.
type Tailer struct {
	path    string
	cell    *Cell
	poll    time.Duration
	log     zerolog.Logger
}

// NewTailer builds a Tailer for the trainer log at path.
func NewTailer(path string, cell *Cell, log zerolog.Logger) *Tailer {
	return &Tailer{path: path, cell: cell, poll: 500 * time.Millisecond, log: log}
}

// Run follows the log file until ctx is cancelled. It tolerates the file
// not existing yet and retries, matching the original's
// WORKFLOW_LOG_PATH.exists() guard.
func (t *Tailer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		f, err := os.Open(t.path)
		if err != nil {
			select {
			case <-time.After(t.poll):
				continue
			case <-ctx.Done():
				return
			}
		}
		t.followLocked(ctx, f)
		f.Close()
	}
}

// followLocked seeks to approximately the last 100 lines, then reads new
// content as it's appended, same as `tail -f -n 100`.
func (t *Tailer) followLocked(ctx context.Context, f *os.File) {
	offset := seekLastLines(f, 100)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReader(f)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			t.scan(line)
		}
		if err != nil {
			select {
			case <-time.After(t.poll):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *Tailer) scan(line string) {
	m := lossRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		t.log.Warn().Str("line", line).Err(err).Msg("failed to parse loss value")
		return
	}
	t.cell.set(v)
}

// seekLastLines returns a byte offset approximating the start of the last
// n lines of f, scanning backward in fixed-size chunks.
func seekLastLines(f *os.File, n int) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	size := info.Size()
	if size == 0 {
		return 0
	}

	const chunkSize = 8192
	var (
		offset    = size
		newlines  int
		buf       = make([]byte, chunkSize)
	)
	for offset > 0 && newlines <= n {
		readSize := int64(chunkSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize
		if _, err := f.ReadAt(buf[:readSize], offset); err != nil {
			break
		}
		for i := int(readSize) - 1; i >= 0; i-- {
			if buf[i] == '\n' {
				newlines++
				if newlines > n {
					return offset + int64(i) + 1
				}
			}
		}
	}
	return 0
}
