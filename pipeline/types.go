// Package pipeline holds the data types shared by every stage of the
// continual-learning pipeline, so that stage packages (capture, vision,
// window, qa, store, train, telemetry) can depend on a common vocabulary
// without importing each other.
package pipeline

import (
	"fmt"
	"time"
)

// FrameChunk is a batch of captured screen images handed from the Frame
// Buffer to the Context Synthesizer.
type FrameChunk struct {
	Paths     []string
	Sequence  int64
	CreatedAt time.Time
}

// Context is one turn of synthesized narrative describing a FrameChunk.
type Context struct {
	Time    time.Time
	Author  string
	Content string
}

// String renders the canonical header-plus-body form used both as the
// model-facing context text and as the Q&A generator's input serialization.
func (c Context) String() string {
	day := ordinalDay(c.Time.Day())
	header := fmt.Sprintf("All of this work was done on %s %s %s by %s:",
		c.Time.Format("Monday January"), day, c.Time.Format("3:04PM"), c.Author)
	return header + "\n\n" + c.Content
}

func ordinalDay(d int) string {
	suffix := "th"
	switch d % 100 {
	case 11, 12, 13:
	default:
		switch d % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", d, suffix)
}

// ContextWindow is an immutable snapshot of W consecutive Context values,
// emitted by the Context Window once it fills.
type ContextWindow struct {
	Contexts  []Context
	Sequence  int64
	CreatedAt time.Time
}

// QAPair is one synthesized question/answer produced by a single
// (model, prompt fragment) combination against a ContextWindow.
type QAPair struct {
	Question string
	Answer   string
	Model    string
	Fragment string
}

// ExampleRecord is the durable training-example shape written to the
// Example Store, distinct from QAPair's field names by convention: the
// trainer expects {"prompt", "completion"}.
type ExampleRecord struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// BatchFile describes one carved, closed training batch on disk.
type BatchFile struct {
	Path      string
	Count     int
	CreatedAt time.Time
}

// Adapter describes one fine-tuned adapter artifact produced by the
// trainer, and is persisted in the Adapter Registry's history.
type Adapter struct {
	Name      string
	Path      string
	BatchPath string
	CreatedAt time.Time
}

// LossSample is one observed training-loss data point read off the
// trainer's log stream.
type LossSample struct {
	Value     float64
	ObservedAt time.Time
}
