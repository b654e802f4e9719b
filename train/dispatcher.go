package train

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

// trainRequest is the body sent to the trainer's /train-and-update
// endpoint, grounded on original_source/infra/workflow.py.
type trainRequest struct {
	DataPath string `json:"data_path"`
}

// trainResponse is the trainer's reply shape.
type trainResponse struct {
	Status              string `json:"status"`
	AdapterName         string `json:"adapter_name"`
	NewAdapterPath      string `json:"new_adapter_path"`
	PreviousAdapterPath string `json:"previous_adapter_path"`
}

// Dispatcher fires batch files at the trainer and records the resulting
// adapter in the Registry. Dispatch calls are serialized client-side
// (stricter than the original's fire-and-forget concurrent requests.post
// calls; see SPEC_FULL.md §9 Open Question 2).
type Dispatcher struct {
	mu         sync.Mutex
	trainerURL string
	httpClient *http.Client
	registry   *Registry
	log        zerolog.Logger
}

// NewDispatcher builds a Dispatcher targeting trainerURL (e.g.
// "http://localhost:8001/train-and-update").
func NewDispatcher(trainerURL string, timeout time.Duration, registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		trainerURL: trainerURL,
		httpClient: &http.Client{Timeout: timeout},
		registry:   registry,
		log:        log,
	}
}

// Dispatch sends one batch file to the trainer and updates the registry
// with the returned adapter. It is fire-and-forget from the caller's
// perspective: callers should run it in a background goroutine decoupled
// from any HTTP request scope, matching original_source's
// background_tasks.add_task(_trigger_training, ...).
func (d *Dispatcher) Dispatch(ctx context.Context, batch pipeline.BatchFile) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	body, err := json.Marshal(trainRequest{DataPath: batch.Path})
	if err != nil {
		return fmt.Errorf("marshal train request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.trainerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build train request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("train request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("trainer returned status %d", resp.StatusCode)
	}

	var tr trainResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decode train response: %w", err)
	}

	adapter := pipeline.Adapter{
		Name:      tr.AdapterName,
		Path:      tr.NewAdapterPath,
		BatchPath: batch.Path,
		CreatedAt: time.Now(),
	}
	if err := d.registry.Record(ctx, adapter); err != nil {
		return fmt.Errorf("record adapter: %w", err)
	}

	d.log.Info().Str("batch", batch.Path).Str("adapter", adapter.Name).Msg("training dispatch complete")
	return nil
}
