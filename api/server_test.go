package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ctrain/capture"
	"ctrain/pipeline"
	"ctrain/store"
	"ctrain/telemetry"
)

func newTestServer(t *testing.T) (*Server, *capture.FrameBuffer) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "examples.jsonl"), 10, zerolog.Nop())
	require.NoError(t, err)

	chunks := make(chan pipeline.FrameChunk, 8)
	buf := capture.New(3, chunks, zerolog.Nop())

	return New(buf, st, dir, &telemetry.Cell{}, nil, zerolog.Nop()), buf
}

func TestUploadBelowThresholdReportsPendingNoTraining(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal([]pipeline.ExampleRecord{
		{Prompt: "q1", Completion: "a1"},
		{Prompt: "q2", Completion: "a2"},
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, false, resp["training_triggered"])
	require.Equal(t, float64(2), resp["pending_examples"])
}

func TestUploadAcceptsQuestionAnswerShape(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal([]map[string]string{
		{"question": "what happened?", "answer": "the user opened a file"},
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, float64(1), resp["pending_examples"])
}

func TestUploadRejectsMissingFields(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal([]map[string]string{{"prompt": "only-prompt"}})
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestLossNotFoundUntilObserved(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/latest_loss", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFramesEndpointFeedsBuffer(t *testing.T) {
	srv, buf := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"path": "/tmp/frame-1.jpg"})
	req := httptest.NewRequest(http.MethodPost, "/frames", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, buf.Pending())
}

func TestGetDataReturnsBareArrayOfArrays(t *testing.T) {
	srv, _ := newTestServer(t)

	records := make([]pipeline.ExampleRecord, 10)
	for i := range records {
		records[i] = pipeline.ExampleRecord{Prompt: "q", Completion: "a"}
	}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var uploadResp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploadResp))
	require.Equal(t, true, uploadResp["training_triggered"])

	getReq := httptest.NewRequest(http.MethodGet, "/get_data", nil)
	getW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getW, getReq)
	require.Equal(t, http.StatusOK, getW.Code)

	var batches [][]pipeline.ExampleRecord
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &batches))
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 10)
}

func TestInferWithoutBackendReturns503(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"prompt": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/infer", bytes.NewReader(body))
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
