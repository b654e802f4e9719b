// Package api implements the Ingress API: a plain net/http surface for
// uploading training examples, sampling stored batches, reading the
// latest training loss, issuing one-off inference calls against the
// currently trained adapter, and receiving frame-path notifications from
// the capture source.
//
// Grounded on relay/http_api.go's plain ServeMux + CORS middleware style
// (deliberately not connectrpc.com/connect, since this surface's contract
// is fixed plain JSON matching original_source/infra/app/main.py's FastAPI
// routes) and on server/webrtc/annotate.go's invopop/jsonschema usage,
// generalized here from response-schema generation to request-body
// validation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"ctrain/capture"
	"ctrain/pipeline"
	"ctrain/store"
	"ctrain/telemetry"
)

// InferBackend performs a one-off text completion against whatever model
// the currently-trained adapter is served under. It is deliberately a
// narrow interface so api does not need to import the concrete serving
// client directly; ctrain/infer provides the production implementation.
type InferBackend interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// Server wires every Ingress API endpoint onto a ServeMux.
type Server struct {
	buffer   *capture.FrameBuffer
	store    *store.Store
	storeDir string
	loss     *telemetry.Cell
	infer    InferBackend
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New builds a Server. storeDir is the directory holding carved
// train_batch_*.jsonl files (the Example Store's directory). infer may be
// nil, in which case /infer responds 503.
func New(buffer *capture.FrameBuffer, st *store.Store, storeDir string, loss *telemetry.Cell, infer InferBackend, log zerolog.Logger) *Server {
	return &Server{
		buffer:   buffer,
		store:    st,
		storeDir: storeDir,
		loss:     loss,
		infer:    infer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Handler returns the CORS-wrapped ServeMux implementing every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/upload/schema", s.handleUploadSchema)
	mux.HandleFunc("/get_data", s.handleGetData)
	mux.HandleFunc("/latest_loss", s.handleLatestLoss)
	mux.HandleFunc("/infer", s.handleInfer)
	mux.HandleFunc("/frames", s.handleFrames)
	mux.HandleFunc("/frames/ws", s.handleFramesWS)

	return corsMiddleware(mux)
}

var uploadSchema = jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}.
	Reflect(&pipeline.ExampleRecord{})

// uploadPayload is the boundary shape for one /upload entry: either the
// trainer-facing {prompt, completion} or the externally-produced
// {question, answer}, normalized below to the one internal ExampleRecord.
type uploadPayload struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// normalize maps {question, answer} onto {prompt, completion} when the
// latter pair is absent, so the rest of the pipeline only ever deals with
// pipeline.ExampleRecord.
func (p uploadPayload) normalize() pipeline.ExampleRecord {
	prompt, completion := p.Prompt, p.Completion
	if prompt == "" {
		prompt = p.Question
	}
	if completion == "" {
		completion = p.Answer
	}
	return pipeline.ExampleRecord{Prompt: prompt, Completion: completion}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw []uploadPayload
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	payloads := make([]pipeline.ExampleRecord, len(raw))
	for i, p := range raw {
		rec := p.normalize()
		if rec.Prompt == "" || rec.Completion == "" {
			http.Error(w, fmt.Sprintf("payload %d missing prompt/completion or question/answer", i), http.StatusBadRequest)
			return
		}
		payloads[i] = rec
	}

	total, batches, err := s.store.Append(payloads)
	if err != nil {
		s.log.Error().Err(err).Msg("append to store failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	trainFiles := make([]string, len(batches))
	carved := 0
	for i, b := range batches {
		trainFiles[i] = b.Path
		carved += b.Count
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"count":              len(payloads),
		"appended":           len(payloads),
		"pending_examples":   total - carved,
		"training_triggered": len(batches) > 0,
		"training_requests":  len(batches),
		"train_files":        trainFiles,
	})
}

// handleUploadSchema serves the JSON schema of the {prompt, completion}
// upload entry shape, so clients can validate locally before posting. The
// {question, answer} shape that /upload also accepts is not described by
// it, and /upload itself does not validate against it. Generated the same way
// server/webrtc/annotate.go generates its VLM response schema, applied
// here to a request shape instead of a model response shape.
func (s *Server) handleUploadSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, uploadSchema)
}

// handleGetData lists every carved batch file, newest-modified first, and
// returns a random sample of up to samplesPerBatch records from each as a
// bare JSON array of arrays (outer index is the batch file, inner is the
// sample), matching original_source/infra/app/main.py's /get_data exactly
// (glob, sort by mtime descending, random.sample per batch).
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	samplesPerBatch := 10
	if v := r.URL.Query().Get("samples_per_batch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "samples_per_batch must be a positive integer", http.StatusBadRequest)
			return
		}
		samplesPerBatch = n
	}

	matches, err := filepath.Glob(filepath.Join(s.storeDir, "*_train_batch_*.jsonl"))
	if err != nil {
		http.Error(w, "failed to list batches", http.StatusInternalServerError)
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: m, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	result := make([][]pipeline.ExampleRecord, 0, len(files))
	for _, f := range files {
		records, err := store.ReadBatch(f.path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", f.path).Msg("failed to read batch for sampling")
			continue
		}
		result = append(result, sampleRecords(records, samplesPerBatch))
	}

	writeJSON(w, http.StatusOK, result)
}

func sampleRecords(records []pipeline.ExampleRecord, n int) []pipeline.ExampleRecord {
	if n >= len(records) {
		return records
	}
	idx := rand.Perm(len(records))[:n]
	out := make([]pipeline.ExampleRecord, n)
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

func (s *Server) handleLatestLoss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, ok := s.loss.Value()
	if !ok {
		http.Error(w, "no loss observed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loss": v})
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.infer == nil {
		http.Error(w, "inference backend not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	output, err := s.infer.Infer(ctx, req.Prompt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": output})
}

// frameNotification is the body accepted by POST /frames, the addition
// this expansion makes to close the gap left by spec.md's silence on how
// the capture source actually informs the pipeline of a new frame.
type frameNotification struct {
	Path string `json:"path"`
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var n frameNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil || n.Path == "" {
		http.Error(w, "invalid body: expected {\"path\": \"...\"}", http.StatusBadRequest)
		return
	}
	if err := s.buffer.Submit(r.Context(), n.Path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleFramesWS upgrades to a WebSocket so a capture agent can push frame
// paths over a persistent connection instead of one HTTP round trip per
// frame, grounded on relay/cv/worker_registry.go's registration socket.
func (s *Server) handleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("frame websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var n frameNotification
		if err := conn.ReadJSON(&n); err != nil {
			return
		}
		if n.Path == "" {
			continue
		}
		if err := s.buffer.Submit(r.Context(), n.Path); err != nil {
			s.log.Warn().Err(err).Msg("frame submit from websocket failed")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// corsMiddleware mirrors relay/http_api.go's CORS handling exactly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
