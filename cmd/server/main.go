// Command server runs the full continual-learning data pipeline process:
// Frame Buffer, Context Synthesizer, Context Window, Q&A Generator,
// Example Store, Training Dispatcher, Telemetry Tail, and the Ingress
// API, all in one binary.
//
// Wiring style (flag-driven config path, h2c-over-HTTP/2 serving) is
// grounded on the teacher's cmd/server/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"ctrain/api"
	"ctrain/capture"
	"ctrain/config"
	"ctrain/infer"
	"ctrain/logging"
	"ctrain/pipeline"
	"ctrain/qa"
	"ctrain/store"
	"ctrain/telemetry"
	"ctrain/train"
	"ctrain/vision"
	"ctrain/window"
)

const author = "the user"

func main() {
	configPath := flag.String("config", "", "path to config JSON file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := logging.New(*debug, nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	frameChunks := make(chan pipeline.FrameChunk, 16)
	contexts := make(chan pipeline.Context, 16)
	windows := make(chan pipeline.ContextWindow, 8)

	buffer := capture.New(cfg.FramesPerChunk, frameChunks, logging.Component(log, "FrameBuffer"))

	visionTimeout := time.Duration(cfg.VisionTimeoutSec) * time.Second
	session := vision.NewSession(cfg.VisionBaseURL, cfg.VisionModel, cfg.VisionAPIKey, visionTimeout, cfg.ConversationTurnLimit, logging.Component(log, "ContextSynthesizer"))
	go vision.RunWorker(ctx, session, author, frameChunks, contexts, logging.Component(log, "ContextSynthesizer"))

	win := window.New(cfg.ContextWindowSize)
	go window.RunWorker(ctx, win, contexts, windows)

	generator := qa.New(cfg.QABaseURL, cfg.QAAPIKey, cfg.QAModels, cfg.QAPromptFragments, cfg.QARepeats, cfg.ReasoningEffortModels, logging.Component(log, "QAGenerator"))

	exampleStore, err := store.New(cfg.StorePath(), cfg.BatchSize, logging.Component(log, "ExampleStore"))
	if err != nil {
		return fmt.Errorf("open example store: %w", err)
	}

	registry, err := train.NewRegistry(ctx, cfg.DatabaseURL, logging.Component(log, "AdapterRegistry"))
	if err != nil {
		return fmt.Errorf("open adapter registry: %w", err)
	}
	defer registry.Close()

	dispatcher := train.NewDispatcher(cfg.TrainerURL, time.Duration(cfg.TrainerTimeoutSec)*time.Second, registry, logging.Component(log, "TrainingDispatcher"))

	go runQALoop(ctx, generator, windows, exampleStore, dispatcher, cfg.BatchesBeforeGenerate, logging.Component(log, "QAGenerator"))

	lossCell := &telemetry.Cell{}
	tailer := telemetry.NewTailer(cfg.TrainerLogPath, lossCell, logging.Component(log, "TelemetryTail"))
	go tailer.Run(ctx)

	inferClient := infer.NewClient(cfg.ServingURL, cfg.ServingModel, time.Duration(cfg.ServingTimeoutSec)*time.Second)
	apiServer := api.New(buffer, exampleStore, cfg.StoreDir(), lossCell, inferClient, logging.Component(log, "IngressAPI"))

	h2s := &http2.Server{}
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h2c.NewHandler(apiServer.Handler(), h2s),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("ingress API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
