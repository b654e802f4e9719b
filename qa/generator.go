// Package qa implements the Q&A Generator: given a ContextWindow, it fans
// a text-completion request out across every (model, prompt fragment)
// combination and parses each reply into QAPairs.
//
// Grounded on original_source/generate_synth_data.py's generate_synth_data
// and general_all_prompts (the M-models x P-fragments cross product, the
// per-vendor reasoning_effort heuristic, and temperature=1/top_p=0.99), and
// on the teacher's OpenAI client wiring in server/webrtc/frame_client.go
// and server/chat/message_send.go. The cross-product fan-out itself uses
// golang.org/x/sync/errgroup for bounded concurrency instead of the
// teacher's ad hoc goroutine+mutex pattern.
package qa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ctrain/pipeline"
)

// Generator issues Q&A synthesis calls against a set of models and prompt
// fragments.
type Generator struct {
	client  openai.Client
	models  []string
	fragments []string
	repeats int
	// reasoningEffort maps a model id to the reasoning_effort value to
	// send for it; a model absent from the map gets no reasoning_effort
	// field at all.
	reasoningEffort map[string]string
	log             zerolog.Logger
}

// New builds a Generator. repeats controls how many independent calls are
// made per (model, fragment) pair, matching original_source's "repeats"
// parameter used to multiply-sample generation.
func New(baseURL, apiKey string, models, fragments []string, repeats int, reasoningEffort map[string]string, log zerolog.Logger) *Generator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Generator{
		client:          openai.NewClient(opts...),
		models:          models,
		fragments:       fragments,
		repeats:         repeats,
		reasoningEffort: reasoningEffort,
		log:             log,
	}
}

// Generate fans out one call per (model, fragment, repeat) against the
// serialized window contents and returns every parsed QAPair. A failing
// call is logged and contributes nothing; it never fails the whole batch,
// so when every call fails Generate returns no pairs and a nil error.
func (g *Generator) Generate(ctx context.Context, window pipeline.ContextWindow) ([]pipeline.QAPair, error) {
	contextsStr := renderContexts(window)

	var (
		mu    sync.Mutex
		pairs []pipeline.QAPair
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(len(g.models) * len(g.fragments))

	for _, model := range g.models {
		for _, fragment := range g.fragments {
			for r := 0; r < g.repeats; r++ {
				model, fragment := model, fragment
				eg.Go(func() error {
					got, err := g.generateOne(egCtx, model, fragment, contextsStr)
					if err != nil {
						g.log.Warn().Err(err).Str("model", model).Msg("qa generation call failed, skipping")
						return nil
					}
					mu.Lock()
					pairs = append(pairs, got...)
					mu.Unlock()
					return nil
				})
			}
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("qa fan-out: %w", err)
	}
	return pairs, nil
}

func (g *Generator) generateOne(ctx context.Context, model, fragment, contextsStr string) ([]pipeline.QAPair, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPrompt, fragment)),
			openai.UserMessage(contextsStr),
		},
		MaxTokens:   openai.Int(8192),
		Temperature: openai.Float(1.0),
		TopP:        openai.Float(0.99),
	}
	if effort, ok := g.reasoningEffort[model]; ok {
		params.ReasoningEffort = openai.ReasoningEffort(effort)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(timeoutCtx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from %s", model)
	}
	return ParseQuestions(resp.Choices[0].Message.Content, model, fragment), nil
}

func renderContexts(window pipeline.ContextWindow) string {
	out := ""
	for i, c := range window.Contexts {
		if i > 0 {
			out += "\n\n"
		}
		out += c.String()
	}
	return out
}
