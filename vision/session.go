// Package vision implements the Context Synthesizer: it holds a rolling
// multi-turn conversation with a vision-capable model, feeding it each
// incoming frame chunk and turning the reply into a Context.
//
// Grounded on the OpenAI vision-call shape in the teacher's
// server/webrtc/frame_client.go (image content parts as base64 data URLs)
// and the rolling conversation/turn-eviction behavior of
// original_source/models.py's ConversationManager and
// original_source/datagen/live_processor.py's LiveDataProcessor.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"

	"ctrain/pipeline"
)

const (
	// firstTurnPrompt is sent for the very first frame chunk, when the
	// session has no prior turns to build on.
	firstTurnPrompt = `You are watching a sequence of screenshots captured from one person's
computer while they worked. Write a thorough, concrete description of
everything visible: which applications are open, what the person appears
to be doing, any text or UI state worth noting, and how the screen changes
across the frames. Prefer specific detail over vague summary. Refer to the
person by name rather than "I" or "you".`

	// continuationPrompt is sent on every later turn, asking the model to
	// describe only what changed since the previous turn rather than
	// repeating itself.
	continuationPrompt = `Here is the next batch of screenshots, continuing directly from the
previous one. Do not repeat anything already described in earlier turns.
Describe only the new actions, changes, or state that has appeared since
then, with the same level of concrete detail as before.`

	// placeholderPrompt replaces a prior user turn's image content once a
	// response has been produced for it, so the rolling history does not
	// keep paying to resend already-described images.
	placeholderPrompt = "Please describe the new actions taken since the previous turn."
)

// Session holds one rolling conversation with the vision model.
type Session struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	turnLimit int

	messages []openai.ChatCompletionMessageParamUnion
	log      zerolog.Logger
}

// NewSession builds a Session against an OpenAI-compatible vision
// endpoint. turnLimit is the chatbot-turn count (user+assistant pairs)
// at or above which the oldest turn is evicted after a response.
func NewSession(baseURL, model, apiKey string, timeout time.Duration, turnLimit int, log zerolog.Logger) *Session {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Session{
		client:    openai.NewClient(opts...),
		model:     model,
		timeout:   timeout,
		turnLimit: turnLimit,
		log:       log,
	}
}

// Describe sends chunk's frames to the vision model and returns the
// resulting Context. author is attached to the returned Context for the
// downstream Q&A prompt's header line.
func (s *Session) Describe(ctx context.Context, chunk pipeline.FrameChunk, author string) (pipeline.Context, error) {
	isFirstTurn := len(s.messages) == 0
	prompt := continuationPrompt
	if isFirstTurn {
		prompt = firstTurnPrompt
	}

	content := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt)}
	for _, path := range chunk.Paths {
		dataURL, err := toDataURL(path)
		if err != nil {
			return pipeline.Context{}, fmt.Errorf("encode frame %s: %w", path, err)
		}
		content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
	}

	s.messages = append(s.messages, openai.UserMessage(content))

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Chat.Completions.New(timeoutCtx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model),
		Messages: s.messages,
	})
	if err != nil {
		// Roll back the user message we just appended, so a failed turn
		// does not permanently poison the rolling history.
		s.messages = s.messages[:len(s.messages)-1]
		return pipeline.Context{}, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		s.messages = s.messages[:len(s.messages)-1]
		return pipeline.Context{}, fmt.Errorf("vision completion: empty choices")
	}
	description := resp.Choices[0].Message.Content

	s.messages = append(s.messages, openai.AssistantMessage(description))

	// Replace the just-sent user turn's image content with a compact
	// placeholder, so future requests do not keep re-uploading old frames.
	s.messages[len(s.messages)-2] = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(placeholderPrompt),
	})

	if s.turnCount() >= s.turnLimit {
		s.popEarliestTurn()
	}

	avgTime := averageModTime(chunk.Paths)
	return pipeline.Context{
		Time:    avgTime,
		Author:  author,
		Content: description,
	}, nil
}

// turnCount returns the number of complete user/assistant pairs held.
func (s *Session) turnCount() int {
	var users, assistants int
	for _, m := range s.messages {
		if m.OfUser != nil {
			users++
		}
		if m.OfAssistant != nil {
			assistants++
		}
	}
	if users < assistants {
		return users
	}
	return assistants
}

// popEarliestTurn drops the oldest user/assistant pair from history.
func (s *Session) popEarliestTurn() {
	if len(s.messages) >= 2 {
		s.messages = s.messages[2:]
	}
}

func toDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := "image/jpeg"
	switch filepath.Ext(path) {
	case ".png":
		mime = "image/png"
	case ".webp":
		mime = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}

func averageModTime(paths []string) time.Time {
	if len(paths) == 0 {
		return time.Now()
	}
	var sum int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			sum += info.ModTime().Unix()
		} else {
			sum += time.Now().Unix()
		}
	}
	return time.Unix(sum/int64(len(paths)), 0)
}
