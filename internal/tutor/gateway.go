// Package tutor turns learning intents (quiz question, explanation, hint) into
// generative-AI requests and normalizes their results and failures.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/statsquest/internal/ai"
)

const defaultModel = "gemini-2.5-flash"

// Sampling settings per intent.
const (
	quizTemperature    = 0.8
	explainTemperature = 0.7
	explainMaxTokens   = 250
	hintTemperature    = 0.5
	hintMaxTokens      = 50
)

// Config holds the gateway's collaborators.
type Config struct {
	// Model is the provider model id. Defaults to gemini-2.5-flash.
	Model string
	// APIKey resolves the credential; it is called once per operation.
	APIKey func() string
	// NewProvider builds a provider for a resolved credential. Defaults to Gemini.
	NewProvider func(apiKey string) ai.Provider
}

// Gateway issues one provider call per operation. It keeps no state between calls.
type Gateway struct {
	model       string
	apiKey      func() string
	newProvider func(apiKey string) ai.Provider
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	newProvider := cfg.NewProvider
	if newProvider == nil {
		newProvider = func(apiKey string) ai.Provider {
			return ai.NewGoogleProvider(apiKey)
		}
	}
	return &Gateway{
		model:       model,
		apiKey:      cfg.APIKey,
		newProvider: newProvider,
	}
}

// GenerateQuizQuestion asks for one beginner multiple-choice question about topicTitle.
func (g *Gateway) GenerateQuizQuestion(ctx context.Context, topicTitle string) (QuizQuestion, error) {
	prompt := fmt.Sprintf(
		"Write one new multiple-choice question about %q for a beginner statistics student. "+
			"It should be challenging but fair. Give exactly %d answer options, mark the correct one by its "+
			"0-based index, and add a short explanation of why it is correct.",
		topicTitle, OptionCount,
	)

	text, err := g.complete(ctx, OpQuizQuestion, ai.CompletionRequest{
		Messages:         []ai.Message{{Role: "user", Content: prompt}},
		Temperature:      quizTemperature,
		ResponseMIMEType: ai.MIMEJSON,
		ResponseSchema:   quizResponseSchema,
	})
	if err != nil {
		return QuizQuestion{}, err
	}

	q, err := parseQuizQuestion(text)
	if err != nil {
		return QuizQuestion{}, g.fail(ctx, OpQuizQuestion, err)
	}
	return q, nil
}

// GenerateTalkThrough explains a topic conversationally, grounded on its text.
func (g *Gateway) GenerateTalkThrough(ctx context.Context, topicTitle, topicContent string) (string, error) {
	prompt := fmt.Sprintf(
		"Explain the statistics concept %q to a complete beginner in a simple, friendly, conversational way. "+
			"Use one everyday analogy. For context, here is the textbook text: %q",
		topicTitle, topicContent,
	)

	return g.complete(ctx, OpTalkThrough, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		Temperature: explainTemperature,
		MaxTokens:   explainMaxTokens,
	})
}

// GenerateHint returns one short hint that does not reveal the answer.
func (g *Gateway) GenerateHint(ctx context.Context, question string, options []string) (string, error) {
	prompt := fmt.Sprintf(
		"Give one short hint for this multiple-choice question. Do not reveal or point to the correct answer. "+
			"Question: %q Options: %s",
		question, strings.Join(options, ", "),
	)

	return g.complete(ctx, OpHint, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		Temperature: hintTemperature,
		MaxTokens:   hintMaxTokens,
	})
}

// HealthCheck probes the provider with the current credential. Without a
// credential there is nothing to probe and the gateway reports healthy; each
// operation then fails with ErrConfiguration on its own.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	key := g.resolveKey()
	if key == "" {
		return nil
	}
	return g.newProvider(key).HealthCheck(ctx)
}

func (g *Gateway) resolveKey() string {
	if g.apiKey == nil {
		return ""
	}
	return strings.TrimSpace(g.apiKey())
}

func (g *Gateway) complete(ctx context.Context, op Op, req ai.CompletionRequest) (string, error) {
	key := g.resolveKey()
	if key == "" {
		return "", g.fail(ctx, op, ErrConfiguration)
	}

	req.Model = g.model
	resp, err := g.newProvider(key).Complete(ctx, req)
	if err != nil {
		return "", g.fail(ctx, op, fmt.Errorf("%w: %w", ErrTransport, err))
	}

	slog.Debug("ai request completed",
		"op", string(op),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"total_tokens", resp.TotalTokens(),
	)
	return resp.Content, nil
}

// fail logs the cause and wraps it in the operation's single user-facing error.
func (g *Gateway) fail(ctx context.Context, op Op, cause error) error {
	kind := Kind(cause)
	if kind == nil {
		cause = fmt.Errorf("%w: %w", ErrTransport, cause)
		kind = ErrTransport
	}
	level := slog.LevelError
	if errors.Is(kind, ErrConfiguration) {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "ai operation failed",
		"op", string(op),
		"kind", kind.Error(),
		"error", cause,
	)
	return &Error{Op: op, Err: cause}
}
