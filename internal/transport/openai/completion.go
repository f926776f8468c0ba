package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/autorag/internal/domain"
	"github.com/kailas-cloud/autorag/internal/metrics"
	"github.com/kailas-cloud/autorag/internal/usecase/rag"
)

// DefaultCompletionModel is used when no model is configured.
const DefaultCompletionModel = "gpt-4o-mini"

// Completer is a chat completion provider using the OpenAI-compatible API.
type Completer struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// NewCompleter creates a chat completion provider. Dimensions and Provider are ignored.
func NewCompleter(cfg *Config) *Completer {
	model := cfg.Model
	if model == "" {
		model = DefaultCompletionModel
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Completer{
		client: newClient(cfg.APIKey, cfg.BaseURL),
		model:  model,
		user:   cfg.User,
		logger: l,
	}
}

// Complete returns one generated reply.
func (c *Completer) Complete(ctx context.Context, instruction string, msgs []domain.Message) (rag.Completion, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.request(instruction, msgs, false))
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "batch", "error").Inc()
		return rag.Completion{}, parseAPIError("completion", err, domain.ErrCompletionFailed)
	}
	metrics.CompletionRequestsTotal.WithLabelValues(c.model, "batch", "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.model, "batch").Observe(time.Since(start).Seconds())
	metrics.CompletionTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.CompletionTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	out := rag.Completion{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

// Stream opens a streamed completion. The caller must Close the returned stream.
func (c *Completer) Stream(ctx context.Context, instruction string, msgs []domain.Message) (rag.TextStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(instruction, msgs, true))
	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.model, "stream", "error").Inc()
		return nil, parseAPIError("completion stream", err, domain.ErrCompletionFailed)
	}
	return &textStream{stream: stream, model: c.model, start: time.Now()}, nil
}

// HealthCheck verifies API availability.
func (c *Completer) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, c.client)
}

func (c *Completer) request(instruction string, msgs []domain.Message, stream bool) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if instruction != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instruction})
	}
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: out,
		Stream:   stream,
		User:     c.user,
	}
}

// chatRole maps developer turns to system; not every compatible server knows the developer role.
func chatRole(r domain.Role) string {
	switch r {
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case domain.RoleSystem, domain.RoleDeveloper:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// textStream adapts the SSE chunk stream to rag.TextStream.
type textStream struct {
	stream *openai.ChatCompletionStream
	model  string
	start  time.Time
	done   bool
}

func (s *textStream) Recv() (string, error) {
	for {
		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.finish("success")
			return "", io.EOF
		}
		if err != nil {
			s.finish("error")
			return "", parseAPIError("completion stream", err, domain.ErrCompletionFailed)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
}

func (s *textStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close completion stream: %w", err)
	}
	return nil
}

func (s *textStream) finish(status string) {
	if s.done {
		return
	}
	s.done = true
	metrics.CompletionRequestsTotal.WithLabelValues(s.model, "stream", status).Inc()
	metrics.CompletionRequestDuration.WithLabelValues(s.model, "stream").Observe(time.Since(s.start).Seconds())
}
