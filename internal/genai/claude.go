package genai

import (
	"context"
	"errors"
	"io"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

const defaultClaudeModel = "claude-3-5-haiku-latest"

// ClaudeProvider generates chat completions through the Anthropic API.
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

func NewClaudeProvider(apiKey, model string) *ClaudeProvider {
	if model == "" {
		model = defaultClaudeModel
	}
	client := anthropic.NewClient(anthropicopt.WithAPIKey(apiKey))
	return &ClaudeProvider{
		client: &client,
		model:  model,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

func (p *ClaudeProvider) StreamChat(ctx context.Context, systemPrompt, userMessage string) (Stream, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.messageParams(systemPrompt, userMessage))
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &claudeStream{stream: stream}, nil
}

func (p *ClaudeProvider) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := p.client.Messages.New(ctx, p.messageParams(systemPrompt, userMessage))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, content := range resp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text content returned")
	}
	return b.String(), nil
}

func (p *ClaudeProvider) messageParams(systemPrompt, userMessage string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxCompletionTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	return params
}

type claudeStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// Recv surfaces text deltas and skips the structural stream events.
func (s *claudeStream) Recv() (string, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			return text.Text, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *claudeStream) Close() error {
	return s.stream.Close()
}

var (
	_ Provider = (*ClaudeProvider)(nil)
	_ Stream   = (*claudeStream)(nil)
)
