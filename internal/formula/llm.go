package formula

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultMaxTokens      = 2048
)

// LLMCaller is the vision collaborator: one system prompt, one photo, one JSON
// reply. Errors are transport failures only.
type LLMCaller interface {
	GenerateJSON(ctx context.Context, systemPrompt string, image Image) (string, error)
	ModelName() string
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCaller struct {
	messages  AnthropicMessager
	model     string
	maxTokens int64
}

func NewAnthropicCaller(apiKey, model string, maxTokens int64) (*AnthropicCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key not configured")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey), model: model, maxTokens: maxTokens}, nil
}

func (a *AnthropicCaller) ModelName() string { return a.model }

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, systemPrompt string, image Image) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64(image.MediaType, base64.StdEncoding.EncodeToString(image.Data)),
			anthropic.NewTextBlock(UserInstruction),
		)},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// NewCaller builds the collaborator for a configured provider.
func NewCaller(ctx context.Context, provider, apiKey, model string, maxTokens int64) (LLMCaller, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicCaller(apiKey, model, maxTokens)
	case ProviderGemini:
		return NewGeminiCaller(ctx, apiKey, model, maxTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// TransportClass buckets a collaborator failure for logs and metrics.
func TransportClass(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return "rate_limit"
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, " 40"):
		return "client"
	default:
		return "server"
	}
}
