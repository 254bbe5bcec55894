package formula

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiModels is the slice of *genai.Models the caller uses.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiCaller struct {
	models    GeminiModels
	model     string
	maxTokens int32
}

func NewGeminiCaller(ctx context.Context, apiKey, model string, maxTokens int64) (*GeminiCaller, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiCaller(client.Models, model, maxTokens), nil
}

func newGeminiCaller(models GeminiModels, model string, maxTokens int64) *GeminiCaller {
	if model == "" {
		model = DefaultGeminiModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &GeminiCaller{models: models, model: model, maxTokens: int32(maxTokens)}
}

func (g *GeminiCaller) ModelName() string { return g.model }

func (g *GeminiCaller) GenerateJSON(ctx context.Context, systemPrompt string, image Image) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image.Data, image.MediaType),
			genai.NewPartFromText(UserInstruction),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
		MaxOutputTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
