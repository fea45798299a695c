package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIClient generates replies with Google's Gemini API.
type GenAIClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGenAIClient(ctx context.Context, apiKey, model string, temperature float32, maxOutputTokens int) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   int32(maxOutputTokens),
	}, nil
}

func (c *GenAIClient) Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (string, error) {
	contents := toContents(req.Messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var full strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, cfg) {
		if err != nil {
			return full.String(), fmt.Errorf("GenAI stream failed: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

// toContents maps the conversation onto Gemini roles. Anything that is not
// an assistant turn is sent as the user.
func toContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (c *GenAIClient) Name() string {
	return fmt.Sprintf("genai:%s", c.model)
}

var _ Client = (*GenAIClient)(nil)
