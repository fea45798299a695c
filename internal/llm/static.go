package llm

import (
	"context"
	"strings"
)

// DefaultStaticReply is used when no model is configured.
const DefaultStaticReply = "The AI assistant is not configured on this server. " +
	"You can still check your data in the portal or ask to talk to a person."

// StaticClient answers every request with the same text, streamed word by
// word. It backs local development and tests.
type StaticClient struct {
	Reply string
}

func NewStaticClient(reply string) *StaticClient {
	if reply == "" {
		reply = DefaultStaticReply
	}
	return &StaticClient{Reply: reply}
}

func (c *StaticClient) Stream(ctx context.Context, _ Request, onChunk func(chunk string) error) (string, error) {
	var full strings.Builder
	for _, chunk := range splitKeepSpaces(c.Reply) {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		full.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

func (c *StaticClient) Name() string {
	return "static"
}

// splitKeepSpaces splits after every space so joining the parts yields s.
func splitKeepSpaces(s string) []string {
	var parts []string
	for s != "" {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			parts = append(parts, s)
			break
		}
		parts = append(parts, s[:i+1])
		s = s[i+1:]
	}
	return parts
}

var _ Client = (*StaticClient)(nil)
