package llm

import (
	"context"
	"fmt"
	"strings"
)

const reducePrompt = `Condense the markdown below. Keep only the parts relevant to this goal, verbatim where possible, and drop everything else. Return markdown only.

Goal: %s

Markdown:
%s`

// Reduce condenses content chunk by chunk and joins the results.
func (c *Client) Reduce(ctx context.Context, content, instruction string, maxChunkSize int) (string, error) {
	chunks := Chunk(content, maxChunkSize)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := c.generate(ctx, "reduce", generateRequest{
			Prompt: fmt.Sprintf(reducePrompt, strings.TrimSpace(instruction), chunk),
		})
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if cleaned := CleanOutput(out); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
