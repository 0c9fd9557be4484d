package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Extract runs schema-constrained extraction over content and returns the
// model's raw text. Content longer than the chunk size is extracted per
// chunk; the per-chunk JSON blocks are returned as one JSON array.
func (c *Client) Extract(ctx context.Context, content string, schema map[string]any, instruction string) (string, error) {
	chunks := Chunk(content, c.cfg.ChunkSize)
	if len(chunks) == 0 {
		return "", nil
	}
	schemaText, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	var format any = "json"
	if len(schema) > 0 {
		format = schema
	}

	responses := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := buildExtractPrompt(instruction, string(schemaText), chunk)
		out, err := c.generate(ctx, "extract", generateRequest{Prompt: prompt, Format: format})
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		responses = append(responses, out)
	}
	return joinJSONBlocks(responses), nil
}

func buildExtractPrompt(instruction, schema, content string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nRespond with JSON only, matching this schema:\n")
	b.WriteString(schema)
	b.WriteString("\n\nPage content:\n")
	b.WriteString(content)
	return b.String()
}
