package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")
)

// CleanOutput strips reasoning blocks and a surrounding markdown code fence
// from a model response.
func CleanOutput(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// Chunk splits text into pieces of at most maxWords words, preferring
// paragraph boundaries.
func Chunk(text string, maxWords int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxWords <= 0 {
		return []string{text}
	}
	var (
		chunks  []string
		current []string
		words   int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current, words = nil, 0
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fields := strings.Fields(para)
		if len(fields) > maxWords {
			flush()
			for start := 0; start < len(fields); start += maxWords {
				end := start + maxWords
				if end > len(fields) {
					end = len(fields)
				}
				chunks = append(chunks, strings.Join(fields[start:end], " "))
			}
			continue
		}
		if words+len(fields) > maxWords {
			flush()
		}
		current = append(current, para)
		words += len(fields)
	}
	flush()
	return chunks
}

// joinJSONBlocks merges per-chunk responses into one JSON array when every
// non-empty response is valid JSON; otherwise the cleaned responses are
// concatenated as text.
func joinJSONBlocks(responses []string) string {
	if len(responses) == 1 {
		return responses[0]
	}
	var blocks []json.RawMessage
	allJSON := true
	for _, r := range responses {
		cleaned := CleanOutput(r)
		if cleaned == "" {
			continue
		}
		if !json.Valid([]byte(cleaned)) {
			allJSON = false
			break
		}
		blocks = append(blocks, json.RawMessage(cleaned))
	}
	if allJSON {
		if blocks == nil {
			blocks = []json.RawMessage{}
		}
		out, err := json.Marshal(blocks)
		if err == nil {
			return string(out)
		}
	}
	return strings.Join(responses, "\n\n")
}
