// Package uuid provides session ID generation.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 strings, so session IDs sort by
// start time.
type Generator struct {
	prefix string
}

// New creates a Generator. A non-empty prefix is joined to each ID with "-".
func New(prefix string) *Generator {
	return &Generator{prefix: strings.TrimSpace(prefix)}
}

// NewID returns a UUIDv7 string.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "-" + id.String(), nil
}
