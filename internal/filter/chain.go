// Package filter implements the admission chain applied to discovered links
// and fetched responses. Predicates are evaluated conjunctively in order and
// evaluation stops at the first rejection.
package filter

import (
	"net/url"
)

// Stage selects which predicates apply to a candidate.
type Stage int

const (
	// StageLink evaluates a discovered link before it is enqueued.
	StageLink Stage = iota
	// StageResponse evaluates a fetched response before its links are
	// considered.
	StageResponse
)

// Candidate is what predicates inspect.
type Candidate struct {
	URL         *url.URL
	ContentType string
}

// NewCandidate parses raw into a Candidate.
func NewCandidate(raw, contentType string) (Candidate, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{URL: u, ContentType: contentType}, nil
}

// Predicate is one admission rule.
type Predicate interface {
	Name() string
	Stage() Stage
	Admit(c Candidate) bool
}

// Decision is the outcome of Chain.Admit.
type Decision struct {
	Admitted   bool
	RejectedBy string
}

// Chain is an ordered conjunction of predicates.
type Chain struct {
	predicates []Predicate
}

// NewChain builds a chain, skipping nil predicates.
func NewChain(predicates ...Predicate) *Chain {
	c := &Chain{}
	for _, p := range predicates {
		if p != nil {
			c.predicates = append(c.predicates, p)
		}
	}
	return c
}

// Admit evaluates the predicates registered for stage. An empty chain
// admits everything.
func (c *Chain) Admit(stage Stage, cand Candidate) Decision {
	if c == nil {
		return Decision{Admitted: true}
	}
	for _, p := range c.predicates {
		if p.Stage() != stage {
			continue
		}
		if !p.Admit(cand) {
			return Decision{Admitted: false, RejectedBy: p.Name()}
		}
	}
	return Decision{Admitted: true}
}

// Len returns the number of predicates.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.predicates)
}
