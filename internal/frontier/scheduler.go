// Package frontier schedules URLs for a bounded, breadth-first deep crawl.
// Nodes are released by ascending depth and, within a depth, by descending
// link score; ties keep submission order.
package frontier

import (
	"container/heap"
	"sync"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/filter"
)

// CompleteStats counts what happened to a node's discovered links.
type CompleteStats struct {
	Enqueued   int
	Rejected   int
	Duplicates int
	External   int
	TooDeep    bool
}

// Scheduler owns the frontier for one seed crawl. The visited set may be
// shared between schedulers so a URL is fetched at most once per session.
type Scheduler struct {
	mu      sync.Mutex
	scope   crawler.Scope
	chain   *filter.Chain
	visited VisitTracker
	queue   nodeQueue
	seq     uint64
	pulled  int
}

// New creates a Scheduler. A nil visited tracker gets a private one.
func New(scope crawler.Scope, chain *filter.Chain, visited VisitTracker) *Scheduler {
	if visited == nil {
		visited = NewVisited()
	}
	if scope.MaxDepth < 0 {
		scope.MaxDepth = 0
	}
	return &Scheduler{
		scope:   scope,
		chain:   chain,
		visited: visited,
	}
}

// Submit enqueues seed URLs at depth 0. Seeds bypass the filter chain but
// not deduplication. It returns how many were enqueued.
func (s *Scheduler) Submit(urls []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, raw := range urls {
		normalized, err := crawler.NormalizeURL(raw)
		if err != nil {
			continue
		}
		key := crawler.DedupKey(normalized)
		if !s.visited.MarkIfNew(key) {
			continue
		}
		s.push(&crawler.FrontierNode{
			URL:     normalized,
			Key:     key,
			Depth:   0,
			SeedURL: normalized,
			State:   crawler.NodeAdmitted,
		})
		added++
	}
	return added
}

// Next pops the next node to fetch. ok is false when the frontier is empty
// or the per-seed page cap has been reached.
func (s *Scheduler) Next() (*crawler.FrontierNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return nil, false
	}
	if s.scope.MaxPagesPerSeed > 0 && s.pulled >= s.scope.MaxPagesPerSeed {
		s.releaseQueued()
		return nil, false
	}
	item := heap.Pop(&s.queue).(*queued)
	s.pulled++
	return item.node, true
}

// Len returns the number of queued nodes.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Eligible returns the links of node that Complete would consider for
// enqueueing, ignoring deduplication. It lets callers spend scoring effort
// only on links that can be scheduled.
func (s *Scheduler) Eligible(node *crawler.FrontierNode, links []crawler.Link) []crawler.Link {
	if node == nil || node.Depth+1 > s.scope.MaxDepth {
		return nil
	}
	out := make([]crawler.Link, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		key := crawler.DedupKey(link.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if s.admitChild(node, link.URL) != "" {
			continue
		}
		out = append(out, link)
	}
	return out
}

// Complete records node's discovered links. A child is enqueued at
// depth+1 only when that depth is within MaxDepth, its host is the seed's
// host (unless external links are included), it passes the filter chain,
// and its dedup key is new.
func (s *Scheduler) Complete(node *crawler.FrontierNode, links []crawler.ScoredLink) CompleteStats {
	var stats CompleteStats
	if node == nil {
		return stats
	}
	childDepth := node.Depth + 1
	if childDepth > s.scope.MaxDepth {
		stats.TooDeep = len(links) > 0
		return stats
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range links {
		normalized, err := crawler.NormalizeURL(link.URL)
		if err != nil {
			stats.Rejected++
			continue
		}
		switch s.admitChild(node, normalized) {
		case "":
		case rejectExternal:
			stats.External++
			continue
		default:
			stats.Rejected++
			continue
		}
		key := crawler.DedupKey(normalized)
		if !s.visited.MarkIfNew(key) {
			stats.Duplicates++
			continue
		}
		s.push(&crawler.FrontierNode{
			URL:       normalized,
			Key:       key,
			Depth:     childDepth,
			ParentURL: node.URL,
			SeedURL:   node.SeedURL,
			LinkScore: link.Score,
			State:     crawler.NodeAdmitted,
		})
		stats.Enqueued++
	}
	return stats
}

const rejectExternal = "external"

// admitChild returns "" when raw may become a child of node, otherwise the
// name of the rule that rejected it.
func (s *Scheduler) admitChild(node *crawler.FrontierNode, raw string) string {
	cand, err := filter.NewCandidate(raw, "")
	if err != nil || cand.URL.Host == "" {
		return "invalid"
	}
	if !s.scope.IncludeExternal && !crawler.SameSite(cand.URL.Hostname(), crawler.Hostname(node.SeedURL)) {
		return rejectExternal
	}
	decision := s.chain.Admit(filter.StageLink, cand)
	if !decision.Admitted {
		return decision.RejectedBy
	}
	return ""
}

// releaseQueued drops every queued node and forgets its key, so a later
// seed of the session can still fetch URLs this seed will never reach.
func (s *Scheduler) releaseQueued() {
	for s.queue.Len() > 0 {
		item := heap.Pop(&s.queue).(*queued)
		s.visited.Forget(item.node.Key)
	}
}

func (s *Scheduler) push(node *crawler.FrontierNode) {
	s.seq++
	heap.Push(&s.queue, &queued{node: node, seq: s.seq})
}

type queued struct {
	node *crawler.FrontierNode
	seq  uint64
}

// nodeQueue orders by (depth asc, score desc, seq asc).
type nodeQueue []*queued

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.node.Depth != b.node.Depth {
		return a.node.Depth < b.node.Depth
	}
	if a.node.LinkScore != b.node.LinkScore {
		return a.node.LinkScore > b.node.LinkScore
	}
	return a.seq < b.seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*queued)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
