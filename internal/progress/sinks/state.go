package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/infofi-harvester/internal/progress"
)

// Session statuses reported by SessionView.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// SessionView is the live summary of one session.
type SessionView struct {
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SeedsStarted int       `json:"seeds_started"`
	SeedsDone    int       `json:"seeds_done"`
	PagesDone    int       `json:"pages_done"`
	PagesFailed  int       `json:"pages_failed"`
	PagesSkipped int       `json:"pages_skipped"`
	Records      int       `json:"records"`
	Enriched     int       `json:"enriched"`
	Bytes        int64     `json:"bytes"`
	LastURL      string    `json:"last_url,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// StateSink folds events into per-session views.
type StateSink struct {
	mu       sync.RWMutex
	sessions map[string]*SessionView
	latest   string
}

// NewStateSink returns an empty StateSink.
func NewStateSink() *StateSink {
	return &StateSink{sessions: make(map[string]*SessionView)}
}

// Consume applies each event to its session view.
func (s *StateSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		view, ok := s.sessions[evt.SessionID]
		if !ok {
			view = &SessionView{SessionID: evt.SessionID, Status: StatusRunning, StartedAt: evt.TS}
			s.sessions[evt.SessionID] = view
			s.latest = evt.SessionID
		}
		view.UpdatedAt = evt.TS
		switch evt.Stage {
		case progress.StageSessionStart:
			view.StartedAt = evt.TS
		case progress.StageSessionDone:
			view.Status = StatusDone
		case progress.StageSessionError:
			view.Status = StatusError
			view.Error = evt.Note
		case progress.StageSeedStart:
			view.SeedsStarted++
		case progress.StageSeedDone:
			view.SeedsDone++
		case progress.StagePageDone:
			view.PagesDone++
			view.Records += evt.Records
			view.Bytes += evt.Bytes
			view.LastURL = evt.URL
		case progress.StagePageFailed:
			view.PagesFailed++
			view.LastURL = evt.URL
		case progress.StagePageSkipped:
			view.PagesSkipped++
		case progress.StageEnrichDone:
			view.Enriched += evt.Records
		}
	}
	return nil
}

// Session returns a copy of the view for id.
func (s *StateSink) Session(id string) (SessionView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.sessions[id]
	if !ok {
		return SessionView{}, false
	}
	return *view, true
}

// Latest returns the most recently started session.
func (s *StateSink) Latest() (SessionView, bool) {
	s.mu.RLock()
	id := s.latest
	s.mu.RUnlock()
	if id == "" {
		return SessionView{}, false
	}
	return s.Session(id)
}

// Close implements the Sink interface; it performs no action.
func (s *StateSink) Close(context.Context) error {
	return nil
}
