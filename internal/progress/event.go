package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StageSessionDone  Stage = "SESSION_DONE"
	StageSessionError Stage = "SESSION_ERROR"
	StageSeedStart    Stage = "SEED_START"
	StageSeedDone     Stage = "SEED_DONE"
	StagePageDone     Stage = "PAGE_DONE"
	StagePageFailed   Stage = "PAGE_FAILED"
	StagePageSkipped  Stage = "PAGE_SKIPPED"
	StageEnrichDone   Stage = "ENRICH_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single step of session progress.
type Event struct {
	SessionID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Seed is the seed URL a page or seed event belongs to.
	Seed string
	// Site scopes page events to a host label.
	Site  string
	URL   string
	Depth int
	// StatusClass groups HTTP response codes for page completions.
	StatusClass StatusClass
	Bytes       int64
	// Records counts extracted records (page/seed) or enriched records
	// (enrichment).
	Records int
	Dur     time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone, StageSessionError, StageEnrichDone:
	case StageSeedStart, StageSeedDone:
		if e.Seed == "" {
			return fmt.Errorf("%s requires seed", e.Stage)
		}
	case StagePageFailed, StagePageSkipped:
		if e.Site == "" {
			return fmt.Errorf("%s requires site", e.Stage)
		}
	case StagePageDone:
		if e.Site == "" {
			return errors.New("page done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("page done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Records < 0 {
		return errors.New("records must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
