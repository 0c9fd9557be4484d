package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the harvest error taxonomy.
var (
	ErrAdmissionRejected = errors.New("admission rejected")
	ErrFetch             = errors.New("fetch failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrEnrichment        = errors.New("enrichment failed")
	ErrConfiguration     = errors.New("configuration warning")

	ErrNoSeeds         = errors.New("no seed urls configured")
	ErrProfileNotFound = errors.New("profile not found")
	ErrRateLimited     = errors.New("rate limited by collaborator")
	ErrNoCredentials   = errors.New("no credentials configured")
)

// FetchError reports a navigation failure for URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ExtractionError reports that structured extraction failed for URL.
// Raw holds whatever text the collaborator returned.
type ExtractionError struct {
	URL string
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is matches ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// EnrichmentError reports a failed profile lookup for Handle.
type EnrichmentError struct {
	Handle string
	Err    error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich @%s: %v", e.Handle, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// Is matches ErrEnrichment.
func (e *EnrichmentError) Is(target error) bool { return target == ErrEnrichment }
