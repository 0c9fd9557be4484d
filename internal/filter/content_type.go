package filter

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ContentTypeFilter admits responses whose media type is in the allowed
// set. It gates whether a fetched node's links become eligible.
type ContentTypeFilter struct {
	allowed map[string]struct{}
}

// NewContentTypeFilter returns nil when allowed is empty.
func NewContentTypeFilter(allowed []string) *ContentTypeFilter {
	f := &ContentTypeFilter{allowed: make(map[string]struct{})}
	for _, raw := range allowed {
		if mt := MediaType(raw); mt != "" {
			f.allowed[mt] = struct{}{}
		}
	}
	if len(f.allowed) == 0 {
		return nil
	}
	return f
}

// Name implements Predicate.
func (*ContentTypeFilter) Name() string { return "content_type" }

// Stage implements Predicate.
func (*ContentTypeFilter) Stage() Stage { return StageResponse }

// Admit implements Predicate.
func (f *ContentTypeFilter) Admit(c Candidate) bool {
	if f == nil {
		return true
	}
	_, ok := f.allowed[MediaType(c.ContentType)]
	return ok
}

// MediaType returns the lower-cased media type of a Content-Type value
// without parameters.
func MediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// ResolveContentType returns declared when set, otherwise the type sniffed
// from body.
func ResolveContentType(declared string, body []byte) string {
	if strings.TrimSpace(declared) != "" {
		return declared
	}
	if len(body) == 0 {
		return ""
	}
	return mimetype.Detect(body).String()
}
