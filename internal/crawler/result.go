package crawler

// ResultKind discriminates ExtractionResult.
type ResultKind int

// Extraction outcomes.
const (
	ResultEmpty ResultKind = iota
	ResultRecords
	ResultRaw
)

func (k ResultKind) String() string {
	switch k {
	case ResultRecords:
		return "records"
	case ResultRaw:
		return "raw"
	default:
		return "empty"
	}
}

// ExtractionResult is the normalized output of structured extraction.
// Records holds at least one record; Empty means the page parsed but had
// no participants; Raw carries text that could not be decoded.
type ExtractionResult struct {
	kind    ResultKind
	records []UserRecord
	summary string
	raw     string
}

// RecordsResult builds a Records result. An empty list collapses to Empty.
func RecordsResult(records []UserRecord, summary string) ExtractionResult {
	if len(records) == 0 {
		return EmptyResult(summary)
	}
	return ExtractionResult{kind: ResultRecords, records: records, summary: summary}
}

// EmptyResult builds an Empty result.
func EmptyResult(summary string) ExtractionResult {
	return ExtractionResult{kind: ResultEmpty, summary: summary}
}

// RawResult builds a Raw result.
func RawResult(text string) ExtractionResult {
	return ExtractionResult{kind: ResultRaw, raw: text}
}

// Kind returns the result discriminator.
func (r ExtractionResult) Kind() ResultKind { return r.kind }

// Records returns the extracted records; nil unless Kind is ResultRecords.
func (r ExtractionResult) Records() []UserRecord { return r.records }

// Summary returns the optional page summary.
func (r ExtractionResult) Summary() string { return r.summary }

// Raw returns the undecodable text; empty unless Kind is ResultRaw.
func (r ExtractionResult) Raw() string { return r.raw }
