package extractor

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
	"github.com/JakeFAU/infofi-harvester/internal/llm"
)

// Field aliases, in lookup order. The first key is the canonical name.
var (
	handleKeys  = []string{"username", "handle", "user", "user_id", "id", "name"}
	scoreKeys   = []string{"points_or_score", "score", "points", "xp"}
	rankKeys    = []string{"leaderboard_rank", "rank", "position"}
	socialKeys  = []string{"twitter_handle", "x_handle", "twitter", "social_handle"}
	walletKeys  = []string{"wallet_address", "wallet", "address"}
	extraKeys   = []string{"additional_info", "extra"}
	listKeys    = []string{"users", "records", "participants", "leaderboard"}
	summaryKeys = []string{"page_summary", "summary"}

	knownKeys = keySet(handleKeys, scoreKeys, rankKeys, socialKeys, walletKeys, extraKeys,
		[]string{"source_url"})
)

// Decode turns collaborator output into an ExtractionResult. It accepts a
// bare list of records, a list of per-chunk wrapper objects, a wrapper
// object with a record list and summary, or a single record object.
// Anything else is returned as Raw.
func Decode(raw string) crawler.ExtractionResult {
	cleaned := llm.CleanOutput(raw)
	if cleaned == "" {
		return crawler.EmptyResult("")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return crawler.RawResult(raw)
	}

	switch doc := v.(type) {
	case []any:
		return decodeList(doc, raw)
	case map[string]any:
		if records, summary, ok := decodeWrapper(doc); ok {
			return crawler.RecordsResult(records, summary)
		}
		// A lone object needs at least one record field; unrelated objects
		// stay Raw.
		if rec, ok := decodeRecord(doc); ok && (hasKnownField(rec) || hasAnyKey(doc, extraKeys)) {
			return crawler.RecordsResult([]crawler.UserRecord{rec}, "")
		}
		return crawler.RawResult(raw)
	default:
		return crawler.RawResult(raw)
	}
}

func decodeList(items []any, raw string) crawler.ExtractionResult {
	var (
		records   []crawler.UserRecord
		summaries []string
	)
	for _, item := range items {
		if inner, ok := item.([]any); ok {
			// Per-chunk bare lists joined into one outer list.
			sub := decodeList(inner, raw)
			if sub.Kind() == crawler.ResultRaw {
				return sub
			}
			records = append(records, sub.Records()...)
			if sub.Summary() != "" {
				summaries = append(summaries, sub.Summary())
			}
			continue
		}
		obj, ok := item.(map[string]any)
		if !ok {
			return crawler.RawResult(raw)
		}
		if recs, summary, ok := decodeWrapper(obj); ok {
			records = append(records, recs...)
			if summary != "" {
				summaries = append(summaries, summary)
			}
			continue
		}
		if isChunkStatus(obj) {
			continue
		}
		rec, ok := decodeRecord(obj)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return crawler.RecordsResult(records, strings.Join(summaries, " "))
}

// decodeWrapper recognizes {"users": [...], "page_summary": "..."}.
func decodeWrapper(obj map[string]any) ([]crawler.UserRecord, string, bool) {
	var list []any
	found := false
	for _, k := range listKeys {
		if v, ok := obj[k]; ok {
			found = true
			list, _ = v.([]any)
			break
		}
	}
	if !found {
		return nil, "", false
	}
	var records []crawler.UserRecord
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			if r, ok := decodeRecord(rec); ok {
				records = append(records, r)
			}
		}
	}
	return records, stringField(obj, summaryKeys), true
}

// isChunkStatus matches per-chunk bookkeeping objects such as
// {"index": 0, "error": false}.
func isChunkStatus(obj map[string]any) bool {
	for k := range obj {
		switch k {
		case "index", "error", "tags", "content":
		default:
			return false
		}
	}
	return true
}

func decodeRecord(obj map[string]any) (crawler.UserRecord, bool) {
	rec := crawler.UserRecord{
		HandleOrID:    stringField(obj, handleKeys),
		ScoreRaw:      stringField(obj, scoreKeys),
		RankRaw:       stringField(obj, rankKeys),
		SocialHandle:  stringField(obj, socialKeys),
		WalletAddress: stringField(obj, walletKeys),
		SourceURL:     stringField(obj, []string{"source_url"}),
	}
	for _, k := range extraKeys {
		if m, ok := obj[k].(map[string]any); ok {
			rec.Extra = normalizeMap(m)
			break
		}
	}
	for k, v := range obj {
		if _, known := knownKeys[k]; known {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = map[string]any{}
		}
		if _, exists := rec.Extra[k]; !exists {
			rec.Extra[k] = normalizeValue(v)
		}
	}
	if !hasKnownField(rec) && !hasExtraValue(rec.Extra) {
		return crawler.UserRecord{}, false
	}
	return rec, true
}

// hasKnownField reports whether any named record field is set. Every field
// is optional, so a score-only row is still a record.
func hasKnownField(rec crawler.UserRecord) bool {
	return rec.HandleOrID != "" || rec.ScoreRaw != "" || rec.RankRaw != "" ||
		rec.SocialHandle != "" || rec.WalletAddress != "" || rec.SourceURL != ""
}

func hasExtraValue(extra map[string]any) bool {
	for _, v := range extra {
		if !isBlank(v) {
			return true
		}
	}
	return false
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func stringField(obj map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

// normalizeValue converts json.Number into float64 so records compare and
// re-encode like ordinary JSON values.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func keySet(groups ...[]string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, g := range groups {
		for _, k := range g {
			out[k] = struct{}{}
		}
	}
	return out
}
