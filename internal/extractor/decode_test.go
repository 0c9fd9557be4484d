package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

func TestDecodeShapes(t *testing.T) {
	t.Parallel()

	alice := crawler.UserRecord{HandleOrID: "alice", ScoreRaw: "1,200 XP", RankRaw: "1"}
	tests := []struct {
		name        string
		raw         string
		wantKind    crawler.ResultKind
		wantRecords []crawler.UserRecord
		wantSummary string
	}{
		{
			name:        "bare list",
			raw:         `[{"username":"alice","points_or_score":"1,200 XP","leaderboard_rank":"1"}]`,
			wantKind:    crawler.ResultRecords,
			wantRecords: []crawler.UserRecord{alice},
		},
		{
			name:        "wrapped object",
			raw:         `{"users":[{"username":"alice","points_or_score":"1,200 XP","leaderboard_rank":"1"}],"page_summary":"Leaderboard"}`,
			wantKind:    crawler.ResultRecords,
			wantRecords: []crawler.UserRecord{alice},
			wantSummary: "Leaderboard",
		},
		{
			name:        "wrapped empty",
			raw:         `{"users":[],"page_summary":"Quest page"}`,
			wantKind:    crawler.ResultEmpty,
			wantSummary: "Quest page",
		},
		{
			name:     "bare empty list",
			raw:      `[]`,
			wantKind: crawler.ResultEmpty,
		},
		{
			name:     "non json",
			raw:      "I could not find any users on this page.",
			wantKind: crawler.ResultRaw,
		},
		{
			name:     "json scalar",
			raw:      `"hello"`,
			wantKind: crawler.ResultRaw,
		},
		{
			name:     "unrelated object",
			raw:      `{"title":"About us"}`,
			wantKind: crawler.ResultRaw,
		},
		{
			name:        "single record object",
			raw:         `{"handle":"alice","score":"1,200 XP","rank":1}`,
			wantKind:    crawler.ResultRecords,
			wantRecords: []crawler.UserRecord{alice},
		},
		{
			name: "chunk wrappers flatten",
			raw: `[{"index":0,"error":false,"users":[{"username":"alice","points_or_score":"1,200 XP","leaderboard_rank":"1"}],"page_summary":"Top"},
			       {"index":1,"error":false,"users":[{"username":"bob"}],"page_summary":"Board"},
			       {"index":2,"error":true,"tags":["error"],"content":"timeout"}]`,
			wantKind:    crawler.ResultRecords,
			wantRecords: []crawler.UserRecord{alice, {HandleOrID: "bob"}},
			wantSummary: "Top Board",
		},
		{
			name:        "fenced with reasoning",
			raw:         "<think>looking</think>\n```json\n{\"users\":[{\"username\":\"alice\",\"points\":\"1,200 XP\",\"position\":\"1\"}]}\n```",
			wantKind:    crawler.ResultRecords,
			wantRecords: []crawler.UserRecord{alice},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Decode(tt.raw)
			assert.Equal(t, tt.wantKind, got.Kind())
			assert.Equal(t, tt.wantSummary, got.Summary())
			if diff := cmp.Diff(tt.wantRecords, got.Records()); diff != "" {
				t.Fatalf("records mismatch (-want +got):\n%s", diff)
			}
			if tt.wantKind == crawler.ResultRaw {
				assert.Equal(t, tt.raw, got.Raw())
			}
		})
	}
}

func TestDecodeEmptyOutput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, crawler.ResultEmpty, Decode("  ").Kind())
	assert.Equal(t, crawler.ResultEmpty, Decode("<think>nothing</think>").Kind())
}

func TestDecodeFlexibleFields(t *testing.T) {
	t.Parallel()

	raw := `{"users":[{
		"user": "carol",
		"xp": 4500,
		"rank": 7,
		"x_handle": "@carol_x",
		"wallet": "0xabc",
		"additional_info": {"level": 12, "quests": "40"},
		"referrals": 3,
		"verified": true
	}]}`
	got := Decode(raw)
	want := []crawler.UserRecord{{
		HandleOrID:    "carol",
		ScoreRaw:      "4500",
		RankRaw:       "7",
		SocialHandle:  "@carol_x",
		WalletAddress: "0xabc",
		Extra: map[string]any{
			"level":     float64(12),
			"quests":    "40",
			"referrals": float64(3),
			"verified":  true,
		},
	}}
	if diff := cmp.Diff(want, got.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeKeepsRecordsWithoutIdentity(t *testing.T) {
	t.Parallel()

	got := Decode(`{"users":[{"points_or_score":"1,234 XP","leaderboard_rank":"1"},{"username":"dave","points_or_score":"5"},{"level":null}],"page_summary":"Top"}`)
	assert.Equal(t, crawler.ResultRecords, got.Kind())
	assert.Equal(t, []crawler.UserRecord{
		{ScoreRaw: "1,234 XP", RankRaw: "1"},
		{HandleOrID: "dave", ScoreRaw: "5"},
	}, got.Records())
}

func TestDecodeNestedChunkLists(t *testing.T) {
	t.Parallel()

	got := Decode(`[[{"username":"a"}],[{"username":"b","score":3}],[]]`)
	assert.Equal(t, crawler.ResultRecords, got.Kind())
	assert.Equal(t, []crawler.UserRecord{{HandleOrID: "a"}, {HandleOrID: "b", ScoreRaw: "3"}}, got.Records())

	assert.Equal(t, crawler.ResultRaw, Decode(`[[{"username":"a"}],["oops"]]`).Kind())
}
