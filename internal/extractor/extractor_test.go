package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/infofi-harvester/internal/crawler"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Extract(ctx context.Context, content string, schema map[string]any, instruction string) (string, error) {
	args := m.Called(ctx, content, schema, instruction)
	return args.String(0), args.Error(1)
}

var leaderboardTable = crawler.Table{
	Headers: []string{"Rank", "User", "Points", "Level"},
	Rows: [][]string{
		{"1", "alice", "1,200 XP", "9"},
		{"2", "bob", "900 XP", ""},
		{"3", "", "100", "1"},
	},
	Score: 9,
}

func TestExtractDecodesCollaboratorOutput(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	client.On("Extract", mock.Anything, "# Board", mock.Anything, DefaultInstruction).
		Return(`{"users":[{"username":"alice"}],"page_summary":"Board"}`, nil).Once()

	e := New(Config{TableFallback: true}, client, zap.NewNop())
	res, err := e.Extract(context.Background(), "https://galxe.com/lb", crawler.ReducedContent{
		Markdown: "# Board",
		Tables:   []crawler.Table{leaderboardTable},
	})
	require.NoError(t, err)
	assert.Equal(t, crawler.ResultRecords, res.Kind())
	require.Len(t, res.Records(), 1)
	assert.Equal(t, "alice", res.Records()[0].HandleOrID)
	assert.Equal(t, "https://galxe.com/lb", res.Records()[0].SourceURL)
	client.AssertExpectations(t)
}

func TestExtractFallsBackToTablesOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(`{"users":[],"page_summary":"Board"}`, nil).Once()

	e := New(Config{TableFallback: true}, client, nil)
	res, err := e.Extract(context.Background(), "https://galxe.com/lb", crawler.ReducedContent{
		Markdown: "# Board",
		Tables:   []crawler.Table{leaderboardTable},
	})
	require.NoError(t, err)
	assert.Equal(t, crawler.ResultRecords, res.Kind())
	assert.Equal(t, "Board", res.Summary())
	require.Len(t, res.Records(), 2)
	assert.Equal(t, crawler.UserRecord{
		HandleOrID: "alice", RankRaw: "1", ScoreRaw: "1,200 XP",
		Extra: map[string]any{"Level": "9"}, SourceURL: "https://galxe.com/lb",
	}, res.Records()[0])
}

func TestExtractRawIsNotReplacedByTables(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("not json at all", nil).Once()

	e := New(Config{TableFallback: true}, client, nil)
	res, err := e.Extract(context.Background(), "https://galxe.com/lb", crawler.ReducedContent{
		Markdown: "# Board",
		Tables:   []crawler.Table{leaderboardTable},
	})
	require.NoError(t, err)
	assert.Equal(t, crawler.ResultRaw, res.Kind())
	assert.Equal(t, "not json at all", res.Raw())
}

func TestExtractCollaboratorError(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("partial", errors.New("timeout")).Once()

	e := New(Config{}, client, nil)
	res, err := e.Extract(context.Background(), "https://galxe.com/lb", crawler.ReducedContent{Markdown: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrExtraction)
	var extractErr *crawler.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "https://galxe.com/lb", extractErr.URL)
	assert.Equal(t, "partial", extractErr.Raw)
	assert.Equal(t, crawler.ResultRaw, res.Kind())
}

func TestExtractWithoutClientUsesTables(t *testing.T) {
	t.Parallel()

	e := New(Config{TableFallback: true}, nil, nil)
	res, err := e.Extract(context.Background(), "u", crawler.ReducedContent{Tables: []crawler.Table{leaderboardTable}})
	require.NoError(t, err)
	assert.Len(t, res.Records(), 2)

	e = New(Config{}, nil, nil)
	res, err = e.Extract(context.Background(), "u", crawler.ReducedContent{Tables: []crawler.Table{leaderboardTable}})
	require.NoError(t, err)
	assert.Equal(t, crawler.ResultEmpty, res.Kind())
}

func TestTableRecordsRequiresRecognizedHeaders(t *testing.T) {
	t.Parallel()

	assert.Empty(t, TableRecords([]crawler.Table{{Headers: []string{"Date", "Price"}, Rows: [][]string{{"a", "b"}}}}))
	assert.Empty(t, TableRecords([]crawler.Table{{Headers: []string{"User", "Joined"}, Rows: [][]string{{"a", "b"}}}}))
	assert.Empty(t, TableRecords([]crawler.Table{{Rows: [][]string{{"alice", "10"}}}}))
}

func TestSchemaShape(t *testing.T) {
	t.Parallel()

	s := Schema()
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "users")
	assert.Contains(t, props, "page_summary")
}
