package reducer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const leaderboardPage = `<!DOCTYPE html>
<html>
<head><title> Galxe  Leaderboard </title><script>window.x = 1;</script></head>
<body>
<div id="app">
  <nav class="top"><a href="/">Home</a> <a href="/quests">Quests</a></nav>
  <div class="content">
    <h1>Season Leaderboard</h1>
    <p>Top quest users this week are listed below with their points and ranks.</p>
    <a href="/user/alice#stats">alice profile</a>
  </div>
  <table>
    <thead><tr><th>Rank</th><th>User</th><th>Points</th></tr></thead>
    <tbody>
      <tr><td>1</td><td>alice</td><td>1,200 XP</td></tr>
      <tr><td>2</td><td>bob | b</td><td>900 XP</td></tr>
    </tbody>
  </table>
  <table role="presentation"><tr><td>layout cell</td></tr></table>
  <footer>Copyright 2024 Galxe Labs</footer>
  <a href="mailto:hi@galxe.com">mail</a>
  <a href="https://twitter.com/galxe">Twitter</a>
</div>
</body>
</html>`

func TestReduceLeaderboardPage(t *testing.T) {
	t.Parallel()

	r := New(Config{}, nil, zap.NewNop())
	out, err := r.Reduce(context.Background(), "https://galxe.com/leaderboard", leaderboardPage)
	require.NoError(t, err)

	assert.Equal(t, "Galxe Leaderboard", out.Title)
	assert.Contains(t, out.Markdown, "Season Leaderboard")
	assert.Contains(t, out.Markdown, "Top quest users")
	assert.NotContains(t, out.Markdown, "window.x")
	assert.NotContains(t, out.Markdown, "Copyright 2024")
	assert.Contains(t, out.Markdown, "layout cell")

	require.Len(t, out.Tables, 1)
	table := out.Tables[0]
	assert.Equal(t, []string{"Rank", "User", "Points"}, table.Headers)
	assert.Equal(t, [][]string{{"1", "alice", "1,200 XP"}, {"2", "bob | b", "900 XP"}}, table.Rows)
	assert.GreaterOrEqual(t, table.Score, 6)
	assert.Contains(t, out.Markdown, "| 1 | alice | 1,200 XP |")
	assert.Contains(t, out.Markdown, `| 2 | bob \| b | 900 XP |`)

	var urls []string
	for _, l := range out.Links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{
		"https://galxe.com/",
		"https://galxe.com/quests",
		"https://galxe.com/user/alice",
		"https://twitter.com/galxe",
	}, urls)
}

func TestReduceTableRowThreshold(t *testing.T) {
	t.Parallel()

	page := `<html><body><table><thead><tr><th>Rank</th><th>User</th></tr></thead>
<tbody><tr><td>1</td><td>alice</td></tr></tbody></table></body></html>`
	r := New(Config{TableScoreThreshold: 1, MinTableRows: 2}, nil, nil)
	out, err := r.Reduce(context.Background(), "https://a.com", page)
	require.NoError(t, err)
	assert.Empty(t, out.Tables, "a single data row is below the row minimum")
	assert.Contains(t, out.Markdown, "alice")
}

func TestParseTableScoring(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
<table id="data"><caption>Weekly</caption><thead><tr><th>Rank</th><th>User</th><th>XP</th></tr></thead>
<tr><td>1</td><td>a</td><td>10</td></tr><tr><td>2</td><td>b</td><td>9</td></tr><tr><td>3</td><td>c</td><td>8</td></tr></table>
<table id="layout"><tr><td>x<table><tr><td>y</td></tr></table></td></tr></table>
</body></html>`))
	require.NoError(t, err)

	data := ParseTable(doc.Find("#data"))
	assert.Equal(t, 9, data.Score)
	assert.Equal(t, "Weekly", data.Caption)
	assert.Len(t, data.Rows, 3)

	layout := ParseTable(doc.Find("#layout"))
	assert.Less(t, layout.Score, 6)
	assert.Len(t, layout.Rows, 1, "rows of nested tables belong to the nested table")
}

func TestReduceSemanticPass(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{out: "condensed users"}
	r := New(Config{Semantic: true, ChunkSize: 128, Instruction: "keep users"}, sem, nil)
	out, err := r.Reduce(context.Background(), "https://galxe.com/leaderboard", leaderboardPage)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.Markdown, "condensed users"))
	assert.Contains(t, out.Markdown, "| 1 | alice | 1,200 XP |", "tables bypass semantic reduction")
	assert.Equal(t, "keep users", sem.instruction)
	assert.Equal(t, 128, sem.chunk)
	assert.Contains(t, sem.input, "Season Leaderboard")
}

func TestReduceSemanticFailureFallsBack(t *testing.T) {
	t.Parallel()

	r := New(Config{Semantic: true}, &fakeSemantic{err: errors.New("model offline")}, nil)
	out, err := r.Reduce(context.Background(), "https://galxe.com/leaderboard", leaderboardPage)
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "Season Leaderboard")
}

func TestReduceSemanticDisabled(t *testing.T) {
	t.Parallel()

	sem := &fakeSemantic{out: "unused"}
	r := New(Config{Semantic: false}, sem, nil)
	_, err := r.Reduce(context.Background(), "https://galxe.com", "<html><body><p>hello</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, sem.input)
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	t.Parallel()

	got := RenderTable(tableOf(nil, [][]string{{"1", "a"}, {"2"}}))
	assert.Equal(t, "|  |  |\n| --- | --- |\n| 1 | a |\n| 2 |  |", got)
}

type fakeSemantic struct {
	out         string
	err         error
	input       string
	instruction string
	chunk       int
}

func (f *fakeSemantic) Reduce(_ context.Context, content, instruction string, chunk int) (string, error) {
	f.input, f.instruction, f.chunk = content, instruction, chunk
	return f.out, f.err
}
