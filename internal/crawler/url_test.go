package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "scheme stripped", in: "https://Galxe.com/Quests", want: "galxe.com/quests"},
		{name: "http and https collapse", in: "http://galxe.com/quests", want: "galxe.com/quests"},
		{name: "fragment dropped", in: "https://galxe.com/quests#top", want: "galxe.com/quests"},
		{name: "query dropped", in: "https://galxe.com/quests?page=2", want: "galxe.com/quests"},
		{name: "trailing slash", in: "https://galxe.com/quests/", want: "galxe.com/quests"},
		{name: "root", in: "https://galxe.com/", want: "galxe.com"},
		{name: "default port", in: "https://galxe.com:443/a", want: "galxe.com/a"},
		{name: "no scheme", in: "galxe.com/a", want: "galxe.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DedupKey(tt.in))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	got, err := NormalizeURL("HTTPS://Example.COM:443/path?b=2&a=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path?a=1&b=2", got)

	_, err = NormalizeURL("/relative/only")
	require.Error(t, err)
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://app.galxe.com/quest/abc")
	require.NoError(t, err)

	got, ok := ResolveLink(base, "../leaderboard#x")
	require.True(t, ok)
	assert.Equal(t, "https://app.galxe.com/leaderboard", got)

	for _, href := range []string{"", "#top", "javascript:void(0)", "mailto:a@b.c", "tel:123"} {
		_, ok := ResolveLink(base, href)
		assert.False(t, ok, href)
	}
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	assert.True(t, SameSite("www.galxe.com", "galxe.com"))
	assert.True(t, SameSite("Galxe.com", "galxe.com"))
	assert.False(t, SameSite("app.galxe.com", "galxe.com"))
	assert.False(t, SameSite("", ""))
}

func TestArtifactNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "galxe.com_quests_x_1_data.json", DataArtifactName("https://galxe.com/quests?x=1"))
	assert.Equal(t, "app.layer3.xyz_leaderboard_raw.txt", RawArtifactName("https://app.layer3.xyz/leaderboard/"))
	assert.Equal(t, "galxe.com", ArtifactBaseName("https://galxe.com"))
	assert.Equal(t, ArtifactBaseName("https://galxe.com/a"), ArtifactBaseName("https://galxe.com/a"))
}
