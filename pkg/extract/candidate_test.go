package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsFirstOccurrenceOrder(t *testing.T) {
	in := []Candidate{
		{URL: "https://a/1.mp3", Format: FormatMP3},
		{URL: "https://a/2.m4a", Format: FormatM4A},
		{URL: "https://a/1.mp3", Format: FormatAudio},
		{URL: "https://a/3.wav", Format: FormatWAV},
		{URL: "https://a/2.m4a", Format: FormatM4A},
	}

	assert.Equal(t, []Candidate{
		{URL: "https://a/1.mp3", Format: FormatMP3},
		{URL: "https://a/2.m4a", Format: FormatM4A},
		{URL: "https://a/3.wav", Format: FormatWAV},
	}, Dedupe(in))
	assert.Empty(t, Dedupe(nil))
}

func TestFilter(t *testing.T) {
	in := []Candidate{
		{URL: "https://a/1.mp3", Format: FormatMP3},
		{URL: "https://a/2.m4a", Format: FormatM4A},
	}

	assert.Equal(t, in, Filter(in, nil))
	assert.Equal(t, in[:1], Filter(in, []string{" MP3 "}))
	assert.Empty(t, Filter(in, []string{"flac"}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		mime string
		want Format
	}{
		{"https://a/x.MP3", "", FormatMP3},
		{"https://a/x.m4a?sig=1", "audio/mpeg", FormatM4A},
		{"https://a/stream", "audio/mpeg; codecs=mp3", FormatMP3},
		{"https://a/stream", "audio/x-wav", FormatWAV},
		{"https://a/stream", "audio/x-flac", FormatFLAC},
		{"https://a/stream", "audio/ogg", FormatAudio},
		{"https://a/stream", "", FormatAudio},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.url, tt.mime), tt.url+" "+tt.mime)
	}
}

func TestCandidateExtension(t *testing.T) {
	assert.Equal(t, "mp3", Candidate{URL: "https://a/x", Format: FormatMP3}.Extension())
	assert.Equal(t, "ogg", Candidate{URL: "https://a/x.OGG?y=1", Format: FormatAudio}.Extension())
	assert.Equal(t, "audio", Candidate{URL: "https://a/dl/42", Format: FormatAudio}.Extension())
	assert.Equal(t, "audio", Candidate{URL: "https://a/play.php?f=1", Format: FormatAudio}.Extension())
	assert.Equal(t, "audio", Candidate{URL: "https://a/stream.aspx", Format: ""}.Extension())
	assert.Equal(t, "opus", Candidate{URL: "https://a/v.opus", Format: FormatAudio}.Extension())
}

func TestPostIDAndExpand(t *testing.T) {
	u, err := url.Parse("https://www.japaneseasmr.com/2024/05/123/")
	require.NoError(t, err)

	id, ok := PostID(u)
	require.True(t, ok)
	assert.Equal(t, "123", id)

	assert.Equal(t, "https://www.japaneseasmr.com/audio/000123.mp3", Expand("{base}/audio/{id6}.mp3", u, id))
	assert.Equal(t, "https://cdn.japaneseasmr.com/audio/123.mp3", Expand("{scheme}://cdn.{domain}/audio/{id}.mp3", u, id))

	u, _ = url.Parse("https://host.example/posts/slug-name")
	_, ok = PostID(u)
	assert.False(t, ok)
}

func TestCatalogSpeculates(t *testing.T) {
	c := DefaultCatalog()
	assert.True(t, c.Speculates("japaneseasmr.com"))
	assert.True(t, c.Speculates("www.JapaneseASMR.com"))
	assert.False(t, c.Speculates("notjapaneseasmr.com"))

	c.SpeculativeHosts = nil
	assert.True(t, c.Speculates("anything.example"))
	assert.NoError(t, c.Validate())
}
