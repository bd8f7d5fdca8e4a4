package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Template placeholders expanded for speculative URLs
const (
	PlaceholderBase   = "{base}"
	PlaceholderDomain = "{domain}"
	PlaceholderScheme = "{scheme}"
	PlaceholderID     = "{id}"
	PlaceholderID6    = "{id6}"
)

// Catalog holds the patterns and templates the heuristics work from
type Catalog struct {
	// ScriptPatterns capture a URL in group 1
	ScriptPatterns []*regexp.Regexp
	// DataAttributes are checked on every element
	DataAttributes []string

	// SpeculativeHosts restricts URL construction to these hosts and their subdomains. Empty means any host.
	SpeculativeHosts []string
	ProbeTemplates   []string
	// FallbackTemplates are probed with the shorter timeout after ProbeTemplates miss
	FallbackTemplates []string

	EncodedPattern *regexp.Regexp
	// AbsoluteAudioURL finds audio links in decoded payloads and API responses
	AbsoluteAudioURL *regexp.Regexp

	FormKeywords      []string
	ContainerKeywords []string
	APIEndpoints      []string
}

const audioExt = `(?:mp3|m4a|wav|flac)`

// DefaultCatalog returns the built-in pattern set
func DefaultCatalog() *Catalog {
	return &Catalog{
		ScriptPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)["']([^"'\s]+\.` + audioExt + `(?:\?[^"'\s]*)?)["']`),
			regexp.MustCompile(`(?i)\b(?:url|src|audioUrl|file|audio)["'\s]*:\s*["']([^"']+)["']`),
			regexp.MustCompile(`(?i)\b(?:var|let|const)\s+\w+\s*=\s*["']([^"']+)["']`),
			regexp.MustCompile(`(?i)\burl\s*=\s*["']([^"']+)["']`),
		},
		DataAttributes: []string{"data-audio", "data-src", "data-url", "data-file", "data-audio-url"},

		SpeculativeHosts: []string{"japaneseasmr.com"},
		ProbeTemplates: []string{
			"{base}/audio/{id}.mp3",
			"{base}/audio/{id}.m4a",
			"{base}/files/{id}.mp3",
			"{base}/files/{id}.m4a",
			"{base}/media/{id}.mp3",
			"{base}/media/{id}.m4a",
			"{base}/uploads/{id}.mp3",
			"{base}/uploads/{id}.m4a",
			"{base}/content/{id}.mp3",
			"{base}/content/{id}.m4a",
			"{base}/wp-content/uploads/{id}.mp3",
			"{base}/wp-content/uploads/{id}.m4a",
			"{base}/wp-content/uploads/audio/{id}.mp3",
			"{base}/wp-content/uploads/audio/{id}.m4a",
			"{base}/downloads/{id}.mp3",
			"{base}/downloads/{id}.m4a",
			"{base}/assets/audio/{id}.mp3",
			"{base}/assets/audio/{id}.m4a",
			"{base}/static/audio/{id}.mp3",
			"{base}/static/audio/{id}.m4a",
			"{base}/audio/audio_{id}.mp3",
			"{base}/audio/audio_{id}.m4a",
			"{base}/files/file_{id}.mp3",
			"{base}/files/file_{id}.m4a",
			"{base}/audio/{id6}.mp3",
			"{base}/audio/{id6}.m4a",
			"{base}/files/{id6}.mp3",
			"{base}/files/{id6}.m4a",
		},
		FallbackTemplates: []string{
			"{base}/wp-content/uploads/2023/{id}.mp3",
			"{base}/wp-content/uploads/2024/{id}.mp3",
			"{base}/wp-content/uploads/2023/12/{id}.mp3",
			"{base}/wp-content/uploads/2024/01/{id}.mp3",
			"{scheme}://cdn.{domain}/audio/{id}.mp3",
			"{scheme}://files.{domain}/{id}.mp3",
			"{scheme}://media.{domain}/{id}.mp3",
			"{base}/fileserver/{id}.mp3",
			"{base}/storage/{id}.mp3",
			"{base}/public/{id}.mp3",
			"{base}/audio/{id}.wav",
			"{base}/audio/{id}.flac",
		},

		EncodedPattern:   regexp.MustCompile(`["']([A-Za-z0-9+/]{20,}={0,2})["']`),
		AbsoluteAudioURL: regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.` + audioExt),

		FormKeywords:      []string{"download", "audio"},
		ContainerKeywords: []string{"audio", "player", "media", "download"},
		APIEndpoints: []string{
			"{base}/wp-json/wp/v2/media?search={id}",
			"{base}/api/audio/{id}",
			"{base}/api/download/{id}",
			"{base}/download.php?id={id}",
			"{base}/get_audio.php?id={id}",
		},
	}
}

// Validate checks that every pattern needed by the heuristics is present
func (c *Catalog) Validate() error {
	for i, re := range c.ScriptPatterns {
		if re == nil || re.NumSubexp() < 1 {
			return fmt.Errorf("script pattern %d must capture the URL in group 1", i)
		}
	}
	if c.EncodedPattern == nil || c.EncodedPattern.NumSubexp() < 1 {
		return fmt.Errorf("encoded pattern must capture the payload in group 1")
	}
	if c.AbsoluteAudioURL == nil {
		return fmt.Errorf("absolute audio URL pattern is required")
	}
	return nil
}

// Speculates reports whether URL construction applies to host
func (c *Catalog) Speculates(host string) bool {
	if len(c.SpeculativeHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range c.SpeculativeHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// PostID returns the last purely numeric path segment of page
func PostID(page *url.URL) (string, bool) {
	segments := strings.Split(strings.Trim(page.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return segments[i], true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Expand fills a template for page and post id
func Expand(template string, page *url.URL, id string) string {
	id6 := id
	if len(id6) < 6 {
		id6 = strings.Repeat("0", 6-len(id6)) + id6
	}
	r := strings.NewReplacer(
		PlaceholderBase, page.Scheme+"://"+page.Host,
		PlaceholderDomain, strings.TrimPrefix(page.Hostname(), "www."),
		PlaceholderScheme, page.Scheme,
		PlaceholderID6, id6,
		PlaceholderID, id,
	)
	return r.Replace(template)
}
