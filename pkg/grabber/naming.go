package grabber

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"audiograb/pkg/extract"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxTitleRunes = 100
	defaultTitle  = "audio"
	// fallbackTitle names files when the page could not be parsed at all
	fallbackTitle = "audio_download"
)

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace   = regexp.MustCompile(`\s+`)
	embedded     = regexp.MustCompile(`(?i)https?://`)
)

// CleanURL trims a pasted URL, keeps the last full URL when several were pasted together and defaults the scheme to https
func CleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL")
	}

	if locs := embedded.FindAllStringIndex(raw, -1); len(locs) > 1 {
		raw = raw[locs[len(locs)-1][0]:]
	}
	if !embedded.MatchString(raw) || embedded.FindStringIndex(raw)[0] != 0 {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return u.String(), nil
}

// Title derives a filesystem-safe base name from the page <title>, falling back to the last path segment
func Title(content []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return fallbackTitle
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		if u, err := url.Parse(pageURL); err == nil {
			title = path.Base(strings.TrimRight(u.Path, "/"))
			if title == "." || title == "/" {
				title = ""
			}
		}
	}

	if title = Sanitize(title); title == "" {
		return defaultTitle
	}
	return title
}

// Sanitize strips characters filesystems reject, collapses whitespace and truncates at a word boundary
func Sanitize(title string) string {
	title = illegalChars.ReplaceAllString(title, "")
	title = strings.TrimSpace(whitespace.ReplaceAllString(title, " "))

	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	cut := string([]rune(title)[:maxTitleRunes])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// FileName composes "<title>[_<index>].<ext>". index is 0-based and only shown when total > 1.
func FileName(title string, index, total int, c extract.Candidate) string {
	if total > 1 {
		return fmt.Sprintf("%s_%d.%s", title, index+1, c.Extension())
	}
	return fmt.Sprintf("%s.%s", title, c.Extension())
}
