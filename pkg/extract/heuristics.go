package extract

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// structuredMedia reads <source> children of media elements and <audio src>
func structuredMedia(x *extraction) error {
	x.doc.Find("video source, audio source, audio[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		mime := strings.ToLower(s.AttrOr("type", ""))
		if src == "" || isBlob(src) {
			return
		}
		if s.Is("source") && s.ParentsFiltered("video").Length() > 0 {
			if !strings.HasPrefix(mime, "audio") && !HasAudioExtension(src) {
				return
			}
		}
		if u, ok := x.resolve(src, false); ok {
			x.emit(u, Classify(src, mime))
		}
	})
	return nil
}

// scriptMining runs the script pattern battery over every inline script
func scriptMining(x *extraction) error {
	for _, body := range x.scripts {
		for _, re := range x.catalog.ScriptPatterns {
			for _, m := range re.FindAllStringSubmatch(body, -1) {
				raw := unescapeScript(m[1])
				if !HasAudioExtension(raw) {
					continue
				}
				if u, ok := x.resolve(raw, true); ok {
					x.emit(u, Classify(u, ""))
				}
			}
		}
	}
	return nil
}

func dataAttributes(x *extraction) error {
	for _, attr := range x.catalog.DataAttributes {
		x.doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			raw := strings.TrimSpace(s.AttrOr(attr, ""))
			if !HasAudioExtension(raw) {
				return
			}
			if u, ok := x.resolve(raw, false); ok {
				x.emit(u, Classify(u, ""))
			}
		})
	}
	return nil
}

// speculative guesses file locations from the post id and accepts the first that exists
func speculative(x *extraction) error {
	if !x.hasID || !x.catalog.Speculates(x.page.Hostname()) {
		return nil
	}

	groups := []struct {
		templates []string
		timeout   time.Duration
	}{
		{x.catalog.ProbeTemplates, x.opts.ProbeTimeout},
		{x.catalog.FallbackTemplates, x.opts.FallbackTimeout},
	}
	for _, g := range groups {
		for _, tmpl := range g.templates {
			target := Expand(tmpl, x.page, x.postID)
			if x.seen[target] {
				continue
			}
			x.seen[target] = true

			ok, err := x.probe(target, g.timeout)
			if err != nil {
				return err
			}
			if ok {
				x.emit(target, Classify(target, ""))
				return nil
			}
		}
	}
	return nil
}

// encodedPayloads decodes base64 literals in scripts and probes any audio URL inside
func encodedPayloads(x *extraction) error {
	for _, body := range x.scripts {
		for _, m := range x.catalog.EncodedPattern.FindAllStringSubmatch(body, -1) {
			decoded, ok := decodeBase64(m[1])
			if !ok {
				continue
			}
			for _, hit := range x.catalog.AbsoluteAudioURL.FindAllString(decoded, -1) {
				if x.seen[hit] {
					continue
				}
				x.seen[hit] = true

				ok, err := x.probe(hit, 0)
				if err != nil {
					return err
				}
				if ok {
					x.emit(hit, Classify(hit, ""))
				}
			}
		}
	}
	return nil
}

// siteStructure inspects download forms, player containers and hidden inputs, then asks known API endpoints
func siteStructure(x *extraction) error {
	var values []string

	x.doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
		action := s.AttrOr("action", "")
		if containsAny(strings.ToLower(action), x.catalog.FormKeywords) {
			values = append(values, action)
		}
	})
	x.doc.Find("div[class], section[class], article[class]").Each(func(_ int, s *goquery.Selection) {
		if !containsAny(strings.ToLower(s.AttrOr("class", "")), x.catalog.ContainerKeywords) {
			return
		}
		for _, attr := range s.Nodes[0].Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "data-") {
				values = append(values, attr.Val)
			}
		}
	})
	x.doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		values = append(values, s.AttrOr("value", ""))
	})

	for _, v := range values {
		v = strings.TrimSpace(v)
		if !HasAudioExtension(v) && !(x.hasID && strings.Contains(v, x.postID)) {
			continue
		}
		target, ok := x.resolve(v, true)
		if !ok || x.seen[target] {
			continue
		}
		x.seen[target] = true

		found, err := x.probe(target, 0)
		if err != nil {
			return err
		}
		if found {
			x.emit(target, Classify(target, ""))
		}
	}

	if !x.opts.QueryAPIs || !x.hasID {
		return nil
	}
	for _, tmpl := range x.catalog.APIEndpoints {
		endpoint := Expand(tmpl, x.page, x.postID)
		body, ok, err := x.fetchAux(endpoint)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, hit := range x.catalog.AbsoluteAudioURL.FindAllString(unescapeScript(string(body)), -1) {
			x.emit(hit, Classify(hit, ""))
		}
	}
	return nil
}

func hyperlinks(x *extraction) error {
	x.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !HasAudioExtension(href) {
			return
		}
		if u, ok := x.resolve(href, false); ok {
			x.emit(u, Classify(u, ""))
		}
	})
	return nil
}

// unescapeScript undoes JSON slash escaping and HTML entities
func unescapeScript(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	return html.UnescapeString(s)
}

func isURLish(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(s, "/")
}

func decodeBase64(s string) (string, bool) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return string(b), true
	}
	if b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return string(b), true
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
