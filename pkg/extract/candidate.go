package extract

import (
	"net/url"
	"path"
	"strings"
)

// Format is the audio container a candidate points at
type Format string

const (
	FormatMP3   Format = "mp3"
	FormatM4A   Format = "m4a"
	FormatWAV   Format = "wav"
	FormatFLAC  Format = "flac"
	FormatAudio Format = "audio"
)

// Candidate is a URL believed to serve an audio file
type Candidate struct {
	URL    string
	Format Format
}

// audioExtensions are the URL extensions a generic candidate may keep
var audioExtensions = map[string]bool{
	"mp3": true, "m4a": true, "wav": true, "flac": true, "aac": true,
	"ogg": true, "oga": true, "opus": true, "weba": true, "webm": true,
	"mp4": true, "m4b": true, "aif": true, "aiff": true, "wma": true,
	"amr": true, "3gp": true, "mka": true,
}

// Extension returns the file extension a download of c should carry.
// Generic audio keeps its URL's extension only when it is a known audio container.
func (c Candidate) Extension() string {
	if c.Format != FormatAudio && c.Format != "" {
		return string(c.Format)
	}
	if u, err := url.Parse(c.URL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if audioExtensions[ext] {
			return ext
		}
	}
	return string(FormatAudio)
}

// Dedupe drops repeated URLs, keeping the first occurrence of each in order
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// Filter keeps the candidates whose format is listed. An empty list keeps everything.
func Filter(candidates []Candidate, formats []string) []Candidate {
	if len(formats) == 0 {
		return candidates
	}
	allowed := make(map[Format]bool, len(formats))
	for _, f := range formats {
		allowed[Format(strings.ToLower(strings.TrimSpace(f)))] = true
	}

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if allowed[c.Format] {
			out = append(out, c)
		}
	}
	return out
}

var extensionFormats = map[string]Format{
	".mp3":  FormatMP3,
	".m4a":  FormatM4A,
	".wav":  FormatWAV,
	".flac": FormatFLAC,
}

var mimeFormats = map[string]Format{
	"audio/mpeg":   FormatMP3,
	"audio/mp3":    FormatMP3,
	"audio/mp4":    FormatM4A,
	"audio/x-m4a":  FormatM4A,
	"audio/aac":    FormatM4A,
	"audio/wav":    FormatWAV,
	"audio/x-wav":  FormatWAV,
	"audio/wave":   FormatWAV,
	"audio/flac":   FormatFLAC,
	"audio/x-flac": FormatFLAC,
}

// FormatFromURL classifies by the extension of the URL path
func FormatFromURL(raw string) (Format, bool) {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	f, ok := extensionFormats[strings.ToLower(path.Ext(p))]
	return f, ok
}

// FormatFromMIME classifies by a declared MIME type, ignoring parameters
func FormatFromMIME(mime string) (Format, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	f, ok := mimeFormats[mime]
	return f, ok
}

// Classify prefers the extension, then the MIME type, and falls back to generic audio
func Classify(raw, mime string) Format {
	if f, ok := FormatFromURL(raw); ok {
		return f
	}
	if f, ok := FormatFromMIME(mime); ok {
		return f
	}
	return FormatAudio
}

// HasAudioExtension reports whether the URL path ends in a known audio extension
func HasAudioExtension(raw string) bool {
	_, ok := FormatFromURL(raw)
	return ok
}

func isBlob(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "blob:")
}
