package session

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodeBody undoes Content-Encoding. net/http only does this itself when it chose Accept-Encoding,
// and personas set their own.
func decodeBody(resp *http.Response) error {
	if resp.Body == nil || resp.Uncompressed || !hasBody(resp) {
		return nil
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var (
		decoded io.Reader
		err     error
	)
	switch encoding {
	case "", "identity":
		return nil
	case "gzip", "x-gzip":
		decoded, err = gzip.NewReader(resp.Body)
	case "deflate":
		decoded, err = deflateReader(resp.Body)
	case "br":
		decoded = brotli.NewReader(resp.Body)
	default:
		return fmt.Errorf("unsupported content encoding %q", encoding)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s body: %w", encoding, err)
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// hasBody reports whether resp can carry an entity body. HEAD, 204 and 304 answers
// may still echo the Content-Encoding a GET would have used.
func hasBody(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusNotModified:
		return false
	}
	return resp.ContentLength != 0 && resp.Body != http.NoBody
}

// deflateReader accepts both zlib-wrapped and raw deflate streams; servers send either
func deflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (d *decodedBody) Close() error {
	if c, ok := d.Reader.(io.Closer); ok {
		c.Close()
	}
	return d.raw.Close()
}
