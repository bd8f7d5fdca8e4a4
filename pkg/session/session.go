package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"audiograb/pkg/errors"
	"audiograb/pkg/logger"

	"golang.org/x/net/publicsuffix"
)

// Options configures a Session
type Options struct {
	// Transport defaults to a clone of http.DefaultTransport
	Transport http.RoundTripper
	Logger    logger.Logger
	// MaxRedirects caps redirect chains, 10 when zero
	MaxRedirects int
}

// Session is an HTTP client with its own cookie jar. Fresh sessions share the transport but not cookies.
type Session struct {
	client    *http.Client
	transport http.RoundTripper
	logger    logger.Logger
	label     string
	maxRedir  int

	mu    sync.Mutex
	seeds []seed
}

type seed struct {
	u       *url.URL
	cookies []*http.Cookie
}

// Request describes one call made through a Session
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// Persona is only used for logging
	Persona string
}

// Response is a fully read response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
}

// New creates a shared session
func New(opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	return build(opts.Transport, opts.Logger, "shared", opts.MaxRedirects)
}

func build(rt http.RoundTripper, log logger.Logger, label string, maxRedir int) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &Session{
		transport: rt,
		logger:    log.WithField("session", label),
		label:     label,
		maxRedir:  maxRedir,
	}
	s.client = &http.Client{
		Transport: rt,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedir {
				return fmt.Errorf("stopped after %d redirects", maxRedir)
			}
			return nil
		},
	}
	return s, nil
}

// Fresh returns an isolated session. User-seeded cookies are carried over, cookies picked up by requests are not.
func (s *Session) Fresh() (*Session, error) {
	f, err := build(s.transport, s.logger, "fresh", s.maxRedir)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	seeds := append([]seed(nil), s.seeds...)
	s.mu.Unlock()

	for _, sd := range seeds {
		f.client.Jar.SetCookies(sd.u, sd.cookies)
	}
	f.seeds = seeds
	return f, nil
}

// SeedCookies loads a browser-style Cookie header ("a=1; b=2") for rawURL's host into the jar
func (s *Session) SeedCookies(rawURL, header string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid cookie URL: %w", err)
	}
	cookies, err := http.ParseCookie(strings.TrimSpace(header))
	if err != nil {
		return fmt.Errorf("invalid cookie header: %w", err)
	}

	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	s.client.Jar.SetCookies(root, cookies)

	s.mu.Lock()
	s.seeds = append(s.seeds, seed{u: root, cookies: cookies})
	s.mu.Unlock()
	return nil
}

// Cookies returns the cookies the jar would send to rawURL
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.client.Jar.Cookies(u)
}

// Label is "shared" or "fresh"
func (s *Session) Label() string {
	return s.label
}

func (s *Session) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, nil)
	if err != nil {
		return nil, errors.Transport(r.URL, err)
	}
	for key, value := range r.Headers {
		if strings.EqualFold(key, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(key, value)
	}
	return req, nil
}

// do sends req and logs the exchange the way every call in this package is logged
func (s *Session) do(req *http.Request, persona string) (*http.Response, error) {
	start := time.Now()
	resp, err := s.client.Do(req)
	ms := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		s.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":      req.Method,
			"url":         req.URL.String(),
			"persona":     persona,
			"duration_ms": ms,
		})
		return nil, errors.Transport(req.URL.String(), err)
	}

	logger.LogRequest(s.logger, req.Method, req.URL.String(), persona, resp.StatusCode, ms)
	if err := decodeBody(resp); err != nil {
		resp.Body.Close()
		return nil, errors.Transport(req.URL.String(), err)
	}
	return resp, nil
}

// Fetch sends r and reads at most maxBytes of the body. The timeout covers the whole exchange.
func (s *Session) Fetch(ctx context.Context, r Request, maxBytes int64) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := s.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req, r.Persona)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Transport(r.URL, err)
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FinalURL:   finalURL,
	}, nil
}

// Head issues a HEAD request and returns the status and headers
func (s *Session) Head(ctx context.Context, r Request) (int, http.Header, error) {
	r.Method = http.MethodHead
	resp, err := s.Fetch(ctx, r, 1)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, resp.Header, nil
}

// Stream sends r and returns the open response. The timeout only bounds the wait for headers.
// The caller must close the body.
func (s *Session) Stream(ctx context.Context, r Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	var timer *time.Timer
	if r.Timeout > 0 {
		timer = time.AfterFunc(r.Timeout, cancel)
	}

	req, err := s.newRequest(ctx, r)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := s.do(req, r.Persona)
	if timer != nil && !timer.Stop() && err == nil {
		// headers arrived just as the timer fired; the body is already cancelled
		resp.Body.Close()
		cancel()
		return nil, errors.Transport(r.URL, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
