package download

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/cascade"
	"audiograb/pkg/errors"
	"audiograb/pkg/extract"
	"audiograb/pkg/logger"
	"audiograb/pkg/session"
	"audiograb/pkg/storage"
	"audiograb/pkg/strategy"
)

// Task is one candidate being written to disk. The active transport updates Written and Total.
type Task struct {
	Candidate   extract.Candidate
	Destination string
	PageURL     string
	Written     int64
	// Total is 0 when the size is unknown
	Total  int64
	Cancel cancel.Checker
	// Store, when set, opens the partial file so the manager records the committed name
	Store *storage.Manager
}

func (t *Task) createPartial() (*storage.Partial, error) {
	if t.Store != nil {
		return t.Store.Create(filepath.Base(t.Destination))
	}
	return storage.Create(t.Destination)
}

// ProgressFunc receives the running byte count after every chunk
type ProgressFunc func(written, total int64)

// transport holds what a download persona needs beyond its headers
type transport struct {
	chunkSize    int
	probeSize    bool
	explicitHost bool
}

var transports = map[string]transport{
	strategy.TransportStandard: {chunkSize: 8192, probeSize: true},
	strategy.TransportRange:    {chunkSize: 4096},
	strategy.TransportBrowser:  {chunkSize: 2048, explicitHost: true},
}

// Config holds the optional parts of an Executor
type Config struct {
	// HeaderTimeout bounds the wait for response headers, not the transfer
	HeaderTimeout time.Duration
	ProbeTimeout  time.Duration
	// ChunkSize overrides every transport's chunk size when positive
	ChunkSize int
	// MinBytes is the smallest body accepted as a download, 1 when zero
	MinBytes int64
	Logger   logger.Logger
}

// Executor writes candidates to disk, escalating through the registry's download transports
type Executor struct {
	cascade *cascade.Executor
	cfg     Config
	logger  logger.Logger
}

// New creates an Executor that shares the cascade's session and registry
func New(c *cascade.Executor, cfg Config) *Executor {
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Executor{
		cascade: c,
		cfg:     cfg,
		logger:  cfg.Logger.WithField("component", "download"),
	}
}

// Download tries each transport until one writes the whole body to task.Destination.
// Cancellation stops immediately and never falls through to the next transport.
func (e *Executor) Download(ctx context.Context, task *Task, onProgress ProgressFunc) (cascade.Outcome, error) {
	c := cancel.OrNever(task.Cancel)
	target, err := url.Parse(task.Candidate.URL)
	if err != nil || target.Host == "" {
		err := errors.Transport(task.Candidate.URL, err)
		return cascade.Outcome{Err: err}, err
	}
	page, err := url.Parse(task.PageURL)
	if err != nil || page.Host == "" {
		page = target
	}

	var lastErr error
	attempts := 0
	for _, t := range e.cascade.Registry().Transports() {
		if c.Cancelled() {
			err := errors.Cancelled()
			return cascade.Outcome{Attempts: attempts, Err: err}, err
		}

		attempts++
		err := e.attempt(ctx, t, task, page, c, onProgress)
		logger.LogDownload(e.logger, task.Candidate.URL, task.Destination, t.Name, task.Written, err)
		if err == nil {
			return cascade.Outcome{Succeeded: true, Strategy: t.Name, Attempts: attempts}, nil
		}
		if !errors.IsEscalatable(err) {
			return cascade.Outcome{Strategy: t.Name, Attempts: attempts, Err: err}, err
		}
		lastErr = err
	}

	err = errors.Exhausted(task.Candidate.URL, attempts, lastErr)
	return cascade.Outcome{Attempts: attempts, Err: err}, err
}

func (e *Executor) attempt(ctx context.Context, t strategy.Strategy, task *Task, page *url.URL, c cancel.Checker, onProgress ProgressFunc) error {
	spec, ok := transports[t.Name]
	if !ok {
		spec = transport{chunkSize: 8192}
	}
	if e.cfg.ChunkSize > 0 {
		spec.chunkSize = e.cfg.ChunkSize
	}

	sess := e.cascade.Session()
	if t.Scope == strategy.Fresh {
		fresh, err := sess.Fresh()
		if err != nil {
			return errors.Transport(task.Candidate.URL, err)
		}
		sess = fresh
	}
	if err := e.cascade.Navigate(ctx, sess, t.Navigation, page, t.Name, c); err != nil {
		return err
	}

	headers := e.cascade.Registry().Render(t.Headers, page)
	if spec.explicitHost {
		if target, err := url.Parse(task.Candidate.URL); err == nil {
			headers["Host"] = target.Host
		}
	}

	task.Written = 0
	task.Total = 0
	if spec.probeSize {
		e.learnSize(ctx, sess, task, headers)
	}

	resp, err := sess.Stream(ctx, session.Request{
		URL:     task.Candidate.URL,
		Headers: headers,
		Timeout: e.cfg.HeaderTimeout,
		Persona: t.Name,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return errors.Blocked(task.Candidate.URL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		return errors.Blocked(task.Candidate.URL, resp.StatusCode, "received an HTML page instead of audio")
	}
	if size := responseSize(resp); size > 0 {
		task.Total = size
	}

	part, err := task.createPartial()
	if err != nil {
		return err
	}
	if err := e.copyChunks(resp.Body, part, spec.chunkSize, task, c, onProgress); err != nil {
		part.Discard()
		return err
	}
	if task.Written < e.cfg.MinBytes {
		part.Discard()
		return errors.Blocked(task.Candidate.URL, resp.StatusCode, "empty response body")
	}
	return part.Commit()
}

func (e *Executor) copyChunks(body io.Reader, part *storage.Partial, chunkSize int, task *Task, c cancel.Checker, onProgress ProgressFunc) error {
	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if c.Cancelled() {
				return errors.Cancelled()
			}
			if _, err := part.Write(buf[:n]); err != nil {
				return err
			}
			task.Written += int64(n)
			if onProgress != nil {
				onProgress(task.Written, task.Total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errors.Transport(task.Candidate.URL, readErr)
		}
	}
}

// learnSize issues a best-effort HEAD so progress has a total from the first chunk
func (e *Executor) learnSize(ctx context.Context, sess *session.Session, task *Task, headers map[string]string) {
	status, header, err := sess.Head(ctx, session.Request{
		URL:     task.Candidate.URL,
		Headers: headers,
		Timeout: e.cfg.ProbeTimeout,
		Persona: "size",
	})
	if err != nil || status != http.StatusOK {
		return
	}
	if size, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil && size > 0 {
		task.Total = size
	}
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	return strings.Contains(mediaType, "text/html")
}

// responseSize prefers the complete length from Content-Range on partial responses
func responseSize(resp *http.Response) int64 {
	if resp.StatusCode == http.StatusPartialContent {
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if i := strings.LastIndexByte(cr, '/'); i >= 0 {
				if size, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
					return size
				}
			}
		}
	}
	return resp.ContentLength
}
