package grabber

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/cascade"
	"audiograb/pkg/config"
	"audiograb/pkg/download"
	"audiograb/pkg/errors"
	"audiograb/pkg/extract"
	"audiograb/pkg/logger"
	"audiograb/pkg/pace"
	"audiograb/pkg/session"
	"audiograb/pkg/storage"
	"audiograb/pkg/strategy"

	"github.com/google/uuid"
)

// OverwriteDecider is asked whether an existing file at path may be replaced
type OverwriteDecider func(path string) bool

// CookieSource supplies a stored Cookie header for a host, or "" when there is none
type CookieSource interface {
	CookieHeader(host string) (string, error)
}

// Request describes one page to grab
type Request struct {
	PageURL   string
	OutputDir string
	Cancel    cancel.Checker
	// OnLog receives human-readable progress lines
	OnLog      func(line string)
	OnProgress download.ProgressFunc
	// Overwrite is consulted for existing destinations. nil skips them.
	Overwrite OverwriteDecider
	Formats   []string
}

// Result summarizes a run. Skipped files count as succeeded.
type Result struct {
	RunID      string
	Title      string
	Candidates []extract.Candidate
	Attempted  int
	Succeeded  int
	Skipped    int
	Failed     int
	Files      []string
	Cancelled  bool
}

// Grabber orchestrates the fetch, extraction and download of a page's audio
type Grabber struct {
	config    *config.Config
	registry  *strategy.Registry
	catalog   *extract.Catalog
	cookies   CookieSource
	transport http.RoundTripper
	logger    logger.Logger
}

// Option configures a Grabber
type Option func(*Grabber)

// WithRegistry replaces the persona table, pacing included
func WithRegistry(r *strategy.Registry) Option {
	return func(g *Grabber) { g.registry = r }
}

func WithCatalog(c *extract.Catalog) Option {
	return func(g *Grabber) { g.catalog = c }
}

// WithCookies seeds every run's session from a cookie store
func WithCookies(src CookieSource) Option {
	return func(g *Grabber) { g.cookies = src }
}

// WithTransport sets the RoundTripper under every session, mainly for tests
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Grabber) { g.transport = rt }
}

func WithLogger(l logger.Logger) Option {
	return func(g *Grabber) { g.logger = l }
}

// New creates a new Grabber instance
func New(cfg *config.Config, opts ...Option) (*Grabber, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	g := &Grabber{config: cfg}
	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = logger.GetLogger()
	}
	if g.registry == nil {
		r, err := strategy.DefaultRegistry().With(strategy.WithDelay(pace.Range{
			Min: cfg.Pacing.MinDelay,
			Max: cfg.Pacing.MaxDelay,
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to build strategy registry: %w", err)
		}
		g.registry = r
	}
	if g.catalog == nil {
		g.catalog = extract.DefaultCatalog()
		if cfg.Extraction.SpeculativeHosts != nil {
			g.catalog.SpeculativeHosts = append([]string(nil), cfg.Extraction.SpeculativeHosts...)
		}
	}
	return g, nil
}

// run carries the mutable state of a single Run call
type run struct {
	*Grabber
	id      string
	req     Request
	cancel  cancel.Checker
	log     logger.Logger
	say     func(format string, args ...interface{})
	storage *storage.Manager
	cascade *cascade.Executor
	extract *extract.Extractor
	fetch   *download.Executor
	result  *Result
}

// Run grabs every audio file found on req.PageURL. A user cancellation returns the partial
// result along with a cancelled error.
func (g *Grabber) Run(ctx context.Context, req Request) (*Result, error) {
	r := &run{
		Grabber: g,
		id:      uuid.NewString(),
		req:     req,
		cancel:  cancel.OrNever(req.Cancel),
	}
	r.result = &Result{RunID: r.id}
	r.say = func(format string, args ...interface{}) {
		if req.OnLog != nil {
			req.OnLog(fmt.Sprintf(format, args...))
		}
	}

	pageURL, err := CleanURL(req.PageURL)
	if err != nil {
		return r.result, errors.Transport(req.PageURL, err)
	}
	r.req.PageURL = pageURL
	r.log = g.logger.WithFields(map[string]interface{}{
		"run_id":   r.id,
		"page_url": pageURL,
	})

	if err := r.setup(); err != nil {
		return r.result, err
	}

	err = r.execute(ctx)
	if errors.IsCancelled(err) {
		r.result.Cancelled = true
		r.say("Stopped")
		r.log.Info("Run cancelled by user")
	}
	return r.result, err
}

func (r *run) setup() error {
	dir := r.req.OutputDir
	if dir == "" {
		dir = r.config.Output.Directory
	}
	manager, err := storage.NewManager(dir)
	if err != nil {
		r.log.WithError(err).Error("Failed to create storage manager")
		return err
	}
	r.storage = manager
	r.log = r.log.WithField("output_dir", manager.GetOutputDir())

	sess, err := session.New(session.Options{Transport: r.transport, Logger: r.log})
	if err != nil {
		return errors.Transport(r.req.PageURL, err)
	}
	r.seedCookies(sess)

	httpCfg := r.config.HTTP
	r.cascade = cascade.New(sess, cascade.Config{
		Registry: r.registry,
		Timeouts: cascade.Timeouts{
			Page:       httpCfg.PageTimeout,
			Navigation: httpCfg.NavigationTimeout,
			Probe:      httpCfg.ProbeTimeout,
		},
		Poll:         r.config.Pacing.PollInterval,
		MaxPageBytes: httpCfg.MaxPageBytes,
		Logger:       r.log,
		OnAttempt: func(name string) {
			r.say("Requesting page as %s", name)
		},
	})

	ext := r.config.Extraction
	r.extract, err = extract.New(r.cascade, extract.Options{
		Catalog:                  r.catalog,
		SkipSpeculativeWhenFound: ext.SkipSpeculativeWhenFound,
		Speculative:              ext.Speculative,
		QueryAPIs:                ext.QueryAPIs,
		ProbeTimeout:             httpCfg.ProbeTimeout,
		FallbackTimeout:          httpCfg.FallbackTimeout,
		Pacer:                    pace.NewPacer(r.config.Pacing.ProbesPerSec, r.config.Pacing.ProbeBurst, r.config.Pacing.PollInterval),
		Logger:                   r.log,
	})
	if err != nil {
		return err
	}

	r.fetch = download.New(r.cascade, download.Config{
		HeaderTimeout: httpCfg.DownloadTimeout,
		ProbeTimeout:  httpCfg.ProbeTimeout,
		ChunkSize:     r.config.Download.ChunkSize,
		MinBytes:      r.config.Download.MinBytes,
		Logger:        r.log,
	})
	return nil
}

func (r *run) seedCookies(sess *session.Session) {
	if r.cookies == nil {
		return
	}
	u, err := url.Parse(r.req.PageURL)
	if err != nil {
		return
	}
	header, err := r.cookies.CookieHeader(u.Hostname())
	if err != nil || header == "" {
		if err != nil {
			r.log.WithError(err).Debug("No stored cookies for host")
		}
		return
	}
	if err := sess.SeedCookies(r.req.PageURL, header); err != nil {
		r.log.WithError(err).Warn("Stored cookies could not be parsed")
		return
	}
	r.say("Using stored cookies for %s", u.Hostname())
}

func (r *run) execute(ctx context.Context) error {
	start := time.Now()
	r.log.Info("Starting run")
	r.say("Page: %s", r.req.PageURL)

	if err := r.cascade.Warm(ctx, r.req.PageURL); err != nil {
		r.log.WithError(err).Debug("Warmup request failed")
	}

	page, outcome, err := r.cascade.FetchPage(ctx, r.req.PageURL, r.cancel)
	if err != nil {
		if !errors.IsCancelled(err) {
			r.say("Could not load the page after %d attempts", outcome.Attempts)
			r.log.WithError(err).Error("Page fetch failed")
		}
		return err
	}
	r.say("Page loaded with the %s strategy", outcome.Strategy)

	found, err := r.extract.Extract(ctx, page.FinalURL, page.Content, r.cancel)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNoCandidates) {
			r.say("No audio found on the page")
		}
		return err
	}

	r.result.Title = Title(page.Content, r.req.PageURL)
	candidates := extract.Dedupe(found)
	formats := r.req.Formats
	if formats == nil {
		formats = r.config.Output.Formats
	}
	candidates = extract.Filter(candidates, formats)
	r.result.Candidates = candidates
	r.say("Found %d audio file(s), title %q", len(candidates), r.result.Title)
	if len(candidates) == 0 {
		return errors.NoCandidates(r.req.PageURL)
	}

	for i, c := range candidates {
		if r.cancel.Cancelled() {
			return errors.Cancelled()
		}
		if err := r.grab(ctx, i, len(candidates), c); err != nil {
			return err
		}
	}

	r.log.InfoWithFields("Run finished", map[string]interface{}{
		"attempted":    r.result.Attempted,
		"succeeded":    r.result.Succeeded,
		"skipped":      r.result.Skipped,
		"failed":       r.result.Failed,
		"files_in_dir": r.storage.GetDownloadedCount(),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	r.say("Done: %d of %d downloaded", r.result.Succeeded, r.result.Attempted)
	return nil
}

// grab downloads one candidate. Only cancellation is returned, other failures are counted.
func (r *run) grab(ctx context.Context, i, total int, c extract.Candidate) error {
	name := FileName(r.result.Title, i, total, c)
	dest := r.storage.Path(name)
	r.result.Attempted++

	if r.storage.IsDownloaded(name) {
		if r.req.Overwrite == nil || !r.req.Overwrite(dest) {
			r.result.Skipped++
			r.result.Succeeded++
			r.say("Skipped %s, it already exists", name)
			return nil
		}
	}

	r.say("Downloading %d/%d: %s", i+1, total, name)
	task := &download.Task{
		Candidate:   c,
		Destination: dest,
		PageURL:     r.req.PageURL,
		Cancel:      r.cancel,
		Store:       r.storage,
	}
	outcome, err := r.fetch.Download(ctx, task, r.req.OnProgress)
	if err != nil {
		if errors.IsCancelled(err) {
			return err
		}
		r.result.Failed++
		r.say("Failed %s: %v", name, err)
		return nil
	}

	r.result.Succeeded++
	r.result.Files = append(r.result.Files, dest)
	r.say("Saved %s (%d bytes, %s)", name, task.Written, outcome.Strategy)
	return nil
}

// Policy turns a configured overwrite policy into a decider. ask is used for "prompt" and may be nil.
func Policy(policy string, ask OverwriteDecider) OverwriteDecider {
	switch policy {
	case config.OverwriteAlways:
		return func(string) bool { return true }
	case config.OverwritePrompt:
		return ask
	default:
		return nil
	}
}
