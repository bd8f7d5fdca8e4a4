package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
	"audiograb/pkg/logger"
	"audiograb/pkg/pace"

	"github.com/PuerkitoBio/goquery"
)

// Prober checks candidate URLs over the network on behalf of the probe-based heuristics
type Prober interface {
	Probe(ctx context.Context, target string, page *url.URL, timeout time.Duration, c cancel.Checker) (bool, error)
	FetchAux(ctx context.Context, target string, page *url.URL, c cancel.Checker) ([]byte, bool, error)
}

// Options configures an Extractor
type Options struct {
	Catalog *Catalog
	// SkipSpeculativeWhenFound skips the probe-based heuristics once anything was found
	SkipSpeculativeWhenFound bool
	// Speculative enables the probing heuristics at all; QueryAPIs adds the API endpoint lookups
	Speculative     bool
	QueryAPIs       bool
	ProbeTimeout    time.Duration
	FallbackTimeout time.Duration
	Pacer           pace.Limiter
	Logger          logger.Logger
}

// DefaultOptions enables every heuristic and keeps the skip gate on
func DefaultOptions() Options {
	return Options{
		Catalog:                  DefaultCatalog(),
		SkipSpeculativeWhenFound: true,
		Speculative:              true,
		QueryAPIs:                true,
		ProbeTimeout:             10 * time.Second,
		FallbackTimeout:          5 * time.Second,
	}
}

type heuristic struct {
	name string
	// probing heuristics hit the network and are subject to the skip gate
	probing bool
	run     func(x *extraction) error
}

var heuristics = []heuristic{
	{name: "structured-media", run: structuredMedia},
	{name: "script", run: scriptMining},
	{name: "data-attribute", run: dataAttributes},
	{name: "speculative", probing: true, run: speculative},
	{name: "encoded", probing: true, run: encodedPayloads},
	{name: "site-structure", probing: true, run: siteStructure},
	{name: "hyperlink", run: hyperlinks},
}

// Extractor finds audio candidates in a fetched page
type Extractor struct {
	prober  Prober
	catalog *Catalog
	opts    Options
	pacer   pace.Limiter
	logger  logger.Logger
}

// New creates an Extractor. prober may be nil when every probing heuristic is disabled.
func New(prober Prober, opts Options) (*Extractor, error) {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if err := opts.Catalog.Validate(); err != nil {
		return nil, err
	}
	if opts.Pacer == nil {
		opts.Pacer = pace.Unlimited()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if prober == nil && opts.Speculative {
		return nil, fmt.Errorf("a prober is required for speculative extraction")
	}

	return &Extractor{
		prober:  prober,
		catalog: opts.Catalog,
		opts:    opts,
		pacer:   opts.Pacer,
		logger:  opts.Logger.WithField("component", "extractor"),
	}, nil
}

// Extract runs every heuristic over content in order and returns what they emitted, duplicates included
func (e *Extractor) Extract(ctx context.Context, pageURL string, content []byte, c cancel.Checker) ([]Candidate, error) {
	c = cancel.OrNever(c)
	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return nil, errors.NoCandidates(pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.NoCandidates(pageURL)
	}

	x := &extraction{
		Extractor: e,
		ctx:       ctx,
		page:      page,
		doc:       doc,
		cancel:    c,
		seen:      map[string]bool{},
	}
	x.postID, x.hasID = PostID(page)
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); body != "" {
			x.scripts = append(x.scripts, body)
		}
	})

	for _, h := range heuristics {
		if c.Cancelled() {
			return nil, errors.Cancelled()
		}
		if h.probing && !e.opts.Speculative {
			continue
		}
		if h.probing && e.opts.SkipSpeculativeWhenFound && len(x.found) > 0 {
			e.logger.DebugWithFields("Skipping probing heuristic", map[string]interface{}{
				"heuristic": h.name,
				"found":     len(x.found),
			})
			continue
		}

		x.heuristic = h.name
		if err := h.run(x); err != nil {
			return nil, err
		}
	}

	if len(x.found) == 0 {
		return nil, errors.NoCandidates(pageURL)
	}
	return x.found, nil
}

// extraction is the state of a single Extract call
type extraction struct {
	*Extractor
	ctx       context.Context
	page      *url.URL
	doc       *goquery.Document
	scripts   []string
	postID    string
	hasID     bool
	cancel    cancel.Checker
	heuristic string
	found     []Candidate
	// seen holds URLs already probed in this extraction
	seen map[string]bool
}

func (x *extraction) emit(u string, f Format) {
	x.found = append(x.found, Candidate{URL: u, Format: f})
	logger.LogCandidate(x.logger, x.heuristic, u, string(f))
}

// resolve turns raw into an absolute http(s) URL. Strict mode accepts only absolute,
// protocol-relative and root-relative references.
func (x *extraction) resolve(raw string, strict bool) (string, bool) {
	if raw == "" || isBlob(raw) {
		return "", false
	}
	if strict && !isURLish(raw) {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := x.page.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// probe paces and issues a single existence check. Only cancellation is returned as an error.
func (x *extraction) probe(target string, timeout time.Duration) (bool, error) {
	if x.cancel.Cancelled() {
		return false, errors.Cancelled()
	}
	if err := x.pacer.Wait(x.ctx, x.cancel); err != nil {
		return false, errors.Cancelled()
	}
	if timeout <= 0 {
		timeout = x.opts.ProbeTimeout
	}

	ok, err := x.prober.Probe(x.ctx, target, x.page, timeout, x.cancel)
	if err != nil {
		return false, err
	}
	x.logger.DebugWithFields("Probed", map[string]interface{}{
		"heuristic": x.heuristic,
		"url":       target,
		"found":     ok,
	})
	return ok, nil
}

func (x *extraction) fetchAux(target string) ([]byte, bool, error) {
	if err := x.pacer.Wait(x.ctx, x.cancel); err != nil {
		return nil, false, errors.Cancelled()
	}
	return x.prober.FetchAux(x.ctx, target, x.page, x.cancel)
}
