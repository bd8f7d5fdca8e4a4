package cascade

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
	"audiograb/pkg/logger"
	"audiograb/pkg/pace"
	"audiograb/pkg/session"
	"audiograb/pkg/strategy"
)

// Timeouts bounds each call class the executor issues
type Timeouts struct {
	Page       time.Duration
	Navigation time.Duration
	Probe      time.Duration
}

// DefaultTimeouts returns the page, navigation and probe bounds
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Page:       30 * time.Second,
		Navigation: 15 * time.Second,
		Probe:      10 * time.Second,
	}
}

// PageFetchResult is the accepted response for a page
type PageFetchResult struct {
	StatusCode int
	Content    []byte
	FinalURL   string
	Strategy   string
}

// Outcome summarizes a cascade, whether it succeeded or not
type Outcome struct {
	Succeeded bool
	Strategy  string
	Attempts  int
	Err       error
}

// Config holds the optional parts of an Executor
type Config struct {
	Registry     *strategy.Registry
	Timeouts     Timeouts
	Poll         time.Duration
	MaxPageBytes int64
	Logger       logger.Logger
	// OnAttempt is called with each persona name right before its request goes out
	OnAttempt func(name string)
}

// Executor walks the strategy registry against a page until one persona is accepted
type Executor struct {
	registry  *strategy.Registry
	session   *session.Session
	timeouts  Timeouts
	poll      time.Duration
	maxBytes  int64
	logger    logger.Logger
	onAttempt func(string)
}

// New creates an Executor on top of the run's shared session
func New(sess *session.Session, cfg Config) *Executor {
	if cfg.Registry == nil {
		cfg.Registry = strategy.DefaultRegistry()
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	if cfg.Poll <= 0 {
		cfg.Poll = pace.DefaultPoll
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Executor{
		registry:  cfg.Registry,
		session:   sess,
		timeouts:  cfg.Timeouts,
		poll:      cfg.Poll,
		maxBytes:  cfg.MaxPageBytes,
		logger:    cfg.Logger.WithField("component", "cascade"),
		onAttempt: cfg.OnAttempt,
	}
}

// Registry returns the persona table in use
func (e *Executor) Registry() *strategy.Registry {
	return e.registry
}

// Session returns the shared session
func (e *Executor) Session() *session.Session {
	return e.session
}

// FetchPage requests rawURL with the default persona, then escalates through the registry until a 200 arrives
func (e *Executor) FetchPage(ctx context.Context, rawURL string, c cancel.Checker) (*PageFetchResult, Outcome, error) {
	c = cancel.OrNever(c)
	page, err := url.Parse(rawURL)
	if err != nil || page.Host == "" {
		return nil, Outcome{Err: errors.Transport(rawURL, err)}, errors.Transport(rawURL, err)
	}

	if c.Cancelled() {
		err := errors.Cancelled()
		return nil, Outcome{Err: err}, err
	}

	direct := e.registry.Default()
	result, lastErr := e.attempt(ctx, e.session, direct, page)
	if lastErr == nil {
		return result, Outcome{Succeeded: true, Strategy: direct.Name, Attempts: 1}, nil
	}
	if !errors.IsEscalatable(lastErr) {
		return nil, Outcome{Attempts: 1, Err: lastErr}, lastErr
	}
	e.logger.WarnWithFields("Direct request refused, escalating", map[string]interface{}{
		"url":   rawURL,
		"error": lastErr.Error(),
	})

	attempts := 1
	for _, s := range e.registry.Strategies() {
		if c.Cancelled() {
			err := errors.Cancelled()
			return nil, Outcome{Attempts: attempts, Err: err}, err
		}
		if err := pace.Pause(s.Delay, e.poll, c); err != nil {
			return nil, Outcome{Attempts: attempts, Err: err}, err
		}

		sess := e.session
		if s.Scope == strategy.Fresh {
			if sess, err = e.session.Fresh(); err != nil {
				lastErr = errors.Transport(rawURL, err)
				continue
			}
		}

		if err := e.Navigate(ctx, sess, s.Navigation, page, s.Name, c); err != nil {
			return nil, Outcome{Attempts: attempts, Err: err}, err
		}

		attempts++
		result, lastErr = e.attempt(ctx, sess, s, page)
		if lastErr == nil {
			e.logger.InfoWithFields("Strategy accepted", map[string]interface{}{
				"url":      rawURL,
				"strategy": s.Name,
				"attempts": attempts,
			})
			return result, Outcome{Succeeded: true, Strategy: s.Name, Attempts: attempts}, nil
		}
		if !errors.IsEscalatable(lastErr) {
			return nil, Outcome{Attempts: attempts, Err: lastErr}, lastErr
		}
		e.logger.DebugWithFields("Strategy refused", map[string]interface{}{
			"strategy": s.Name,
			"error":    lastErr.Error(),
		})
	}

	err = errors.Exhausted(rawURL, attempts, lastErr)
	return nil, Outcome{Attempts: attempts, Err: err}, err
}

func (e *Executor) attempt(ctx context.Context, sess *session.Session, s strategy.Strategy, page *url.URL) (*PageFetchResult, error) {
	if e.onAttempt != nil {
		e.onAttempt(s.Name)
	}

	resp, err := sess.Fetch(ctx, session.Request{
		URL:     page.String(),
		Headers: e.registry.Render(s.Headers, page),
		Timeout: e.timeouts.Page,
		Persona: s.Name,
	}, e.maxBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Blocked(page.String(), resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return &PageFetchResult{
		StatusCode: resp.StatusCode,
		Content:    resp.Body,
		FinalURL:   resp.FinalURL,
		Strategy:   s.Name,
	}, nil
}

// Navigate replays pre-flight steps on sess. Their failures are ignored, only cancellation stops them.
func (e *Executor) Navigate(ctx context.Context, sess *session.Session, steps []strategy.NavStep, page *url.URL, persona string, c cancel.Checker) error {
	c = cancel.OrNever(c)
	for _, step := range steps {
		if c.Cancelled() {
			return errors.Cancelled()
		}
		target := strategy.Resolve(step.Target, page)
		timeout := e.timeouts.Navigation
		if step.Timeout > 0 {
			timeout = step.Timeout
		}
		if _, err := sess.Fetch(ctx, session.Request{
			URL:     target,
			Headers: e.registry.Render(step.Headers, page),
			Timeout: timeout,
			Persona: persona + "/nav",
		}, 1<<16); err != nil {
			e.logger.DebugWithFields("Navigation step failed", map[string]interface{}{
				"target": target,
				"error":  err.Error(),
			})
		}
		if err := pace.Pause(step.Pause, e.poll, c); err != nil {
			return err
		}
	}
	return nil
}
