package strategy

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"audiograb/pkg/pace"
)

// Placeholders expanded by Registry.Render
const (
	PlaceholderOrigin    = "{origin}"
	PlaceholderPage      = "{page}"
	PlaceholderUserAgent = "{user_agent}"
)

// Scope decides which HTTP session a strategy runs on
type Scope int

const (
	// Shared reuses the run's session and its cookie jar
	Shared Scope = iota
	// Fresh runs on an isolated session discarded afterwards
	Fresh
)

func (s Scope) String() string {
	if s == Fresh {
		return "fresh"
	}
	return "shared"
}

// Target is the page a navigation step visits
type Target int

const (
	SiteRoot Target = iota
	OriginPage
)

// Headers maps header names to value templates
type Headers map[string]string

func (h Headers) clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// NavStep is a throwaway request issued before the real one to pick up cookies
type NavStep struct {
	Target  Target
	Headers Headers
	Pause   pace.Range
	// Timeout overrides the executor's navigation timeout when positive
	Timeout time.Duration
}

// Strategy is a named request persona
type Strategy struct {
	Name       string
	Headers    Headers
	Scope      Scope
	Navigation []NavStep
	Delay      pace.Range
}

func (s Strategy) clone() Strategy {
	out := s
	out.Headers = s.Headers.clone()
	out.Navigation = make([]NavStep, len(s.Navigation))
	for i, step := range s.Navigation {
		step.Headers = step.Headers.clone()
		out.Navigation[i] = step
	}
	return out
}

// Registry is an immutable, ordered set of personas plus the header sets used for probes and downloads
type Registry struct {
	def        Strategy
	strategies []Strategy
	transports []Strategy
	probe      Headers
	userAgents []string
}

// Option configures a Registry under construction
type Option func(*Registry)

// WithUserAgents sets the table {user_agent} is drawn from
func WithUserAgents(agents ...string) Option {
	return func(r *Registry) {
		r.userAgents = append([]string(nil), agents...)
	}
}

// WithProbeHeaders sets the headers used for existence probes and auxiliary fetches
func WithProbeHeaders(h Headers) Option {
	return func(r *Registry) {
		r.probe = h.clone()
	}
}

// WithTransports sets the ordered download personas
func WithTransports(transports ...Strategy) Option {
	return func(r *Registry) {
		r.transports = make([]Strategy, len(transports))
		for i, t := range transports {
			r.transports[i] = t.clone()
		}
	}
}

// WithDelay replaces the inter-attempt delay of every escalation persona
func WithDelay(d pace.Range) Option {
	return func(r *Registry) {
		for i := range r.strategies {
			r.strategies[i].Delay = d
		}
	}
}

// NewRegistry builds a Registry. Names must be unique and non-empty.
func NewRegistry(def Strategy, strategies []Strategy, opts ...Option) (*Registry, error) {
	r := &Registry{def: def.clone()}
	for _, s := range strategies {
		r.strategies = append(r.strategies, s.clone())
	}
	for _, opt := range opts {
		opt(r)
	}

	seen := map[string]bool{}
	for _, s := range append([]Strategy{r.def}, r.strategies...) {
		if s.Name == "" {
			return nil, fmt.Errorf("strategy with empty name")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate strategy %q", s.Name)
		}
		seen[s.Name] = true
	}
	return r, nil
}

// With returns a copy of r with opts applied on top
func (r *Registry) With(opts ...Option) (*Registry, error) {
	base := []Option{
		WithUserAgents(r.userAgents...),
		WithProbeHeaders(r.probe),
		WithTransports(r.transports...),
	}
	return NewRegistry(r.def, r.strategies, append(base, opts...)...)
}

// Default is the persona used for the first, direct request
func (r *Registry) Default() Strategy {
	return r.def.clone()
}

// Strategies returns the escalation personas in priority order
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.clone()
	}
	return out
}

// Len is the number of escalation personas
func (r *Registry) Len() int {
	return len(r.strategies)
}

// Transports returns the download personas in escalation order
func (r *Registry) Transports() []Strategy {
	out := make([]Strategy, len(r.transports))
	for i, s := range r.transports {
		out[i] = s.clone()
	}
	return out
}

// ProbeHeaders returns the header templates for probes
func (r *Registry) ProbeHeaders() Headers {
	return r.probe.clone()
}

// UserAgent picks one entry of the rotating table
func (r *Registry) UserAgent() string {
	if len(r.userAgents) == 0 {
		return ""
	}
	return r.userAgents[rand.Intn(len(r.userAgents))]
}

// Render expands header templates against page. Headers that expand to an empty value are dropped.
func (r *Registry) Render(h Headers, page *url.URL) map[string]string {
	origin := Origin(page)
	pageStr := ""
	if page != nil {
		pageStr = page.String()
	}

	out := make(map[string]string, len(h))
	for name, value := range h {
		if strings.Contains(value, PlaceholderUserAgent) {
			value = strings.ReplaceAll(value, PlaceholderUserAgent, r.UserAgent())
		}
		value = strings.ReplaceAll(value, PlaceholderOrigin, origin)
		value = strings.ReplaceAll(value, PlaceholderPage, pageStr)
		if value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// Origin returns scheme://host[:port] of u
func Origin(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Resolve returns the URL a navigation target points at
func Resolve(t Target, page *url.URL) string {
	if t == SiteRoot {
		return Origin(page) + "/"
	}
	return page.String()
}
