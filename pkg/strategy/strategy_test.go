package strategy

import (
	"net/url"
	"testing"
	"time"

	"audiograb/pkg/pace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()

	var names []string
	for _, s := range r.Strategies() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		NameStandard, NameMobile, NameFirefox, NameMinimal,
		NameFreshChrome, NameCrossSite, NameStealth,
	}, names)
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, NameDirect, r.Default().Name)

	var transports []string
	for _, s := range r.Transports() {
		transports = append(transports, s.Name)
	}
	assert.Equal(t, []string{TransportStandard, TransportRange, TransportBrowser}, transports)
}

func TestDefaultRegistryScopes(t *testing.T) {
	r := DefaultRegistry()
	byName := map[string]Strategy{}
	for _, s := range r.Strategies() {
		byName[s.Name] = s
	}

	assert.Equal(t, Fresh, byName[NameFreshChrome].Scope)
	assert.Equal(t, Fresh, byName[NameStealth].Scope)
	assert.Equal(t, Shared, byName[NameCrossSite].Scope)
	require.Len(t, byName[NameCrossSite].Navigation, 1)
	assert.Equal(t, SiteRoot, byName[NameCrossSite].Navigation[0].Target)

	for _, tr := range r.Transports()[1:] {
		assert.Equal(t, Fresh, tr.Scope, tr.Name)
	}
}

func TestRenderExpandsPlaceholders(t *testing.T) {
	r, err := NewRegistry(Strategy{Name: "d"}, nil, WithUserAgents("UA-1"))
	require.NoError(t, err)

	page := mustParse(t, "https://example.com:8443/posts/42?x=1")
	got := r.Render(Headers{
		"User-Agent": PlaceholderUserAgent,
		"Referer":    PlaceholderPage,
		"Origin":     PlaceholderOrigin,
		"X-Root":     PlaceholderOrigin + "/",
		"Accept":     "*/*",
	}, page)

	assert.Equal(t, map[string]string{
		"User-Agent": "UA-1",
		"Referer":    "https://example.com:8443/posts/42?x=1",
		"Origin":     "https://example.com:8443",
		"X-Root":     "https://example.com:8443/",
		"Accept":     "*/*",
	}, got)
}

func TestRenderDropsEmptyValues(t *testing.T) {
	r, err := NewRegistry(Strategy{Name: "d"}, nil)
	require.NoError(t, err)

	got := r.Render(Headers{"User-Agent": PlaceholderUserAgent, "Accept": "*/*"}, mustParse(t, "https://a.test/"))
	assert.NotContains(t, got, "User-Agent")
	assert.Equal(t, "*/*", got["Accept"])
}

func TestRegistryIsImmutable(t *testing.T) {
	r := DefaultRegistry()

	first := r.Strategies()
	first[0].Headers["User-Agent"] = "tampered"
	first[0].Name = "tampered"

	again := r.Strategies()
	assert.Equal(t, NameStandard, again[0].Name)
	assert.Equal(t, PlaceholderUserAgent, again[0].Headers["User-Agent"])
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(Strategy{Name: "a"}, []Strategy{{Name: "b"}, {Name: "b"}})
	assert.Error(t, err)

	_, err = NewRegistry(Strategy{Name: "a"}, []Strategy{{Name: ""}})
	assert.Error(t, err)
}

func TestResolveTargets(t *testing.T) {
	page := mustParse(t, "http://host.test/audio/1")
	assert.Equal(t, "http://host.test/", Resolve(SiteRoot, page))
	assert.Equal(t, "http://host.test/audio/1", Resolve(OriginPage, page))
	assert.Equal(t, "", Origin(nil))
}

func TestUserAgentRotation(t *testing.T) {
	r := DefaultRegistry()
	for i := 0; i < 20; i++ {
		assert.Contains(t, UserAgents, r.UserAgent())
	}
}

func TestWithDelayOverridesEscalationOnly(t *testing.T) {
	def := DefaultRegistry()
	r, err := def.With(WithDelay(pace.Fixed(time.Second)))
	require.NoError(t, err)
	assert.Len(t, r.Transports(), 3)
	assert.NotEmpty(t, r.UserAgent())

	for _, s := range r.Strategies() {
		assert.Equal(t, pace.Fixed(time.Second), s.Delay, s.Name)
	}
	assert.True(t, r.Default().Delay.IsZero())
	assert.Equal(t, pace.Seconds(0.2, 0.5), def.Strategies()[0].Delay)
}

func TestBrowserTransportNavigationTimeouts(t *testing.T) {
	var browser Strategy
	for _, s := range DefaultRegistry().Transports() {
		if s.Name == TransportBrowser {
			browser = s
		}
	}
	require.Len(t, browser.Navigation, 2)
	assert.Equal(t, SiteRoot, browser.Navigation[0].Target)
	assert.Equal(t, 10*time.Second, browser.Navigation[0].Timeout)
	assert.Zero(t, browser.Navigation[1].Timeout, "origin visit falls back to the navigation timeout")
}
