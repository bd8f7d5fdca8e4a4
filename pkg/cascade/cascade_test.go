package cascade

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
	"audiograb/pkg/logger"
	"audiograb/pkg/pace"
	"audiograb/pkg/session"
	"audiograb/pkg/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newResponse(req *http.Request, statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    req,
	}
}

// recorder logs the X-Persona header of every page request in arrival order
type recorder struct {
	mu       sync.Mutex
	personas []string
	paths    []string
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas = append(r.personas, req.Header.Get("X-Persona"))
	r.paths = append(r.paths, req.URL.Path)
}

func persona(name string) strategy.Strategy {
	return strategy.Strategy{Name: name, Headers: strategy.Headers{"X-Persona": name}}
}

func testRegistry(t *testing.T, n int) *strategy.Registry {
	t.Helper()
	var personas []strategy.Strategy
	for i := 1; i <= n; i++ {
		personas = append(personas, persona(string(rune('a'+i-1))))
	}
	reg, err := strategy.NewRegistry(persona("direct"), personas)
	require.NoError(t, err)
	return reg
}

func newExecutor(t *testing.T, reg *strategy.Registry, handler func(*http.Request) (*http.Response, error)) *Executor {
	t.Helper()
	sess, err := session.New(session.Options{Transport: &mockRoundTripper{handler: handler}})
	require.NoError(t, err)
	return New(sess, Config{Registry: reg, Poll: time.Millisecond})
}

func TestFetchPageDirectSuccess(t *testing.T) {
	rec := &recorder{}
	e := newExecutor(t, testRegistry(t, 3), func(req *http.Request) (*http.Response, error) {
		rec.add(req)
		return newResponse(req, http.StatusOK, "<html>hi</html>"), nil
	})

	result, outcome, err := e.FetchPage(context.Background(), "https://example.com/post/1", nil)
	require.NoError(t, err)

	assert.Equal(t, "<html>hi</html>", string(result.Content))
	assert.Equal(t, "direct", result.Strategy)
	assert.Equal(t, "https://example.com/post/1", result.FinalURL)
	assert.Equal(t, Outcome{Succeeded: true, Strategy: "direct", Attempts: 1}, outcome)
	assert.Equal(t, []string{"direct"}, rec.personas)
}

func TestFetchPageCascadeOrderIsDeterministic(t *testing.T) {
	const total = 6
	for n := 0; n < total; n++ {
		reg := testRegistry(t, total)
		names := []string{"direct"}
		for _, s := range reg.Strategies() {
			names = append(names, s.Name)
		}
		accept := names[n+1]

		rec := &recorder{}
		e := newExecutor(t, reg, func(req *http.Request) (*http.Response, error) {
			rec.add(req)
			if req.Header.Get("X-Persona") == accept {
				return newResponse(req, http.StatusOK, "ok"), nil
			}
			return newResponse(req, http.StatusForbidden, "blocked"), nil
		})

		result, outcome, err := e.FetchPage(context.Background(), "https://example.com/p", cancel.Never)
		require.NoError(t, err)
		assert.Equal(t, accept, result.Strategy)
		assert.Equal(t, n+2, outcome.Attempts)
		// direct, then strategies 1..N+1 exactly once each
		assert.Equal(t, names[:n+2], rec.personas, "n=%d", n)
	}
}

func TestFetchPageExhausted(t *testing.T) {
	rec := &recorder{}
	e := newExecutor(t, testRegistry(t, 3), func(req *http.Request) (*http.Response, error) {
		rec.add(req)
		if req.Header.Get("X-Persona") == "b" {
			return nil, io.ErrUnexpectedEOF
		}
		return newResponse(req, http.StatusForbidden, ""), nil
	})

	result, outcome, err := e.FetchPage(context.Background(), "https://example.com/p", nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExhausted))
	assert.True(t, errors.IsType(err, errors.ErrorTypeBlocked), "last error is kept as the cause")
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, 4, outcome.Attempts)
	assert.Equal(t, []string{"direct", "a", "b", "c"}, rec.personas)
}

func TestFetchPageCancelledBeforeNextStrategy(t *testing.T) {
	rec := &recorder{}
	var flag cancel.Flag
	e := newExecutor(t, testRegistry(t, 5), func(req *http.Request) (*http.Response, error) {
		rec.add(req)
		if req.Header.Get("X-Persona") == "b" {
			flag.Cancel()
		}
		return newResponse(req, http.StatusForbidden, ""), nil
	})

	_, outcome, err := e.FetchPage(context.Background(), "https://example.com/p", &flag)
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, []string{"direct", "a", "b"}, rec.personas)
}

func TestFetchPageCancelledDuringDelay(t *testing.T) {
	slow := strategy.Strategy{Name: "slow", Headers: strategy.Headers{"X-Persona": "slow"}, Delay: pace.Seconds(10, 10)}
	reg, err := strategy.NewRegistry(persona("direct"), []strategy.Strategy{slow})
	require.NoError(t, err)

	e := newExecutor(t, reg, func(req *http.Request) (*http.Response, error) {
		return newResponse(req, http.StatusForbidden, ""), nil
	})
	e.poll = 5 * time.Millisecond

	var flag cancel.Flag
	go func() {
		time.Sleep(20 * time.Millisecond)
		flag.Cancel()
	}()

	start := time.Now()
	_, _, err = e.FetchPage(context.Background(), "https://example.com/p", &flag)
	assert.True(t, errors.IsCancelled(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFreshScopeAndNavigation(t *testing.T) {
	reg, err := strategy.NewRegistry(persona("direct"), []strategy.Strategy{
		{
			Name:    "stealthy",
			Scope:   strategy.Fresh,
			Headers: strategy.Headers{"X-Persona": "stealthy", "Referer": strategy.PlaceholderOrigin + "/"},
			Navigation: []strategy.NavStep{
				{Target: strategy.SiteRoot, Headers: strategy.Headers{"X-Persona": "nav"}},
			},
		},
	})
	require.NoError(t, err)

	rec := &recorder{}
	var referer string
	e := newExecutor(t, reg, func(req *http.Request) (*http.Response, error) {
		rec.add(req)
		switch req.Header.Get("X-Persona") {
		case "direct":
			resp := newResponse(req, http.StatusForbidden, "")
			resp.Header.Set("Set-Cookie", "tainted=1; Path=/")
			return resp, nil
		case "nav":
			return newResponse(req, http.StatusOK, "root"), nil
		default:
			referer = req.Header.Get("Referer")
			if _, err := req.Cookie("tainted"); err == nil {
				return newResponse(req, http.StatusForbidden, ""), nil
			}
			return newResponse(req, http.StatusOK, "page"), nil
		}
	})

	result, _, err := e.FetchPage(context.Background(), "https://example.com/post/9", nil)
	require.NoError(t, err)
	assert.Equal(t, "page", string(result.Content))
	assert.Equal(t, []string{"direct", "nav", "stealthy"}, rec.personas)
	assert.Equal(t, []string{"/post/9", "/", "/post/9"}, rec.paths)
	assert.Equal(t, "https://example.com/", referer)
}

func TestNavigationFailureIsIgnored(t *testing.T) {
	reg, err := strategy.NewRegistry(persona("direct"), []strategy.Strategy{
		{
			Name:       "primed",
			Headers:    strategy.Headers{"X-Persona": "primed"},
			Navigation: []strategy.NavStep{{Target: strategy.SiteRoot, Headers: strategy.Headers{"X-Persona": "nav"}}},
		},
	})
	require.NoError(t, err)

	e := newExecutor(t, reg, func(req *http.Request) (*http.Response, error) {
		switch req.Header.Get("X-Persona") {
		case "nav":
			return nil, io.ErrUnexpectedEOF
		case "primed":
			return newResponse(req, http.StatusOK, "ok"), nil
		}
		return newResponse(req, http.StatusServiceUnavailable, ""), nil
	})

	result, _, err := e.FetchPage(context.Background(), "https://example.com/p", nil)
	require.NoError(t, err)
	assert.Equal(t, "primed", result.Strategy)
}

func TestNavigationStepTimeout(t *testing.T) {
	var mu sync.Mutex
	remaining := map[string]time.Duration{}
	sess, err := session.New(session.Options{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		deadline, ok := req.Context().Deadline()
		require.True(t, ok)
		mu.Lock()
		remaining[req.Header.Get("X-Persona")] = time.Until(deadline)
		mu.Unlock()
		return newResponse(req, http.StatusOK, ""), nil
	}}})
	require.NoError(t, err)
	e := New(sess, Config{Registry: testRegistry(t, 1), Poll: time.Millisecond, Timeouts: Timeouts{Navigation: time.Minute}})

	page, _ := url.Parse("https://example.com/p")
	steps := []strategy.NavStep{
		{Target: strategy.SiteRoot, Headers: strategy.Headers{"X-Persona": "root"}, Timeout: 2 * time.Second},
		{Target: strategy.OriginPage, Headers: strategy.Headers{"X-Persona": "origin"}},
	}
	require.NoError(t, e.Navigate(context.Background(), e.Session(), steps, page, "p", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, remaining["root"], 2*time.Second)
	assert.Greater(t, remaining["origin"], 30*time.Second)
}

func TestOnAttemptHook(t *testing.T) {
	sess, err := session.New(session.Options{Transport: &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Persona") == "b" {
			return newResponse(req, http.StatusOK, ""), nil
		}
		return newResponse(req, http.StatusForbidden, ""), nil
	}}})
	require.NoError(t, err)

	var seen []string
	e := New(sess, Config{Registry: testRegistry(t, 3), OnAttempt: func(name string) { seen = append(seen, name) }, Logger: logger.NewTestLogger()})

	_, _, err = e.FetchPage(context.Background(), "https://example.com/p", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "a", "b"}, seen)
}

func TestInvalidURL(t *testing.T) {
	e := newExecutor(t, testRegistry(t, 1), func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, _, err := e.FetchPage(context.Background(), "not a url", nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestProbeAndAux(t *testing.T) {
	var probeReferer string
	e := newExecutor(t, testRegistry(t, 1), func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/exists.mp3":
			probeReferer = req.Header.Get("Referer")
			assert.Equal(t, http.MethodHead, req.Method)
			return newResponse(req, http.StatusOK, ""), nil
		case "/api/audio/1":
			return newResponse(req, http.StatusOK, `{"src":"https://cdn.example.com/1.mp3"}`), nil
		}
		return newResponse(req, http.StatusNotFound, ""), nil
	})
	e.registry = mustRegistryWithProbe(t)

	page, _ := url.Parse("https://example.com/post/1")
	ctx := context.Background()

	ok, err := e.Probe(ctx, "https://example.com/exists.mp3", page, 0, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/", probeReferer)

	ok, err = e.Probe(ctx, "https://example.com/missing.mp3", page, time.Second, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Probe(ctx, "https://example.com/exists.mp3", page, 0, cancel.Func(func() bool { return true }))
	assert.True(t, errors.IsCancelled(err))

	body, ok, err := e.FetchAux(ctx, "https://example.com/api/audio/1", page, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(body), "cdn.example.com")

	_, ok, _ = e.FetchAux(ctx, "https://example.com/api/audio/2", page, nil)
	assert.False(t, ok)
}

func TestProbeAcceptsEncodedHeadResponse(t *testing.T) {
	e := newExecutor(t, testRegistry(t, 1), func(req *http.Request) (*http.Response, error) {
		resp := newResponse(req, http.StatusOK, "")
		resp.Header.Set("Content-Type", "audio/mpeg")
		resp.Header.Set("Content-Encoding", "gzip")
		return resp, nil
	})
	e.registry = mustRegistryWithProbe(t)
	page, _ := url.Parse("https://example.com/post/1")

	ok, err := e.Probe(context.Background(), "https://example.com/live.mp3", page, 0, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWarm(t *testing.T) {
	e := newExecutor(t, testRegistry(t, 1), func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/blocked" {
			return newResponse(req, http.StatusForbidden, ""), nil
		}
		return newResponse(req, http.StatusOK, ""), nil
	})

	assert.NoError(t, e.Warm(context.Background(), "https://example.com/ok"))
	assert.True(t, errors.IsType(e.Warm(context.Background(), "https://example.com/blocked"), errors.ErrorTypeBlocked))
}

func mustRegistryWithProbe(t *testing.T) *strategy.Registry {
	t.Helper()
	reg, err := strategy.NewRegistry(persona("direct"), nil,
		strategy.WithProbeHeaders(strategy.Headers{"Referer": strategy.PlaceholderOrigin + "/"}))
	require.NoError(t, err)
	return reg
}
