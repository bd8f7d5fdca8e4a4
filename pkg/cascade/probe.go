package cascade

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"audiograb/pkg/cancel"
	"audiograb/pkg/errors"
	"audiograb/pkg/session"
)

// Probe issues an existence check for target using the registry's probe headers, rendered against page.
// timeout <= 0 uses the configured probe timeout. Transport failures count as "not found".
func (e *Executor) Probe(ctx context.Context, target string, page *url.URL, timeout time.Duration, c cancel.Checker) (bool, error) {
	if cancel.OrNever(c).Cancelled() {
		return false, errors.Cancelled()
	}
	if timeout <= 0 {
		timeout = e.timeouts.Probe
	}

	status, _, err := e.session.Head(ctx, session.Request{
		URL:     target,
		Headers: e.registry.Render(e.registry.ProbeHeaders(), page),
		Timeout: timeout,
		Persona: "probe",
	})
	if err != nil {
		return false, nil
	}
	return status == http.StatusOK, nil
}

// FetchAux GETs a helper resource (an API endpoint, say) with probe headers and returns the body on 200
func (e *Executor) FetchAux(ctx context.Context, target string, page *url.URL, c cancel.Checker) ([]byte, bool, error) {
	if cancel.OrNever(c).Cancelled() {
		return nil, false, errors.Cancelled()
	}

	resp, err := e.session.Fetch(ctx, session.Request{
		URL:     target,
		Headers: e.registry.Render(e.registry.ProbeHeaders(), page),
		Timeout: e.timeouts.Probe,
		Persona: "aux",
	}, e.maxBytes)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, false, nil
	}
	return resp.Body, true, nil
}

// Warm visits the page once with basic headers so the shared jar holds whatever the site hands out.
// It is best-effort.
func (e *Executor) Warm(ctx context.Context, rawURL string) error {
	page, err := url.Parse(rawURL)
	if err != nil {
		return errors.Transport(rawURL, err)
	}

	resp, err := e.session.Fetch(ctx, session.Request{
		URL:     rawURL,
		Headers: e.registry.Render(e.registry.ProbeHeaders(), page),
		Timeout: e.timeouts.Page,
		Persona: "warmup",
	}, 1<<16)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Blocked(rawURL, resp.StatusCode, "warmup refused")
	}
	return nil
}
