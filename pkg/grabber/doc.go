// Package grabber provides the core functionality for downloading the audio on a web page.
//
// The grabber package orchestrates one run end to end, coordinating the request
// cascade, candidate extraction, storage management and the download transports.
//
// Architecture:
//
// A Run:
//   - Fetches the page, escalating through the persona table until one is accepted
//   - Extracts audio candidates with the cheap heuristics first, probing only when needed
//   - Deduplicates and filters candidates, then names them after the page title
//   - Downloads each candidate, falling back across transports on failure
//
// Usage:
//
//	g, err := grabber.New(config.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var stop cancel.Flag
//	result, err := g.Run(ctx, grabber.Request{
//	    PageURL: "https://example.com/post/123",
//	    Cancel:  &stop,
//	    OnLog:   func(line string) { fmt.Println(line) },
//	})
//
// Cancellation:
//
// The Cancel checker is polled between attempts, during pauses and before every
// chunk write. A cancelled run returns the partial Result with a cancelled error
// and leaves no partial file behind.
//
// Storage:
//
// Files are saved as {title}.{ext}, or {title}_{n}.{ext} when a page carries more
// than one candidate. Existing files are skipped unless the Overwrite decider
// allows replacing them.
package grabber
