package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"audiograb/pkg/cancel"
	"audiograb/pkg/cascade"
	"audiograb/pkg/errors"
	"audiograb/pkg/extract"
	"audiograb/pkg/logger"
	"audiograb/pkg/pace"
	"audiograb/pkg/session"
	"audiograb/pkg/storage"
	"audiograb/pkg/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quickRegistry is the built-in table with every navigation pause removed
func quickRegistry(t *testing.T) *strategy.Registry {
	t.Helper()
	def := strategy.DefaultRegistry()

	transports := def.Transports()
	for i := range transports {
		for j := range transports[i].Navigation {
			transports[i].Navigation[j].Pause = pace.Range{}
		}
	}

	reg, err := def.With(strategy.WithTransports(transports...))
	require.NoError(t, err)
	return reg
}

// transportOf tells the built-in download personas apart by their headers
func transportOf(r *http.Request) string {
	switch {
	case r.Header.Get("Accept-Encoding") == "identity;q=1, *;q=0":
		return strategy.TransportBrowser
	case r.Header.Get("Pragma") == "no-cache":
		return strategy.TransportRange
	default:
		return strategy.TransportStandard
	}
}

type audioServer struct {
	*httptest.Server
	mu      sync.Mutex
	gets    []string
	headers []http.Header
	heads   int
	// reply decides the response for a GET of the audio path
	reply func(w http.ResponseWriter, r *http.Request)
}

func newAudioServer(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) *audioServer {
	s := &audioServer{reply: reply}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/track.mp3" {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>page</html>"))
			return
		}
		s.mu.Lock()
		if r.Method == http.MethodHead {
			s.heads++
		} else {
			s.gets = append(s.gets, transportOf(r))
			s.headers = append(s.headers, r.Header.Clone())
		}
		s.mu.Unlock()
		s.reply(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *audioServer) attempts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gets...)
}

func (s *audioServer) lastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return http.Header{}
	}
	return s.headers[len(s.headers)-1]
}

func (s *audioServer) headCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads
}

func serveAudio(body []byte) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(body)
		}
	}
}

func newExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	sess, err := session.New(session.Options{})
	require.NoError(t, err)
	c := cascade.New(sess, cascade.Config{Registry: quickRegistry(t)})
	if cfg.Logger == nil {
		cfg.Logger = logger.NewTestLogger()
	}
	return New(c, cfg)
}

func newTask(server *audioServer, dir string) *Task {
	return &Task{
		Candidate:   extract.Candidate{URL: server.URL + "/audio/track.mp3", Format: extract.FormatMP3},
		Destination: filepath.Join(dir, "track.mp3"),
		PageURL:     server.URL + "/post/1",
	}
}

func TestStandardTransportWritesFile(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 2000)
	server := newAudioServer(t, serveAudio(body))
	dir := t.TempDir()
	task := newTask(server, dir)

	var progress [][2]int64
	outcome, err := newExecutor(t, Config{}).Download(context.Background(), task, func(written, total int64) {
		progress = append(progress, [2]int64{written, total})
	})
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded)
	assert.Equal(t, strategy.TransportStandard, outcome.Strategy)
	assert.Equal(t, []string{strategy.TransportStandard}, server.attempts())
	assert.Equal(t, 1, server.headCount())
	assert.Equal(t, server.URL+"/post/1", server.lastHeaders().Get("Referer"))
	assert.Equal(t, server.URL, server.lastHeaders().Get("Origin"))
	assert.Equal(t, "audio", server.lastHeaders().Get("Sec-Fetch-Dest"))

	written, err := os.ReadFile(task.Destination)
	require.NoError(t, err)
	assert.Equal(t, body, written)
	assert.NoFileExists(t, task.Destination+".part")

	require.GreaterOrEqual(t, len(progress), 3)
	assert.Equal(t, [2]int64{int64(len(body)), int64(len(body))}, progress[len(progress)-1])
	assert.LessOrEqual(t, progress[0][0], int64(8192))
}

func TestStoreLearnsCommittedFile(t *testing.T) {
	server := newAudioServer(t, serveAudio([]byte("ID3 body")))
	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)

	task := newTask(server, dir)
	task.Store = store
	_, err = newExecutor(t, Config{}).Download(context.Background(), task, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.GetDownloadedCount())
	assert.True(t, store.IsDownloaded("track.mp3"))
	assert.FileExists(t, filepath.Join(store.GetOutputDir(), "track.mp3"))
}

func TestHTMLResponseEscalates(t *testing.T) {
	body := []byte("ID3 range body")
	server := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>please verify you are human</html>"))
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Range", "bytes 0-13/14")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body)
	})
	task := newTask(server, t.TempDir())

	outcome, err := newExecutor(t, Config{}).Download(context.Background(), task, nil)
	require.NoError(t, err)

	assert.Equal(t, strategy.TransportRange, outcome.Strategy)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, []string{strategy.TransportStandard, strategy.TransportRange}, server.attempts())
	assert.Equal(t, int64(14), task.Total)

	written, err := os.ReadFile(task.Destination)
	require.NoError(t, err)
	assert.Equal(t, body, written)
}

func TestAllTransportsFail(t *testing.T) {
	server := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	task := newTask(server, t.TempDir())

	outcome, err := newExecutor(t, Config{}).Download(context.Background(), task, nil)
	require.Error(t, err)

	assert.False(t, outcome.Succeeded)
	assert.Equal(t, 3, outcome.Attempts)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExhausted))
	assert.True(t, errors.IsType(err, errors.ErrorTypeBlocked))
	assert.Equal(t, []string{strategy.TransportStandard, strategy.TransportRange, strategy.TransportBrowser}, server.attempts())
	assert.NoFileExists(t, task.Destination)
	assert.NoFileExists(t, task.Destination+".part")
}

func TestEmptyBodyIsAFailure(t *testing.T) {
	server := newAudioServer(t, serveAudio(nil))
	task := newTask(server, t.TempDir())

	_, err := newExecutor(t, Config{}).Download(context.Background(), task, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExhausted))
	assert.NoFileExists(t, task.Destination)
}

func TestCancelBeforeChunkWriteLeavesNoPartial(t *testing.T) {
	server := newAudioServer(t, serveAudio(bytes.Repeat([]byte{0xff}, 64*1024)))
	task := newTask(server, t.TempDir())

	var flag cancel.Flag
	task.Cancel = &flag

	outcome, err := newExecutor(t, Config{ChunkSize: 1024}).Download(context.Background(), task, func(written, total int64) {
		flag.Cancel()
	})
	require.Error(t, err)

	assert.True(t, errors.IsCancelled(err))
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, []string{strategy.TransportStandard}, server.attempts(), "no fallback after cancellation")
	assert.NoFileExists(t, task.Destination)
	assert.NoFileExists(t, task.Destination+".part")
}

func TestCancelledBeforeAnyRequest(t *testing.T) {
	server := newAudioServer(t, serveAudio([]byte("x")))
	task := newTask(server, t.TempDir())
	task.Cancel = cancel.Func(func() bool { return true })

	_, err := newExecutor(t, Config{}).Download(context.Background(), task, nil)
	assert.True(t, errors.IsCancelled(err))
	assert.Empty(t, server.attempts())
}

func TestBrowserTransportSendsIdentityAndRange(t *testing.T) {
	server := newAudioServer(t, func(w http.ResponseWriter, r *http.Request) {
		if transportOf(r) != strategy.TransportBrowser {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		serveAudio([]byte("RIFF"))(w, r)
	})
	task := newTask(server, t.TempDir())
	task.Candidate.Format = extract.FormatWAV

	outcome, err := newExecutor(t, Config{}).Download(context.Background(), task, nil)
	require.NoError(t, err)

	assert.Equal(t, strategy.TransportBrowser, outcome.Strategy)
	got := server.lastHeaders()
	assert.Equal(t, "bytes=0-", got.Get("Range"))
	assert.Equal(t, "same-origin", got.Get("Sec-Fetch-Site"))
}

func TestInvalidCandidateURL(t *testing.T) {
	_, err := newExecutor(t, Config{}).Download(context.Background(), &Task{
		Candidate:   extract.Candidate{URL: "not a url"},
		Destination: filepath.Join(t.TempDir(), "x.mp3"),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}
