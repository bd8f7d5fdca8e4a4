package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string, tty bool) (*Prompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Prompter{
		in:    strings.NewReader(input),
		out:   out,
		isTTY: func(int) bool { return tty },
	}, out
}

func TestConfirm(t *testing.T) {
	p, out := newTestPrompter("y\n", true)
	assert.True(t, p.Confirm("Overwrite?"))
	assert.Contains(t, out.String(), "Overwrite?")

	p, _ = newTestPrompter("\n", true)
	assert.False(t, p.Confirm("Overwrite?"), "default is no")

	p, out = newTestPrompter("yes\n", false)
	assert.False(t, p.Confirm("Overwrite?"), "never asks without a terminal")
	assert.Empty(t, out.String())
}

func TestReadSecretWithoutTerminal(t *testing.T) {
	p, _ := newTestPrompter("  sid=abc; x=1 \n", false)
	secret, err := p.ReadSecret("Cookie")
	require.NoError(t, err)
	assert.Equal(t, "sid=abc; x=1", secret)
}

func TestFileProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewFileProgress(&buf)

	p.Update(10, 100) // no bar yet
	p.Start("Song.mp3")
	p.Update(50, 100)
	p.Update(100, 100)
	p.Done()
	p.Done()

	p.Start("Unknown.audio")
	p.Update(4096, 0)
	p.Abort()

	assert.Contains(t, buf.String(), "Song.mp3")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(2, 2, nil, false))
	assert.Equal(t, StatusPartial, StatusOf(1, 2, nil, false))
	assert.Equal(t, StatusFailed, StatusOf(0, 0, errors.New("no audio"), false))
	assert.Equal(t, StatusCancelled, StatusOf(1, 2, errors.New("cancelled"), true))
}

func TestRenderSummary(t *testing.T) {
	SetColor(false)
	out := RenderSummary([]SummaryRow{
		{PageURL: "https://example.com/post/1", Title: "Song", Succeeded: 2, Attempted: 2, Status: StatusOK, Duration: 3 * time.Second},
		{PageURL: "https://example.com/post/2", Status: StatusFailed},
	})

	assert.Contains(t, out, "PAGE")
	assert.Contains(t, out, "https://example.com/post/1")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, StatusFailed)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

type recordingSender struct{ titles, messages []string }

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func TestNotifierBatchDone(t *testing.T) {
	s := &recordingSender{}
	NewNotifierWithSender(s).BatchDone(3, 5, 1)
	require.Len(t, s.messages, 1)
	assert.Equal(t, "5 files from 3 pages, 1 pages failed", s.messages[0])
}
