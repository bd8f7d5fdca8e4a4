package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// FileProgress draws one byte progress bar per downloaded file
type FileProgress struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
	max int64
}

// NewFileProgress creates a reporter writing to w
func NewFileProgress(w io.Writer) *FileProgress {
	return &FileProgress{w: w}
}

// Start begins a new bar for name. Any bar still open is finished first.
func (p *FileProgress) Start(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finish()
	p.max = -1
	p.bar = progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(truncate(name, 40)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "━",
			SaucerHead:    "━",
			SaucerPadding: "─",
			BarStart:      "",
			BarEnd:        "",
		}),
	)
}

// Update matches download.ProgressFunc. A total of 0 keeps the bar indeterminate.
func (p *FileProgress) Update(written, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	if total > 0 && total != p.max {
		p.max = total
		p.bar.ChangeMax64(total)
	}
	_ = p.bar.Set64(written)
}

// Done closes the current bar
func (p *FileProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish()
}

// Abort removes the current bar without completing it
func (p *FileProgress) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Clear()
		p.bar = nil
	}
}

func (p *FileProgress) finish() {
	if p.bar == nil {
		return
	}
	if p.max > 0 {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Clear()
	}
	p.bar = nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
