package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audiograb/pkg/auth"
	"audiograb/pkg/cancel"
	"audiograb/pkg/config"
	"audiograb/pkg/errors"
	"audiograb/pkg/grabber"
	"audiograb/pkg/logger"
	"audiograb/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Grab command flags
	formats       []string
	overwrite     string
	noGate        bool
	noSpeculative bool
	pageTimeout   time.Duration
	noCookies     bool
)

// grabCmd represents the grab command
var grabCmd = &cobra.Command{
	Use:   "grab <url>",
	Short: "Download the audio files found on a page",
	Long: `Download every audio file a page embeds.

The page is requested with progressively more browser-like personas until one
is accepted. Audio candidates are then extracted and each is downloaded, falling
back across transports when a server refuses one. Files are named after the page
title. Press Ctrl-C to stop; no partial file is left behind.`,
	Example: `  # Download with default settings
  audiograb grab https://example.com/post/12345

  # Only keep mp3 files, overwrite existing ones
  audiograb grab https://example.com/post/12345 --format mp3 --overwrite overwrite

  # Always run the probing heuristics
  audiograb grab https://example.com/post/12345 --no-gate`,
	Args: cobra.ExactArgs(1),
	RunE: runGrab,
}

func init() {
	rootCmd.AddCommand(grabCmd)
	addRunFlags(grabCmd)
}

// addRunFlags registers the flags shared by grab and batch
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&formats, "format", nil, "only keep these formats (mp3, m4a, wav, flac, audio)")
	cmd.Flags().StringVar(&overwrite, "overwrite", "", "existing files: skip, prompt or overwrite")
	cmd.Flags().BoolVar(&noGate, "no-gate", false, "run the probing heuristics even when cheaper ones found audio")
	cmd.Flags().BoolVar(&noSpeculative, "no-speculative", false, "disable the probing heuristics and API lookups")
	cmd.Flags().DurationVar(&pageTimeout, "timeout", 0, "page request timeout")
	cmd.Flags().BoolVar(&noCookies, "no-cookies", false, "do not use stored browser cookies")
}

func runFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if len(formats) > 0 {
		flags["format"] = formats
	}
	if overwrite != "" {
		flags["overwrite"] = overwrite
	}
	if noGate {
		flags["no-gate"] = true
	}
	if noSpeculative {
		flags["no-speculative"] = true
	}
	if pageTimeout > 0 {
		flags["timeout"] = pageTimeout
	}
	return flags
}

func runGrab(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, runFlags())
	if err != nil {
		return err
	}

	g, err := newGrabber(cfg)
	if err != nil {
		return err
	}

	var stop cancel.Flag
	defer onInterrupt(stop.Cancel)()

	rep := newReporter()
	ui.PrintInfo("Output", cfg.Output.Directory)
	result, err := g.Run(context.Background(), grabber.Request{
		PageURL:    args[0],
		Cancel:     &stop,
		OnLog:      rep.Log,
		OnProgress: rep.Progress,
		Overwrite:  overwriteDecider(cfg),
	})
	rep.Close()

	switch {
	case errors.IsCancelled(err):
		ui.PrintWarning("stopped")
		return nil
	case err != nil:
		return err
	}

	printResult(result)
	if result.Succeeded == 0 && result.Failed > 0 {
		return fmt.Errorf("no file could be downloaded")
	}
	return nil
}

// newGrabber wires the stored cookies into a Grabber. A cookie store that cannot be opened is not fatal.
func newGrabber(cfg *config.Config) (*grabber.Grabber, error) {
	opts := []grabber.Option{grabber.WithLogger(logger.GetLogger())}
	if !noCookies {
		if store, err := auth.NewManager(); err == nil {
			opts = append(opts, grabber.WithCookies(store))
		} else {
			logger.WithError(err).Warn("Cookie store unavailable, continuing without stored cookies")
		}
	}
	return grabber.New(cfg, opts...)
}

func overwriteDecider(cfg *config.Config) grabber.OverwriteDecider {
	return grabber.Policy(cfg.Output.Overwrite, ui.NewPrompter().OverwriteExisting)
}

// onInterrupt calls stop on the first Ctrl-C. A second one exits immediately. The returned func releases the handler.
func onInterrupt(stop func()) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			ui.PrintWarning("\nStopping after the current step, press Ctrl-C again to quit")
			stop()
		case <-done:
			return
		}
		select {
		case <-sigs:
			os.Exit(130)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func printResult(r *grabber.Result) {
	fmt.Println()
	if r.Skipped > 0 {
		ui.PrintInfo("Skipped", fmt.Sprintf("%d existing file(s)", r.Skipped))
	}
	if r.Failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d download(s) failed", r.Failed, r.Attempted))
	}
	for _, f := range r.Files {
		fmt.Printf("  %s %s\n", ui.Green("✓"), f)
	}
	ui.PrintSuccess(fmt.Sprintf("Done: %d of %d file(s)", r.Succeeded, r.Attempted))
}

// reporter interleaves narration lines with one progress bar per download
type reporter struct {
	progress *ui.FileProgress
	active   bool
	prefix   string
}

func newReporter() *reporter {
	return &reporter{progress: ui.NewFileProgress(os.Stdout)}
}

func (r *reporter) Log(line string) {
	if r.active {
		r.progress.Abort()
		r.active = false
	}
	fmt.Printf("%s %s%s\n", ui.Cyan("›"), r.prefix, line)
}

func (r *reporter) Progress(written, total int64) {
	if !r.active {
		r.progress.Start("downloading")
		r.active = true
	}
	r.progress.Update(written, total)
}

func (r *reporter) Close() {
	if r.active {
		r.progress.Abort()
		r.active = false
	}
}
