package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"audiograb/internal/queue"
	"audiograb/pkg/checkpoint"
	"audiograb/pkg/grabber"
	"audiograb/pkg/logger"
	"audiograb/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	notify bool
	resume bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file|->",
	Short: "Grab every page listed in a file, one at a time",
	Long: `Read page URLs from a file, or stdin when the argument is "-", one per line.
Blank lines and lines starting with # are ignored. Pages run one after another
and a summary table is printed at the end.

With --resume, pages that completed in an earlier run of the same list are
skipped. The checkpoint is removed once every page has succeeded.`,
	Example: `  audiograb batch pages.txt
  audiograb batch pages.txt --resume
  cat pages.txt | audiograb batch - --format mp3 --notify`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRunFlags(batchCmd)
	batchCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the batch finishes")
	batchCmd.Flags().BoolVar(&resume, "resume", false, "skip pages completed by an earlier run of the same list")
}

func runBatch(cmd *cobra.Command, args []string) error {
	pages, err := readPages(args[0])
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no URLs in %s", args[0])
	}

	cfg, err := loadConfig(cmd, runFlags())
	if err != nil {
		return err
	}
	g, err := newGrabber(cfg)
	if err != nil {
		return err
	}

	var (
		cpm *checkpoint.Manager
		cp  *checkpoint.Checkpoint
	)
	if resume {
		cpm, cp, err = openCheckpoint(args[0], pages)
		if err != nil {
			return err
		}
		remaining := cp.Remaining(pages)
		if done := len(pages) - len(remaining); done > 0 {
			ui.PrintInfo("Resuming", fmt.Sprintf("%d of %d pages already done", done, len(pages)))
		}
		if len(remaining) == 0 {
			return cpm.Delete()
		}
		pages = remaining
	}

	rep := newReporter()
	q := queue.New(g, grabber.Request{
		OnLog:      rep.Log,
		OnProgress: rep.Progress,
		Overwrite:  overwriteDecider(cfg),
	}, logger.GetLogger())
	q.Start()
	defer onInterrupt(q.Cancel)()

	go func() {
		for i, page := range pages {
			if _, err := q.Submit(page); err != nil {
				logger.WithError(err).Error("Failed to queue page")
				break
			}
			logger.GetLogger().DebugWithFields("Queued page", map[string]interface{}{"index": i, "page_url": page})
		}
		q.Close()
	}()

	var rows []ui.SummaryRow
	files, failed, stopped := 0, 0, false
	for res := range q.Results() {
		row := ui.SummaryRow{PageURL: res.Job.PageURL, Duration: res.Duration}
		cancelled := res.Cancelled()
		if res.Result != nil {
			row.Title = res.Result.Title
			row.Succeeded = res.Result.Succeeded
			row.Attempted = res.Result.Attempted
			files += len(res.Result.Files)
		}
		row.Status = ui.StatusOf(row.Succeeded, row.Attempted, res.Err, cancelled)
		switch row.Status {
		case ui.StatusFailed:
			failed++
		case ui.StatusCancelled:
			stopped = true
		case ui.StatusOK:
			if cp != nil {
				if err := cpm.RecordPage(cp, row.PageURL, row.Succeeded); err != nil {
					logger.WithError(err).Warn("Failed to update checkpoint")
				}
			}
		}
		rows = append(rows, row)
	}
	rep.Close()

	if cp != nil && failed == 0 && !stopped {
		if err := cpm.Delete(); err != nil {
			logger.WithError(err).Warn("Failed to remove checkpoint")
		}
	}

	fmt.Println()
	fmt.Println(ui.RenderSummary(rows))
	if notify {
		ui.NewNotifier().BatchDone(len(rows), files, failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(rows))
	}
	return nil
}

// openCheckpoint loads the list's checkpoint, creating it on the first run
func openCheckpoint(source string, pages []string) (*checkpoint.Manager, *checkpoint.Checkpoint, error) {
	id := checkpoint.ListID(pages)
	mgr, err := checkpoint.NewManager(id)
	if err != nil {
		return nil, nil, err
	}
	cp, err := mgr.LoadOrCreate(id, source, len(pages))
	if err != nil {
		return nil, nil, err
	}
	return mgr, cp, nil
}

// readPages reads URLs one per line, skipping blanks and # comments
func readPages(source string) ([]string, error) {
	var r io.Reader = os.Stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open URL list: %w", err)
		}
		defer f.Close()
		r = f
	}
	return parsePages(r)
}

func parsePages(r io.Reader) ([]string, error) {
	var pages []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pages = append(pages, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return pages, nil
}
