package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/joseph-ayodele/inspection-verifier/constants"
	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/export"
	"github.com/joseph-ayodele/inspection-verifier/internal/ingest"
	"github.com/joseph-ayodele/inspection-verifier/internal/pipeline"
	repo "github.com/joseph-ayodele/inspection-verifier/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir    = flag.String("dir", "", "directory with certificates to verify (required)")
		out    = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		hidden = flag.Bool("hidden", false, "include hidden files and directories")
		watch  = flag.Bool("watch", false, "after the batch, keep verifying files added to --dir")
		user   = flag.String("user", "", "user id recorded on stored documents")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "verificacion.xlsx")
	}

	common.LoadDotEnv(nil)
	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.OpenStore(ctx, cfg.Database, *inmem, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ingestor := ingest.NewFSIngestor(logger)
	files, _, stats, err := ingestor.CollectDirectory(ctx, *dir, !*hidden)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}
	logger.Info("scan complete",
		"files", len(files),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("verificando"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
	)

	finished := make(chan async.Event, 64)
	listener := func(ev async.Event) {
		switch ev.Type {
		case async.EventJobProgress, async.EventJobStarted:
			if !*watch {
				_ = bar.Set(ev.Progress)
			}
		case async.EventJobCompleted, async.EventJobFailed:
			select {
			case finished <- ev:
			default:
				logger.Warn("dropped completion event", "job_id", ev.JobID)
			}
		}
	}

	processor := pipeline.NewFromConfig(cfg.OCR, logger)
	queue := async.NewJobQueue(processor, repo.NewDocumentSaver(store.Repo), logger,
		async.WithFileTimeout(cfg.Queue.FileTimeout),
		async.WithListener(listener),
	)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := queue.Shutdown(sctx); err != nil {
			logger.Error("queue shutdown", "error", err)
		}
	}()

	if len(files) > 0 {
		jobID, err := queue.Submit(ctx, files, *user)
		if err != nil {
			logger.Error("failed to submit batch", "error", err)
			return
		}
		select {
		case <-finished:
		case <-ctx.Done():
			logger.Warn("interrupted before the batch finished", "job_id", jobID)
			return
		}
		_ = bar.Finish()

		job, _ := queue.Status(jobID)
		if err := writeReport(ctx, job, *out, logger); err != nil {
			logger.Error("failed to write report", "error", err)
			os.Exit(1)
		}
		printSummary(job, *out)
	} else {
		fmt.Println("No certificates found.")
	}

	if *watch {
		watchDir(ctx, *dir, !*hidden, *user, ingestor, queue, finished, logger)
	}
}

func writeReport(ctx context.Context, job async.Job, out string, logger *slog.Logger) error {
	raw, err := export.NewService(logger).ExportJobXLSX(ctx, job)
	if err != nil {
		return err
	}
	return os.WriteFile(out, raw, 0o644)
}

func printSummary(job async.Job, out string) {
	counts := map[constants.VerificationStatus]int{}
	failures := 0
	for _, r := range job.Results {
		if r.Failed() {
			failures++
			continue
		}
		counts[r.Analysis.Status]++
	}
	fmt.Printf("Verification complete!\n")
	fmt.Printf("- Files: %d\n", len(job.Files))
	fmt.Printf("- Valid: %d\n", counts[constants.StatusValid])
	fmt.Printf("- Probably valid: %d\n", counts[constants.StatusProbablyValid])
	fmt.Printf("- Suspicious: %d\n", counts[constants.StatusSuspicious])
	fmt.Printf("- Invalid: %d\n", counts[constants.StatusInvalid])
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", out)
}

// watchDir submits each new file as its own job until ctx is done.
func watchDir(ctx context.Context, dir string, skipHidden bool, user string, ing *ingest.FSIngestor, queue *async.JobQueue, finished <-chan async.Event, logger *slog.Logger) {
	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:      []string{dir},
		SkipHidden: skipHidden,
		Debounce:   500 * time.Millisecond,
	}, logger)
	if err != nil {
		logger.Error("failed to watch directory", "dir", dir, "error", err)
		return
	}
	fmt.Printf("Watching %s for new certificates (Ctrl-C to stop)\n", dir)

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			c, err := ing.Inspect(ctx, p)
			if err != nil {
				logger.Warn("skipping file", "path", p, "error", err)
				continue
			}
			if _, err := queue.Submit(ctx, []async.File{c.File}, user); err != nil {
				logger.Error("failed to submit file", "path", p, "error", err)
			}
		case ev := <-finished:
			job, found := queue.Status(ev.JobID)
			if !found || len(job.Results) == 0 {
				continue
			}
			r := job.Results[0]
			if r.Failed() {
				fmt.Printf("%s: error: %s\n", r.File.OriginalName, r.Error)
				continue
			}
			fmt.Printf("%s: %s\n", r.File.OriginalName, r.Analysis.Summary)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
