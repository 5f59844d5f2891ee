// Command batch runs a directory of lab reports through the pipeline and
// prints a per-state summary. With -watch it keeps processing new files as
// they appear until interrupted.
// Usage: go run ./cmd/batch -dir ./reports -provider anthropic -out results.xlsx
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/semaphore"

	"bloodagent/internal/app"
	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/ingest"
	"bloodagent/internal/logging"
)

type options struct {
	dir         string
	prompt      string
	language    string
	provider    string
	model       string
	baseURL     string
	apiKey      string
	concurrency int
	dryRun      bool
	out         string
	watch       bool
	debounce    time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("batch.failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("batch", pflag.ContinueOnError)
	fs.StringVarP(&o.dir, "dir", "d", ".", "directory of lab reports")
	fs.StringVarP(&o.prompt, "prompt", "p", "", "instruction prompt for the batch")
	fs.StringVarP(&o.language, "language", "l", "", `report language hint such as "mkd+eng" (empty uses pipeline.language)`)
	fs.StringVar(&o.provider, "provider", "", "model provider: openai, anthropic, gemini or ollama")
	fs.StringVar(&o.model, "model", "", "model name")
	fs.StringVar(&o.baseURL, "base-url", "", "provider base URL (required for ollama)")
	fs.StringVar(&o.apiKey, "api-key", "", "provider API key")
	fs.IntVarP(&o.concurrency, "concurrency", "c", 0, "documents processed in parallel (0 uses config)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "resolve configuration and list documents without calling a model")
	fs.StringVarP(&o.out, "out", "o", "", "write results to this .xlsx workbook or .csv file")
	fs.BoolVarP(&o.watch, "watch", "w", false, "keep watching dir for new reports")
	fs.DurationVar(&o.debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is processed")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

// cliLayer is the highest-precedence model layer.
func (o options) cliLayer() config.ModelLayer {
	return config.ModelLayer{
		Name:     "cli",
		Provider: o.provider,
		Model:    o.model,
		BaseURL:  o.baseURL,
		APIKey:   o.apiKey,
	}
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)
	if o.concurrency > 0 {
		cfg.Pipeline.Concurrency = o.concurrency
	}

	model, err := config.ResolveModelConfig(o.cliLayer(), cfg.Model.Layer(), config.DefaultModelLayer())
	if err != nil {
		return err
	}
	slog.Info("batch.model.resolved", "model", model.String())

	maxBytes := cfg.Server.MaxUploadMB << 20
	dedup := newDeduper()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := collect(o.dir, maxBytes, dedup)
	if err != nil {
		return err
	}

	if o.dryRun {
		fmt.Fprintf(stdout, "model: %s\n", model)
		if o.language != "" {
			fmt.Fprintf(stdout, "language: %s\n", o.language)
		}
		for _, d := range docs {
			fmt.Fprintf(stdout, "would process %s (%s, %d bytes)\n", d.Filename, d.Kind, len(d.Data))
		}
		return nil
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var results []*domain.PipelineResult
	if len(docs) > 0 {
		results, err = a.Pipeline.Run(ctx, domain.Batch{Documents: docs, Model: model, Prompt: o.prompt, Language: o.language})
		if err != nil {
			return err
		}
	} else if !o.watch {
		return fmt.Errorf("no supported documents in %s", o.dir)
	}

	if o.watch {
		more, err := watch(ctx, a, o, model, maxBytes, dedup, cfg.Pipeline.Concurrency)
		results = append(results, more...)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	printSummary(stdout, results)
	if a.Validator != nil {
		for _, f := range a.Validator.Flags() {
			fmt.Fprintf(stdout, "warning: %s\n", f)
		}
	}

	if o.out != "" {
		if err := writeReport(o.out, results); err != nil {
			return err
		}
		slog.Info("batch.report.written", "path", o.out, "documents", len(results))
	}
	return nil
}

// collect reads every supported file in dir, skipping rejects and duplicate content.
func collect(dir string, maxBytes int64, dedup *deduper) ([]domain.Document, error) {
	paths, err := ingest.ScanDir(dir)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		doc, ok := load(p, maxBytes, dedup)
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func load(path string, maxBytes int64, dedup *deduper) (domain.Document, bool) {
	doc, err := ingest.FromFile(path, maxBytes)
	if err != nil {
		slog.Warn("ingest.rejected", "path", path, "error", err)
		return domain.Document{}, false
	}
	if !dedup.first(doc.ContentHash) {
		slog.Info("ingest.duplicate", "path", path, "content_hash", doc.ContentHash)
		return domain.Document{}, false
	}
	return doc, true
}

// watch submits each new file as its own batch, at most limit at a time,
// until ctx is cancelled.
func watch(ctx context.Context, a *app.App, o options, model domain.ModelConfig, maxBytes int64, dedup *deduper, limit int) ([]*domain.PipelineResult, error) {
	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{Root: o.dir, Debounce: o.debounce})
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	slog.Info("batch.watch.started", "dir", o.dir)

	var (
		mu      sync.Mutex
		results []*domain.PipelineResult
		wg      sync.WaitGroup
	)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return results, ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("batch.watch.error", "error", err)
		case p, ok := <-paths:
			if !ok {
				wg.Wait()
				return results, nil
			}
			doc, ok := load(p, maxBytes, dedup)
			if !ok {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				continue
			}
			br, err := a.Pipeline.Submit(ctx, domain.Batch{Documents: []domain.Document{doc}, Model: model, Prompt: o.prompt, Language: o.language})
			if err != nil {
				sem.Release(1)
				slog.Error("batch.watch.submit_failed", "path", p, "error", err)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				done := br.Wait()
				mu.Lock()
				results = append(results, done...)
				mu.Unlock()
			}()
		}
	}
}

// deduper remembers content hashes already queued.
type deduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newDeduper() *deduper {
	return &deduper{seen: make(map[string]bool)}
}

func (d *deduper) first(hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[hash] {
		return false
	}
	d.seen[hash] = true
	return true
}
