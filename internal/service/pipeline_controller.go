package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bloodagent/internal/config"
	"bloodagent/internal/convert"
	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// TextExtractor turns a document into per-page text.
type TextExtractor interface {
	Extract(ctx context.Context, client port.ProviderClient, documentID string, doc *domain.Document) (*domain.ExtractedText, error)
}

// TextAnonymizer replaces identifiers in extracted text.
type TextAnonymizer interface {
	Anonymize(ctx context.Context, client port.ProviderClient, extracted *domain.ExtractedText) (*domain.AnonymizedText, error)
}

// ReportConverter maps anonymized text onto a LabResult.
type ReportConverter interface {
	Convert(ctx context.Context, client port.ProviderClient, anonymized *domain.AnonymizedText, instruction string) (*convert.Conversion, error)
}

// ResultValidator assigns LOINC codes.
type ResultValidator interface {
	Validate(result *domain.LabResult) (*domain.LabResult, domain.Coverage)
	Flags() []string
}

// Stages bundles the four pipeline stages.
type Stages struct {
	Extractor  TextExtractor
	Anonymizer TextAnonymizer
	Converter  ReportConverter
	Validator  ResultValidator
}

// ClientFactory builds the provider client for a resolved model config.
type ClientFactory func(model domain.ModelConfig) (port.ProviderClient, error)

// ControllerConfig holds worker pool settings.
type ControllerConfig struct {
	Concurrency   int
	StageTimeout  time.Duration
	DefaultPrompt string
}

// PipelineService runs batches of lab reports through the pipeline.
type PipelineService interface {
	// Submit validates the batch, assigns document identifiers and starts
	// processing. ctx bounds the batch: cancelling it cancels the batch.
	Submit(ctx context.Context, batch domain.Batch) (*BatchRun, error)
	// Run is Submit followed by Wait.
	Run(ctx context.Context, batch domain.Batch) ([]*domain.PipelineResult, error)
	// Result returns the terminal result for a document, or
	// domain.ErrResultNotFound when it is unknown or still in flight.
	Result(ctx context.Context, documentID string) (*domain.PipelineResult, error)
	// Progress returns a snapshot of an in-flight document.
	Progress(documentID string) (*domain.PipelineResult, bool)
}

// BatchRun tracks one submitted batch.
type BatchRun struct {
	acks   []domain.Acknowledgement
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	results []*domain.PipelineResult
}

// NewFinishedRun returns a BatchRun that has already completed with results.
// It lets other PipelineService implementations report synchronous batches.
func NewFinishedRun(acks []domain.Acknowledgement, results []*domain.PipelineResult) *BatchRun {
	done := make(chan struct{})
	close(done)
	return &BatchRun{acks: acks, cancel: func() {}, done: done, results: results}
}

// Acks returns one acknowledgement per document, in submission order.
func (r *BatchRun) Acks() []domain.Acknowledgement {
	return append([]domain.Acknowledgement(nil), r.acks...)
}

// Done is closed when every document has reached a terminal state.
func (r *BatchRun) Done() <-chan struct{} {
	return r.done
}

// Cancel stops the batch. Documents that have not started are cancelled;
// started documents finish their current stage first.
func (r *BatchRun) Cancel() {
	r.cancel()
}

// Wait blocks until the batch finishes and returns results in completion order.
func (r *BatchRun) Wait() []*domain.PipelineResult {
	<-r.done
	return r.Results()
}

// Results returns the results recorded so far, in completion order.
func (r *BatchRun) Results() []*domain.PipelineResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.PipelineResult(nil), r.results...)
}

// Coverage sums LOINC coverage over the completed documents.
func (r *BatchRun) Coverage() domain.Coverage {
	var total domain.Coverage
	for _, res := range r.Results() {
		if res.Coverage != nil {
			total = total.Add(*res.Coverage)
		}
	}
	return total
}

func (r *BatchRun) record(res *domain.PipelineResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// ControllerOption customizes the controller.
type ControllerOption func(*pipelineController)

// WithArtifacts uploads anonymized text and lab results through store.
func WithArtifacts(store *ArtifactStore) ControllerOption {
	return func(c *pipelineController) { c.artifacts = store }
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) ControllerOption {
	return func(c *pipelineController) { c.now = now }
}

// errStopped marks a document cancelled before its next stage.
var errStopped = fmt.Errorf("document stopped: %w", domain.ErrCancelled)

type job struct {
	doc    domain.Document
	result *domain.PipelineResult
}

type pipelineController struct {
	stages    Stages
	newClient ClientFactory
	results   port.ResultRepository
	artifacts *ArtifactStore
	cfg       ControllerConfig
	now       func() time.Time

	mu       sync.RWMutex
	inflight map[string]*domain.PipelineResult
	// unstored holds terminal results the repository rejected.
	unstored map[string]*domain.PipelineResult
}

// NewPipelineController creates the pipeline controller.
func NewPipelineController(stages Stages, newClient ClientFactory, results port.ResultRepository, cfg ControllerConfig, opts ...ControllerOption) PipelineService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 5 * time.Minute
	}
	c := &pipelineController{
		stages:    stages,
		newClient: newClient,
		results:   results,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		inflight:  make(map[string]*domain.PipelineResult),
		unstored:  make(map[string]*domain.PipelineResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *pipelineController) Submit(ctx context.Context, batch domain.Batch) (*BatchRun, error) {
	if len(batch.Documents) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	model, err := config.ResolveModelConfig(config.ModelLayer{
		Name:     "batch",
		Provider: string(batch.Model.Provider),
		Model:    batch.Model.Model,
		BaseURL:  batch.Model.BaseURL,
		APIKey:   batch.Model.APIKey,
	})
	if err != nil {
		return nil, err
	}
	client, err := c.newClient(model)
	if err != nil {
		return nil, fmt.Errorf("building provider client: %w", err)
	}

	prompt := strings.TrimSpace(batch.Prompt)
	if prompt == "" {
		prompt = c.cfg.DefaultPrompt
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &BatchRun{cancel: cancel, done: make(chan struct{})}
	jobs := make([]job, len(batch.Documents))
	now := c.now()

	c.mu.Lock()
	for i := range batch.Documents {
		doc := batch.Documents[i]
		if doc.Language == "" {
			doc.Language = batch.Language
		}
		res := domain.NewPipelineResult(uuid.NewString(), &doc, model, now)
		c.inflight[res.DocumentID] = res
		jobs[i] = job{doc: doc, result: res}
		run.acks = append(run.acks, domain.Acknowledgement{
			DocumentID: res.DocumentID,
			Filename:   doc.Filename,
			Stages:     res.StageStatuses(),
		})
	}
	c.mu.Unlock()

	slog.Info("pipeline.batch.submitted",
		"documents", len(jobs),
		"provider", model.Provider,
		"model", model.Model,
		"concurrency", c.cfg.Concurrency,
	)

	go c.runBatch(runCtx, run, client, prompt, jobs)
	return run, nil
}

func (c *pipelineController) Run(ctx context.Context, batch domain.Batch) ([]*domain.PipelineResult, error) {
	run, err := c.Submit(ctx, batch)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

func (c *pipelineController) Result(ctx context.Context, documentID string) (*domain.PipelineResult, error) {
	res, err := c.results.GetByID(ctx, documentID)
	if err == nil {
		return res, nil
	}
	c.mu.RLock()
	kept, ok := c.unstored[documentID]
	c.mu.RUnlock()
	if ok {
		return kept.Clone(), nil
	}
	return nil, err
}

func (c *pipelineController) Progress(documentID string) (*domain.PipelineResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.inflight[documentID]
	if !ok {
		res, ok = c.unstored[documentID]
	}
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

func (c *pipelineController) runBatch(ctx context.Context, run *BatchRun, client port.ProviderClient, prompt string, jobs []job) {
	defer close(run.done)
	defer run.cancel()

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			c.process(ctx, client, prompt, j, run)
			return nil
		})
	}
	_ = g.Wait()

	counts := map[domain.DocumentState]int{}
	for _, res := range run.Results() {
		counts[res.State]++
	}
	cov := run.Coverage()
	slog.Info("pipeline.batch.finished",
		"documents", len(jobs),
		"completed", counts[domain.StateCompleted],
		"failed", counts[domain.StateFailed],
		"cancelled", counts[domain.StateCancelled],
		"loinc_coverage", cov.Percentage,
	)
}

// process walks one document through the state machine. Every exit path
// publishes exactly one terminal result.
func (c *pipelineController) process(ctx context.Context, client port.ProviderClient, prompt string, j job, run *BatchRun) {
	res := j.result
	defer c.publish(ctx, res, run)

	var extracted *domain.ExtractedText
	err := c.runStage(ctx, res, domain.StageExtraction, domain.StateExtracting, func(sctx context.Context) stageOutcome {
		out, err := c.stages.Extractor.Extract(sctx, client, res.DocumentID, &j.doc)
		if out == nil {
			return stageOutcome{status: domain.StageStatusFailed, err: err}
		}
		extracted = out
		attempts, flags := 0, []string(nil)
		for _, p := range out.Pages {
			attempts += p.Attempts
			for _, f := range p.Flags {
				flags = domain.AddFlag(flags, f)
			}
		}
		return stageOutcome{status: out.Status, flags: flags, attempts: attempts, err: err}
	})
	if err != nil {
		c.stop(res, domain.StageExtraction, err)
		return
	}

	var anonymized *domain.AnonymizedText
	err = c.runStage(ctx, res, domain.StageAnonymization, domain.StateAnonymizing, func(sctx context.Context) stageOutcome {
		out, err := c.stages.Anonymizer.Anonymize(sctx, client, extracted)
		if err != nil {
			return stageOutcome{status: domain.StageStatusFailed, err: err}
		}
		anonymized = out
		return stageOutcome{status: out.Status, flags: out.Flags, attempts: out.Attempts}
	})
	if err != nil {
		if !errors.Is(err, errStopped) {
			// Anonymization has no failed edge; the document ends at conversion.
			c.transition(res, domain.StateConverting)
		}
		c.stop(res, domain.StageAnonymization, err)
		return
	}
	c.saveArtifact(ctx, res, ArtifactAnonymizedText, func(actx context.Context) (string, error) {
		return c.artifacts.SaveAnonymizedText(actx, res.DocumentID, anonymized.Text)
	})

	var conv *convert.Conversion
	err = c.runStage(ctx, res, domain.StageConversion, domain.StateConverting, func(sctx context.Context) stageOutcome {
		out, err := c.stages.Converter.Convert(sctx, client, anonymized, prompt)
		if err != nil {
			o := stageOutcome{status: domain.StageStatusFailed, err: err}
			if out != nil {
				o.attempts = out.Attempts
			}
			return o
		}
		conv = out
		return stageOutcome{status: out.Status, flags: out.Flags, attempts: out.Attempts, message: strings.Join(out.Warnings, "; ")}
	})
	if err != nil {
		c.stop(res, domain.StageConversion, err)
		return
	}

	err = c.runStage(ctx, res, domain.StageValidation, domain.StateValidating, func(context.Context) stageOutcome {
		lab := *conv.Result
		lab.DocumentID = res.DocumentID
		lab.Status.Extraction = extracted.Status
		lab.Status.Anonymization = anonymized.Status
		validated, cov := c.stages.Validator.Validate(&lab)
		c.mutate(func() {
			res.LabResult = validated
			res.Coverage = &cov
		})
		return stageOutcome{status: validated.Status.Validation, flags: c.stages.Validator.Flags()}
	})
	if err != nil {
		c.stop(res, domain.StageValidation, err)
		return
	}

	c.saveArtifact(ctx, res, ArtifactLabResult, func(actx context.Context) (string, error) {
		return c.artifacts.SaveLabResult(actx, res.DocumentID, res.LabResult)
	})
	c.transition(res, domain.StateCompleted)
}

type stageOutcome struct {
	status   domain.StageStatus
	flags    []string
	attempts int
	message  string
	err      error
}

// runStage enters state and runs fn on a context detached from batch
// cancellation and bounded by the stage timeout. It returns errStopped
// without running fn when the batch was cancelled.
func (c *pipelineController) runStage(ctx context.Context, res *domain.PipelineResult, stage domain.Stage, state domain.DocumentState, fn func(context.Context) stageOutcome) error {
	if ctx.Err() != nil {
		return errStopped
	}

	started := c.now()
	c.mutate(func() {
		if err := res.Transition(state, started); err != nil {
			slog.Error("pipeline.transition.rejected", "document_id", res.DocumentID, "error", err)
		}
		rec := res.Stage(stage)
		rec.Status = domain.StageStatusRunning
		rec.StartedAt = &started
	})

	stageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StageTimeout)
	out := fn(stageCtx)
	cancel()

	finished := c.now()
	c.mutate(func() {
		rec := res.Stage(stage)
		rec.Status = out.status
		rec.Flags = out.flags
		rec.Attempts = out.attempts
		rec.Message = out.message
		rec.FinishedAt = &finished
		if out.err != nil {
			rec.Status = domain.StageStatusFailed
			rec.ErrorKind = domain.KindOf(out.err)
			rec.Message = out.err.Error()
		}
	})

	slog.Debug("pipeline.stage.finished",
		"document_id", res.DocumentID,
		"stage", stage,
		"status", out.status,
		"duration", finished.Sub(started),
	)
	return out.err
}

// stop ends the document at stage: cancelled for errStopped, failed otherwise.
func (c *pipelineController) stop(res *domain.PipelineResult, stage domain.Stage, err error) {
	now := c.now()
	c.mutate(func() {
		to, kind, msg := domain.StateFailed, domain.KindOf(err), err.Error()
		if errors.Is(err, errStopped) {
			to, kind, msg = domain.StateCancelled, domain.ErrorKindCancelled, fmt.Sprintf("batch cancelled before %s", stage)
		}
		if terr := res.Transition(to, now); terr != nil {
			slog.Error("pipeline.transition.rejected", "document_id", res.DocumentID, "error", terr)
		}
		res.Error = &domain.ErrorDetail{Stage: stage, Kind: kind, Message: msg}
		for i := range res.Stages {
			if res.Stages[i].Status == domain.StageStatusPending {
				res.Stages[i].Status = domain.StageStatusSkipped
			}
		}
	})
}

func (c *pipelineController) transition(res *domain.PipelineResult, to domain.DocumentState) {
	now := c.now()
	c.mutate(func() {
		if err := res.Transition(to, now); err != nil {
			slog.Error("pipeline.transition.rejected", "document_id", res.DocumentID, "error", err)
		}
	})
}

// saveArtifact uploads one artifact. Failures are logged and never fail the document.
func (c *pipelineController) saveArtifact(ctx context.Context, res *domain.PipelineResult, name string, upload func(context.Context) (string, error)) {
	if c.artifacts == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StageTimeout)
	defer cancel()

	key, err := upload(actx)
	if err != nil {
		slog.Warn("pipeline.artifact.failed", "document_id", res.DocumentID, "artifact", name, "error", err)
		return
	}
	c.mutate(func() {
		if res.Artifacts == nil {
			res.Artifacts = make(map[string]string)
		}
		res.Artifacts[name] = key
	})
}

// publish stores the terminal result once and releases the in-flight entry.
func (c *pipelineController) publish(ctx context.Context, res *domain.PipelineResult, run *BatchRun) {
	c.mu.RLock()
	snapshot := res.Clone()
	c.mu.RUnlock()

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StageTimeout)
	defer cancel()
	err := c.results.Insert(pctx, snapshot)
	if err != nil {
		slog.Error("pipeline.result.persist_failed", "document_id", snapshot.DocumentID, "error", err)
		snapshot.PersistError = err.Error()
	}

	c.mu.Lock()
	if err != nil {
		c.unstored[snapshot.DocumentID] = snapshot
	}
	delete(c.inflight, snapshot.DocumentID)
	c.mu.Unlock()
	run.record(snapshot)

	attrs := []any{"document_id", snapshot.DocumentID, "filename", snapshot.Filename, "state", snapshot.State}
	if snapshot.Error != nil {
		attrs = append(attrs, "stage", snapshot.Error.Stage, "error_kind", snapshot.Error.Kind)
	}
	slog.Info("pipeline.document.finished", attrs...)
}

func (c *pipelineController) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
