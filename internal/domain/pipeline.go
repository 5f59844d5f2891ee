package domain

import (
	"fmt"
	"time"
)

// transitions lists the allowed next states for each non-terminal state.
var transitions = map[DocumentState][]DocumentState{
	StateIngested:    {StateExtracting, StateCancelled},
	StateExtracting:  {StateAnonymizing, StateFailed, StateCancelled},
	StateAnonymizing: {StateConverting, StateCancelled},
	StateConverting:  {StateValidating, StateFailed, StateCancelled},
	StateValidating:  {StateCompleted, StateCancelled},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to DocumentState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StageRecord is the outcome of one stage for one document.
type StageRecord struct {
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	ErrorKind  ErrorKind   `json:"error_kind,omitempty"`
	Message    string      `json:"message,omitempty"`
	Flags      []string    `json:"flags,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// ErrorDetail explains why a document did not complete.
type ErrorDetail struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// PipelineResult is the per-document record the controller builds as stages complete.
type PipelineResult struct {
	DocumentID    string            `json:"document_id"`
	Filename      string            `json:"filename"`
	ContentHash   string            `json:"content_hash,omitempty"`
	State         DocumentState     `json:"state"`
	Stages        []StageRecord     `json:"stages"`
	LabResult     *LabResult        `json:"lab_result"`
	Coverage      *Coverage         `json:"coverage,omitempty"`
	Error         *ErrorDetail      `json:"error,omitempty"`
	ModelProvider Provider          `json:"model_provider"`
	ModelName     string            `json:"model_name"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`

	// PersistError is set when the terminal result could not be stored and
	// is being served from process memory.
	PersistError string `json:"persist_error,omitempty"`
}

// NewPipelineResult creates the record for a freshly ingested document.
func NewPipelineResult(id string, doc *Document, model ModelConfig, now time.Time) *PipelineResult {
	stages := make([]StageRecord, len(Stages))
	for i, s := range Stages {
		stages[i] = StageRecord{Stage: s, Status: StageStatusPending}
	}
	return &PipelineResult{
		DocumentID:    id,
		Filename:      doc.Filename,
		ContentHash:   doc.ContentHash,
		State:         StateIngested,
		Stages:        stages,
		ModelProvider: model.Provider,
		ModelName:     model.Model,
		CreatedAt:     now,
	}
}

// Transition moves the result to the next state, rejecting moves the state machine forbids.
func (r *PipelineResult) Transition(to DocumentState, now time.Time) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
	r.State = to
	if to.Terminal() {
		r.CompletedAt = &now
	}
	return nil
}

// Stage returns the record for s.
func (r *PipelineResult) Stage(s Stage) *StageRecord {
	for i := range r.Stages {
		if r.Stages[i].Stage == s {
			return &r.Stages[i]
		}
	}
	return nil
}

// StageStatuses returns the status of each stage in pipeline order.
func (r *PipelineResult) StageStatuses() map[Stage]StageStatus {
	out := make(map[Stage]StageStatus, len(r.Stages))
	for i := range r.Stages {
		out[r.Stages[i].Stage] = r.Stages[i].Status
	}
	return out
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *PipelineResult) Clone() *PipelineResult {
	c := *r
	c.Stages = make([]StageRecord, len(r.Stages))
	for i := range r.Stages {
		c.Stages[i] = r.Stages[i]
		c.Stages[i].Flags = append([]string(nil), r.Stages[i].Flags...)
	}
	if r.LabResult != nil {
		lr := *r.LabResult
		lr.Analytes = append([]Analyte(nil), r.LabResult.Analytes...)
		c.LabResult = &lr
	}
	if r.Coverage != nil {
		cov := *r.Coverage
		c.Coverage = &cov
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	if r.Artifacts != nil {
		c.Artifacts = make(map[string]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			c.Artifacts[k] = v
		}
	}
	return &c
}

// Batch is an ordered set of documents sharing one model config and instruction prompt.
type Batch struct {
	Documents []Document
	Model     ModelConfig
	Prompt    string
	// Language applies to every document that does not carry its own hint.
	Language  string
}

// Acknowledgement is returned per document on batch submission.
type Acknowledgement struct {
	DocumentID string                `json:"document_id"`
	Filename   string                `json:"filename"`
	Stages     map[Stage]StageStatus `json:"stage_statuses"`
}
