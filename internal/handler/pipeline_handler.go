package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bloodagent/internal/config"
	"bloodagent/internal/csvexport"
	"bloodagent/internal/domain"
	"bloodagent/internal/ingest"
	"bloodagent/internal/service"
)

// PipelineHandler handles batch submission and result retrieval.
type PipelineHandler struct {
	svc       service.PipelineService
	artifacts *service.ArtifactStore
	envModel  config.ModelLayer
	maxBytes  int64
	// batches run on baseCtx so they outlive the submitting request.
	baseCtx context.Context
}

// NewPipelineHandler creates a new PipelineHandler. artifacts may be nil.
func NewPipelineHandler(baseCtx context.Context, svc service.PipelineService, envModel config.ModelLayer, maxBytes int64, artifacts *service.ArtifactStore) *PipelineHandler {
	return &PipelineHandler{
		svc:       svc,
		artifacts: artifacts,
		envModel:  envModel,
		maxBytes:  maxBytes,
		baseCtx:   baseCtx,
	}
}

// RunAgentResponse is returned by POST /run-agent.
type RunAgentResponse struct {
	Documents []domain.Acknowledgement `json:"documents"`
}

// ProgressResponse is returned while a document is still in flight.
type ProgressResponse struct {
	DocumentID string                              `json:"document_id"`
	State      domain.DocumentState                `json:"state"`
	Stages     map[domain.Stage]domain.StageStatus `json:"stage_statuses"`
}

// ResultResponse is a terminal result plus download links for its artifacts.
type ResultResponse struct {
	*domain.PipelineResult
	ArtifactURLs map[string]string `json:"artifact_urls,omitempty"`
}

// RunAgent handles POST /run-agent.
// Multipart fields: files (repeatable), prompt, and optional provider, model,
// base_url and language.
func (h *PipelineHandler) RunAgent(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FORM", "multipart form with a files field is required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "files field is required")
		return
	}

	docs := make([]domain.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := h.readUpload(fh)
		if err != nil {
			HandleError(c, err)
			return
		}
		docs = append(docs, doc)
	}

	model, err := config.ResolveModelConfig(
		config.ModelLayer{
			Name:      "request",
			Provider:  c.PostForm("provider"),
			Model:     c.PostForm("model"),
			BaseURL:   c.PostForm("base_url"),
			Untrusted: true,
		},
		h.envModel,
		config.DefaultModelLayer(),
	)
	if err != nil {
		HandleError(c, err)
		return
	}

	run, err := h.svc.Submit(h.baseCtx, domain.Batch{
		Documents: docs,
		Model:     model,
		Prompt:    c.PostForm("prompt"),
		Language:  c.PostForm("language"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, RunAgentResponse{Documents: run.Acks()})
}

func (h *PipelineHandler) readUpload(fh *multipart.FileHeader) (domain.Document, error) {
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.Document{}, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	return ingest.FromBytes(fh.Filename, data, h.maxBytes)
}

// GetResult handles GET /results/:id. In-flight documents answer 202 with progress.
func (h *PipelineHandler) GetResult(c *gin.Context) {
	id := c.Param("id")

	res, err := h.svc.Result(c.Request.Context(), id)
	if err == nil {
		out := ResultResponse{PipelineResult: res}
		if h.artifacts != nil {
			out.ArtifactURLs = h.artifacts.PresignedURLs(c.Request.Context(), res.Artifacts)
		}
		RespondOK(c, out)
		return
	}
	if !errors.Is(err, domain.ErrResultNotFound) {
		HandleError(c, err)
		return
	}

	if progress, ok := h.svc.Progress(id); ok {
		RespondAccepted(c, ProgressResponse{
			DocumentID: progress.DocumentID,
			State:      progress.State,
			Stages:     progress.StageStatuses(),
		})
		return
	}
	HandleError(c, err)
}

// ExportCSV handles GET /results/:id/csv. Only terminal results can be exported.
func (h *PipelineHandler) ExportCSV(c *gin.Context) {
	res, err := h.svc.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, csvexport.BuildFilename(res.Filename, time.Now())))
	c.Status(http.StatusOK)

	_, _ = c.Writer.Write(csvexport.BOM)
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}
	_ = w.WriteResults([]*domain.PipelineResult{res})
	w.Flush()
}
