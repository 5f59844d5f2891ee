// Package extract turns ingested documents into per-page text. Scans and PDF
// pages are transcribed by a vision model; plain text is read directly.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

const (
	rendererSplit    = "split"
	rendererPdftoppm = "pdftoppm"
)

// Extractor runs the text extraction stage.
type Extractor struct {
	pager    Pager
	raster   Pager
	language string
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithPager replaces the PDF pager (for testing or custom renderers).
func WithPager(p Pager) Option {
	return func(e *Extractor) { e.pager = p }
}

// WithRasterPager replaces the pager used for models that cannot read PDF pages.
func WithRasterPager(p Pager) Option {
	return func(e *Extractor) { e.raster = p }
}

// pdfReader is implemented by clients that know whether their model reads PDF input.
type pdfReader interface {
	AcceptsPDF() bool
}

// pagerFor swaps split PDF pages for rendered images when the model cannot
// read PDF input.
func (e *Extractor) pagerFor(client port.ProviderClient) Pager {
	if _, split := e.pager.(SplitPager); !split {
		return e.pager
	}
	if r, ok := client.(pdfReader); ok && !r.AcceptsPDF() {
		return e.raster
	}
	return e.pager
}

// NewExtractor builds an Extractor for the configured PDF renderer.
func NewExtractor(cfg config.PipelineConfig, opts ...Option) *Extractor {
	bin := cfg.PdftoppmPath
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := cfg.RenderDPI
	if dpi <= 0 {
		dpi = 200
	}
	raster := RasterPager{Runner: execRunner{}, Binary: bin, DPI: dpi}
	e := &Extractor{pager: SplitPager{}, raster: raster, language: cfg.Language}
	if cfg.PDFRenderer == rendererPdftoppm {
		e.pager = raster
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces the page texts of doc. Pages fail independently; the
// stage fails only when no page yields text, in which case the returned
// error carries the first page failure.
func (e *Extractor) Extract(ctx context.Context, client port.ProviderClient, documentID string, doc *domain.Document) (*domain.ExtractedText, error) {
	out := &domain.ExtractedText{DocumentID: documentID}
	var pageErr error
	lang := doc.Language
	if lang == "" {
		lang = e.language
	}

	switch doc.Kind {
	case domain.MediaKindText:
		out.Pages = textPages(doc.Data)
	case domain.MediaKindImage:
		img, err := normalizeImage(doc.Data, doc.ContentType)
		if err != nil {
			out.Status = domain.StageStatusFailed
			return out, fmt.Errorf("preparing image: %w", err)
		}
		out.Pages, pageErr = e.transcribe(ctx, client, documentID, lang, []domain.Image{img})
	case domain.MediaKindPDF:
		images, err := e.pagerFor(client).Pages(ctx, doc.Data)
		if err != nil {
			out.Status = domain.StageStatusFailed
			return out, fmt.Errorf("paging pdf: %w", err)
		}
		out.Pages, pageErr = e.transcribe(ctx, client, documentID, lang, images)
	default:
		out.Status = domain.StageStatusFailed
		return out, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, doc.Kind)
	}

	usable := out.UsablePages()
	switch {
	case usable == 0:
		out.Status = domain.StageStatusFailed
		if pageErr != nil {
			return out, fmt.Errorf("%w: %w", domain.ErrNoUsablePages, pageErr)
		}
		return out, domain.ErrNoUsablePages
	case usable < len(out.Pages):
		out.Status = domain.StageStatusPartial
	default:
		out.Status = domain.StageStatusSuccess
	}
	return out, nil
}

// textPages splits plain text on form feeds, repairing invalid UTF-8.
func textPages(data []byte) []domain.PageText {
	text := strings.ToValidUTF8(string(data), "�")
	var pages []domain.PageText
	for _, chunk := range strings.Split(text, "\f") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		pages = append(pages, domain.PageText{Number: len(pages) + 1, Text: chunk})
	}
	return pages
}

func (e *Extractor) transcribe(ctx context.Context, client port.ProviderClient, documentID, lang string, images []domain.Image) ([]domain.PageText, error) {
	prompts := pagePrompts(lang)
	pages := make([]domain.PageText, len(images))
	var firstErr error
	for i, img := range images {
		var err error
		pages[i], err = e.transcribePage(ctx, client, documentID, i+1, img, prompts)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return pages, firstErr
}

// transcribePage tries each page prompt once. A page that never yields
// usable text becomes a gap; the returned error is the last call failure.
func (e *Extractor) transcribePage(ctx context.Context, client port.ProviderClient, documentID string, number int, img domain.Image, prompts []string) (domain.PageText, error) {
	page := domain.PageText{Number: number}
	var lastErr error

	for _, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		page.Attempts++

		text, err := client.CompleteVision(ctx, prompt, img)
		if err != nil {
			lastErr = err
			slog.Warn("extract.page.failed", "document_id", documentID, "page", number, "attempt", page.Attempts, "error", err)
			continue
		}
		if IsUsableText(text) {
			page.Text = text
			return page, nil
		}
		lastErr = nil
		if IsRefusal(text) {
			page.Flags = domain.AddFlag(page.Flags, domain.FlagRefusal)
		}
		slog.Warn("extract.page.invalid", "document_id", documentID, "page", number, "attempt", page.Attempts)
	}

	page.Flags = domain.AddFlag(page.Flags, domain.FlagExtractionGap)
	if lastErr != nil {
		page.Error = lastErr.Error()
	}
	return page, lastErr
}
