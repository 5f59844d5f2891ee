package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"bloodagent/internal/domain"
)

// Pager turns a PDF into one vision payload per page.
type Pager interface {
	Pages(ctx context.Context, data []byte) ([]domain.Image, error)
}

// SplitPager splits a PDF into single-page PDFs with pdfcpu.
type SplitPager struct{}

func (SplitPager) Pages(_ context.Context, data []byte) ([]domain.Image, error) {
	tmpDir, err := os.MkdirTemp("", "bloodagent-split-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	src := filepath.Join(tmpDir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing source pdf: %w", err)
	}
	outDir := filepath.Join(tmpDir, "pages")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating pages dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.SplitFile(src, outDir, 1, conf); err != nil {
		return nil, fmt.Errorf("splitting pdf: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("listing split pages: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return pageIndex(files[i]) < pageIndex(files[j]) })

	pages := make([]domain.Image, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading page %s: %w", filepath.Base(f), err)
		}
		pages = append(pages, domain.Image{Data: b, MediaType: "application/pdf"})
	}
	return pages, nil
}

// pageIndex parses the trailing page number pdfcpu appends ("source_12.pdf").
func pageIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".pdf")
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// RasterPager renders each PDF page to PNG with poppler's pdftoppm. Vision
// models that cannot read PDF input need this.
type RasterPager struct {
	Runner Runner
	Binary string
	DPI    int
}

func (r RasterPager) Pages(ctx context.Context, data []byte) ([]domain.Image, error) {
	tmpDir, err := os.MkdirTemp("", "bloodagent-raster-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	src := filepath.Join(tmpDir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing source pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 200 -png <in.pdf> <tmp/page>
	_, errb, err := r.Runner.Run(ctx, r.Binary, "-r", strconv.Itoa(r.DPI), "-png", src, prefix)
	if err != nil {
		return nil, fmt.Errorf("rasterizing pdf: %w: %s", err, truncate(string(errb), 500))
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	pages := make([]domain.Image, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("reading rendered page: %w", err)
		}
		pages = append(pages, domain.Image{Data: b, MediaType: "image/png"})
	}
	return pages, nil
}
