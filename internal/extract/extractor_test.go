package extract_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/extract"
	"bloodagent/internal/provider"
	"bloodagent/mocks"
)

const pageText = "Hemoglobin 13.5 g/dL (12.0-16.0)\nWBC 6.1 x10^9/L (4.0-11.0)"

type fakePager struct {
	pages []domain.Image
	err   error
}

func (f fakePager) Pages(context.Context, []byte) ([]domain.Image, error) {
	return f.pages, f.err
}

func pdfDoc() *domain.Document {
	doc := domain.NewDocument("report.pdf", domain.MediaKindPDF, "application/pdf", []byte("%PDF-1.7"))
	return &doc
}

func pages(n int) []domain.Image {
	out := make([]domain.Image, n)
	for i := range out {
		out[i] = domain.Image{Data: []byte{byte(i)}, MediaType: "application/pdf"}
	}
	return out
}

func TestExtract_TextDocument_NoModelCall(t *testing.T) {
	client := new(mocks.MockProviderClient)
	e := extract.NewExtractor(config.PipelineConfig{})
	doc := domain.NewDocument("r.txt", domain.MediaKindText, "text/plain", []byte("Page one 1.0\fPage two 2.0\f\n"))

	out, err := e.Extract(context.Background(), client, "doc-1", &doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusSuccess, out.Status)
	require.Len(t, out.Pages, 2)
	assert.Equal(t, 2, out.Pages[1].Number)
	assert.Equal(t, "Page one 1.0\n\nPage two 2.0", out.Text())
	client.AssertNotCalled(t, "CompleteVision", mock.Anything, mock.Anything, mock.Anything)
}

func TestExtract_TextDocument_RepairsInvalidUTF8(t *testing.T) {
	e := extract.NewExtractor(config.PipelineConfig{})
	doc := domain.NewDocument("r.txt", domain.MediaKindText, "text/plain", []byte("Glucose \xff 5.4"))

	out, err := e.Extract(context.Background(), new(mocks.MockProviderClient), "doc-1", &doc)

	require.NoError(t, err)
	assert.Equal(t, "Glucose � 5.4", out.Pages[0].Text)
}

func TestExtract_EmptyTextDocumentFails(t *testing.T) {
	e := extract.NewExtractor(config.PipelineConfig{})
	doc := domain.NewDocument("r.txt", domain.MediaKindText, "text/plain", []byte("  \n"))

	_, err := e.Extract(context.Background(), new(mocks.MockProviderClient), "doc-1", &doc)

	assert.ErrorIs(t, err, domain.ErrNoUsablePages)
	assert.Equal(t, domain.ErrorKindExtractionGap, domain.KindOf(err))
}

func TestExtract_PDF_AllPagesSucceed(t *testing.T) {
	client := new(mocks.MockProviderClient)
	client.On("CompleteVision", mock.Anything, mock.Anything, mock.Anything).Return(pageText, nil)
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{pages: pages(3)}))

	out, err := e.Extract(context.Background(), client, "doc-1", pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusSuccess, out.Status)
	assert.Len(t, out.Pages, 3)
	client.AssertNumberOfCalls(t, "CompleteVision", 3)
}

func TestExtract_PDF_RefusalRetriedThenGap(t *testing.T) {
	client := new(mocks.MockProviderClient)
	first := domain.Image{Data: []byte{0}, MediaType: "application/pdf"}
	second := domain.Image{Data: []byte{1}, MediaType: "application/pdf"}
	client.On("CompleteVision", mock.Anything, mock.Anything, first).Return(pageText, nil)
	client.On("CompleteVision", mock.Anything, mock.Anything, second).Return("I'm sorry, but I can't assist with that.", nil)
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{pages: pages(2)}))

	out, err := e.Extract(context.Background(), client, "doc-1", pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusPartial, out.Status)
	gap := out.Pages[1]
	assert.Empty(t, gap.Text)
	assert.Equal(t, 2, gap.Attempts)
	assert.True(t, domain.HasFlag(gap.Flags, domain.FlagExtractionGap))
	assert.True(t, domain.HasFlag(gap.Flags, domain.FlagRefusal))
	assert.Equal(t, pageText, out.Text())
}

// imageOnlyClient is a model that cannot read PDF pages.
type imageOnlyClient struct {
	*mocks.MockProviderClient
}

func (imageOnlyClient) AcceptsPDF() bool { return false }

func TestExtract_PDF_RasterizedForImageOnlyModel(t *testing.T) {
	mc := new(mocks.MockProviderClient)
	png := domain.Image{Data: []byte("png"), MediaType: "image/png"}
	mc.On("CompleteVision", mock.Anything, mock.Anything, png).Return(pageText, nil)
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithRasterPager(fakePager{pages: []domain.Image{png}}))

	out, err := e.Extract(context.Background(), imageOnlyClient{mc}, "doc-1", pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusSuccess, out.Status)
	mc.AssertNumberOfCalls(t, "CompleteVision", 1)
}

func TestExtract_PDF_ConfiguredPagerWins(t *testing.T) {
	mc := new(mocks.MockProviderClient)
	mc.On("CompleteVision", mock.Anything, mock.Anything, mock.Anything).Return(pageText, nil)
	e := extract.NewExtractor(config.PipelineConfig{},
		extract.WithPager(fakePager{pages: pages(2)}),
		extract.WithRasterPager(fakePager{err: errors.New("raster must not run")}),
	)

	out, err := e.Extract(context.Background(), imageOnlyClient{mc}, "doc-1", pdfDoc())

	require.NoError(t, err)
	assert.Len(t, out.Pages, 2)
}

func TestExtract_LanguageHintInPrompt(t *testing.T) {
	tests := []struct {
		name    string
		cfgLang string
		docLang string
		want    string
	}{
		{"document hint", "", "mkd+eng", "written in Macedonian and English"},
		{"config default", "srp", "", "written in Serbian"},
		{"document beats config", "eng", "mkd", "written in Macedonian."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.MockProviderClient)
			client.On("CompleteVision", mock.Anything, mock.MatchedBy(func(p string) bool {
				return strings.Contains(p, tt.want) && strings.Contains(p, "do not translate")
			}), mock.Anything).Return(pageText, nil)
			e := extract.NewExtractor(config.PipelineConfig{Language: tt.cfgLang}, extract.WithPager(fakePager{pages: pages(1)}))
			doc := pdfDoc()
			doc.Language = tt.docLang

			_, err := e.Extract(context.Background(), client, "doc-1", doc)

			require.NoError(t, err)
			client.AssertExpectations(t)
		})
	}
}

func TestExtract_NoLanguageHintByDefault(t *testing.T) {
	client := new(mocks.MockProviderClient)
	client.On("CompleteVision", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "written in")
	}), mock.Anything).Return(pageText, nil)
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{pages: pages(1)}))

	_, err := e.Extract(context.Background(), client, "doc-1", pdfDoc())

	require.NoError(t, err)
	client.AssertExpectations(t)
}

type failingRunner struct {
	stderr string
}

func (f failingRunner) Run(context.Context, string, ...string) ([]byte, []byte, error) {
	return nil, []byte(f.stderr), errors.New("exit status 1")
}

func TestRasterPager_ErrorKeepsValidUTF8(t *testing.T) {
	pager := extract.RasterPager{Runner: failingRunner{stderr: "x" + strings.Repeat("ж", 400)}, Binary: "pdftoppm", DPI: 100}

	_, err := pager.Pages(context.Background(), []byte("%PDF-1.7"))

	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), "...(truncated)")
}

func TestLanguageHint(t *testing.T) {
	assert.Equal(t, "Macedonian and English", extract.LanguageHint("mkd+eng"))
	assert.Equal(t, "Macedonian, Serbian and English", extract.LanguageHint("mk, srp, en"))
	assert.Equal(t, "English", extract.LanguageHint("en+eng"))
	assert.Equal(t, "tlh", extract.LanguageHint("tlh"))
	assert.Empty(t, extract.LanguageHint(" "))
}

func TestExtract_PDF_StricterPromptRecoversPage(t *testing.T) {
	client := new(mocks.MockProviderClient)
	client.On("CompleteVision", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("flaky")).Once()
	client.On("CompleteVision", mock.Anything, mock.MatchedBy(func(p string) bool {
		return len(p) > 0 && p[:20] == "You are an OCR syste"
	}), mock.Anything).Return(pageText, nil).Once()
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{pages: pages(1)}))

	out, err := e.Extract(context.Background(), client, "doc-1", pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusSuccess, out.Status)
	assert.Equal(t, 2, out.Pages[0].Attempts)
	assert.Empty(t, out.Pages[0].Flags)
}

func TestExtract_PDF_ZeroUsablePagesCarriesProviderKind(t *testing.T) {
	client := new(mocks.MockProviderClient)
	unavailable := &provider.ProviderUnavailableError{Provider: "openai", StatusCode: 503, Err: errors.New("down")}
	client.On("CompleteVision", mock.Anything, mock.Anything, mock.Anything).Return("", unavailable)
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{pages: pages(2)}))

	out, err := e.Extract(context.Background(), client, "doc-1", pdfDoc())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoUsablePages)
	assert.Equal(t, domain.ErrorKindProviderUnavailable, domain.KindOf(err))
	assert.Equal(t, domain.StageStatusFailed, out.Status)
	assert.Contains(t, out.Pages[0].Error, "down")
}

func TestExtract_PDF_PagerError(t *testing.T) {
	e := extract.NewExtractor(config.PipelineConfig{}, extract.WithPager(fakePager{err: errors.New("corrupt xref")}))

	_, err := e.Extract(context.Background(), new(mocks.MockProviderClient), "doc-1", pdfDoc())

	assert.ErrorContains(t, err, "corrupt xref")
}

func TestExtract_TIFFIsReencodedAsPNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	doc := domain.NewDocument("scan.tiff", domain.MediaKindImage, "image/tiff", buf.Bytes())

	client := new(mocks.MockProviderClient)
	client.On("CompleteVision", mock.Anything, mock.Anything, mock.MatchedBy(func(i domain.Image) bool {
		return i.MediaType == "image/png" && bytes.HasPrefix(i.Data, []byte("\x89PNG"))
	})).Return(pageText, nil)

	out, err := extract.NewExtractor(config.PipelineConfig{}).Extract(context.Background(), client, "doc-1", &doc)

	require.NoError(t, err)
	assert.Len(t, out.Pages, 1)
	client.AssertExpectations(t)
}

func TestExtract_UnreadableImageFails(t *testing.T) {
	doc := domain.NewDocument("scan.bmp", domain.MediaKindImage, "image/bmp", []byte("not an image"))

	_, err := extract.NewExtractor(config.PipelineConfig{}).Extract(context.Background(), new(mocks.MockProviderClient), "doc-1", &doc)

	assert.ErrorContains(t, err, "decoding image/bmp image")
}

func TestIsUsableText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"lab line", "Hemoglobin 13.5 g/dL", true},
		{"too short", "ok", false},
		{"refusal", "I'm unable to read this document, sorry.", false},
		{"short prose", "nothing here at all", false},
		{"long prose", "This is a long paragraph of text without any numbers that still reads like content.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract.IsUsableText(tt.text))
		})
	}
}
