package domain

// MediaKind is the declared kind of an ingested document.
type MediaKind string

const (
	MediaKindPDF   MediaKind = "pdf"
	MediaKindImage MediaKind = "image"
	MediaKindText  MediaKind = "text"
)

// AllowedExtensions maps file extensions (without dot) to MediaKind.
var AllowedExtensions = map[string]MediaKind{
	"pdf":  MediaKindPDF,
	"png":  MediaKindImage,
	"jpg":  MediaKindImage,
	"jpeg": MediaKindImage,
	"gif":  MediaKindImage,
	"webp": MediaKindImage,
	"tiff": MediaKindImage,
	"tif":  MediaKindImage,
	"bmp":  MediaKindImage,
	"txt":  MediaKindText,
}

// AllowedContentTypes maps sniffed MIME content types back to MediaKind.
var AllowedContentTypes = map[string]MediaKind{
	"application/pdf": MediaKindPDF,
	"image/png":       MediaKindImage,
	"image/jpeg":      MediaKindImage,
	"image/gif":       MediaKindImage,
	"image/webp":      MediaKindImage,
	"image/tiff":      MediaKindImage,
	"image/bmp":       MediaKindImage,
	"text/plain":      MediaKindText,
}

// Provider identifies a model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderGemini    Provider = "gemini"
)

// KnownProviders lists every provider the resolver accepts.
var KnownProviders = map[Provider]bool{
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
	ProviderGemini:    true,
}

// RequiresAPIKey reports whether the provider rejects unauthenticated calls.
func (p Provider) RequiresAPIKey() bool {
	return p != ProviderOllama
}

// RequiresBaseURL reports whether the provider has no public default endpoint.
func (p Provider) RequiresBaseURL() bool {
	return p == ProviderOllama
}

// DocumentState is a node of the per-document pipeline state machine.
type DocumentState string

const (
	StateIngested    DocumentState = "ingested"
	StateExtracting  DocumentState = "extracting"
	StateAnonymizing DocumentState = "anonymizing"
	StateConverting  DocumentState = "converting"
	StateValidating  DocumentState = "validating"
	StateCompleted   DocumentState = "completed"
	StateFailed      DocumentState = "failed"
	StateCancelled   DocumentState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s DocumentState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageExtraction    Stage = "extraction"
	StageAnonymization Stage = "anonymization"
	StageConversion    Stage = "conversion"
	StageValidation    Stage = "validation"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageExtraction, StageAnonymization, StageConversion, StageValidation}

// StageStatus is the outcome classification of one stage.
type StageStatus string

const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusPartial StageStatus = "partial"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// ErrorKind classifies a failure for callers and persisted results.
type ErrorKind string

const (
	ErrorKindNone                      ErrorKind = ""
	ErrorKindConfiguration             ErrorKind = "configuration"
	ErrorKindProviderUnavailable       ErrorKind = "provider_unavailable"
	ErrorKindRateLimited               ErrorKind = "rate_limited"
	ErrorKindMalformedResponse         ErrorKind = "malformed_response"
	ErrorKindExtractionGap             ErrorKind = "extraction_gap"
	ErrorKindAnonymizationResidualRisk ErrorKind = "anonymization_residual_risk"
	ErrorKindCancelled                 ErrorKind = "cancelled"
	ErrorKindInternal                  ErrorKind = "internal"
)

// Flags recorded on pages and stages.
const (
	FlagExtractionGap             = "extraction_gap"
	FlagRefusal                   = "refusal"
	FlagAnonymizationResidualRisk = "anonymization_residual_risk"
	FlagNumericDrift              = "numeric_drift"
	FlagModelUnavailable          = "model_unavailable"
	FlagAnalyteDropped            = "analyte_dropped"
	FlagNoAnalytes                = "no_analytes"
	FlagLOINCTableEmpty           = "loinc_table_empty"
)
