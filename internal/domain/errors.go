package domain

import (
	"context"
	"errors"
)

var (
	ErrResultNotFound      = errors.New("pipeline result not found")
	ErrResultExists        = errors.New("pipeline result already recorded")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrEmptyBatch          = errors.New("batch has no documents")
	ErrInvalidTransition   = errors.New("invalid pipeline state transition")
	ErrNoUsablePages       = errors.New("no usable pages extracted")
	ErrCancelled           = errors.New("batch cancelled")
)

// KindedError is implemented by errors that belong to the pipeline error taxonomy.
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf classifies err against the pipeline error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, ErrNoUsablePages):
		return ErrorKindExtractionGap
	}
	return ErrorKindInternal
}
