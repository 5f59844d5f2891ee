// Package ingest turns files and uploads into pipeline Documents.
package ingest

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"bloodagent/internal/domain"
)

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Allowed reports whether name has an accepted extension.
func Allowed(name string) bool {
	_, ok := domain.AllowedExtensions[Extension(name)]
	return ok
}

// FromBytes builds a Document from raw bytes. The extension must be allowed
// and the sniffed content decides the media kind. maxBytes <= 0 disables the
// size check.
func FromBytes(filename string, data []byte, maxBytes int64) (domain.Document, error) {
	declared, ok := domain.AllowedExtensions[Extension(filename)]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, filename)
	}
	if len(data) == 0 {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, filename)
	}

	kind, contentType, ok := sniff(data)
	if !ok {
		if declared != domain.MediaKindText || !utf8.Valid(data) {
			return domain.Document{}, fmt.Errorf("%w: %s content not recognised", domain.ErrUnsupportedFileType, filename)
		}
		kind, contentType = domain.MediaKindText, "text/plain"
	}
	return domain.NewDocument(filepath.Base(filename), kind, contentType, data), nil
}

// FromFile reads path and builds a Document.
func FromFile(path string, maxBytes int64) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return FromBytes(path, data, maxBytes)
}

// sniff walks the detected MIME type and its parents until an accepted type is found.
func sniff(data []byte) (domain.MediaKind, string, bool) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		mediaType, _, err := mime.ParseMediaType(m.String())
		if err != nil {
			continue
		}
		if kind, ok := domain.AllowedContentTypes[mediaType]; ok {
			return kind, mediaType, true
		}
	}
	return "", "", false
}
