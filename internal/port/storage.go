package port

import (
	"context"
	"io"
)

// UploadInput is one pipeline artifact headed for the silver bucket: a
// document's anonymized text or its LabResult JSON. DocumentID is stored as
// object metadata so an artifact can be traced back to its source report
// without parsing the key.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	DocumentID  string
}

// UploadOutput reports where an artifact landed.
type UploadOutput struct {
	Location string
	ETag     string
}

// ObjectStorage keeps pipeline artifacts and signs time-limited download
// links for them. Original report bytes never pass through it.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error)
}
