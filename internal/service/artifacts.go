package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// Artifact names recorded on PipelineResult.Artifacts.
const (
	ArtifactAnonymizedText = "anonymized_text"
	ArtifactLabResult      = "lab_result"
)

// ArtifactStore writes anonymized text and lab results to the silver bucket.
// Raw documents and raw extracted text are never written.
type ArtifactStore struct {
	storage       port.ObjectStorage
	bucket        string
	presignExpiry int64
}

// NewArtifactStore creates an ArtifactStore over storage.
func NewArtifactStore(storage port.ObjectStorage, bucket string, presignExpiry int64) *ArtifactStore {
	if presignExpiry <= 0 {
		presignExpiry = 3600
	}
	return &ArtifactStore{storage: storage, bucket: bucket, presignExpiry: presignExpiry}
}

// AnonymizedTextKey is the object key of a document's anonymized text.
func AnonymizedTextKey(documentID string) string {
	return fmt.Sprintf("documents/%s/anon_%s.txt", documentID, documentID)
}

// LabResultKey is the object key of a document's LabResult JSON.
func LabResultKey(documentID string) string {
	return fmt.Sprintf("documents/%s/%s.json", documentID, documentID)
}

// SaveAnonymizedText uploads text and returns its key.
func (a *ArtifactStore) SaveAnonymizedText(ctx context.Context, documentID, text string) (string, error) {
	key := AnonymizedTextKey(documentID)
	data := []byte(text)
	_, err := a.storage.Upload(ctx, port.UploadInput{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: "text/plain; charset=utf-8",
		Size:        int64(len(data)),
		DocumentID:  documentID,
	})
	if err != nil {
		return "", fmt.Errorf("uploading anonymized text: %w", err)
	}
	return key, nil
}

// SaveLabResult uploads result as indented JSON and returns its key.
func (a *ArtifactStore) SaveLabResult(ctx context.Context, documentID string, result *domain.LabResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding lab result: %w", err)
	}
	key := LabResultKey(documentID)
	_, err = a.storage.Upload(ctx, port.UploadInput{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: "application/json",
		Size:        int64(len(data)),
		DocumentID:  documentID,
	})
	if err != nil {
		return "", fmt.Errorf("uploading lab result: %w", err)
	}
	return key, nil
}

// PresignedURLs returns a download URL per artifact name. Keys that cannot
// be signed are left out.
func (a *ArtifactStore) PresignedURLs(ctx context.Context, artifacts map[string]string) map[string]string {
	if len(artifacts) == 0 {
		return nil
	}
	urls := make(map[string]string, len(artifacts))
	for name, key := range artifacts {
		url, err := a.storage.GetPresignedURL(ctx, a.bucket, key, a.presignExpiry)
		if err != nil {
			continue
		}
		urls[name] = url
	}
	return urls
}
