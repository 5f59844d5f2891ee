package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/ingest"
)

func TestWatch_EmitsAcceptedFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := ingest.Watch(ctx, ingest.WatchConfig{Root: dir, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.docx"), []byte("x"), 0o600))
	want := filepath.Join(dir, "panel.txt")
	require.NoError(t, os.WriteFile(want, []byte("Glucose 5.4"), 0o600))

	select {
	case got := <-paths:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for new file")
	}

	cancel()
	for range paths {
	}
}

func TestWatch_RequiresRoot(t *testing.T) {
	_, _, err := ingest.Watch(context.Background(), ingest.WatchConfig{})
	assert.Error(t, err)
}
