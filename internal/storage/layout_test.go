package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayout(t *testing.T) (*Layout, string) {
	t.Helper()
	root := t.TempDir()
	l, err := NewLayout(root, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return l, root
}

func TestNewLayout_CreatesTree(t *testing.T) {
	_, root := newTestLayout(t)

	for _, dir := range []string{
		"incoming", "raw", "documents", "document-metadata", "quarantine", "tmp",
	} {
		assert.DirExists(t, filepath.Join(root, dir))
	}
}

func TestRawDir(t *testing.T) {
	l, root := newTestLayout(t)

	dir, err := l.RawDir("94771234567@c.us", "job-1")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	// Sender component is sanitized; the job dir carries a date prefix.
	rel, err := filepath.Rel(root, dir)
	require.NoError(t, err)
	parts := []string{"raw", "94771234567_c.us"}
	assert.Equal(t, filepath.Join(parts...), filepath.Dir(rel))
	assert.Contains(t, filepath.Base(rel), "job-1")
}

func TestDocumentPaths(t *testing.T) {
	l, root := newTestLayout(t)

	pdfPath, metaPath := l.DocumentPaths("94771234567@c.us", "job-1")

	assert.Equal(t, filepath.Join(root, "documents"), filepath.Dir(pdfPath))
	assert.Equal(t, filepath.Join(root, "document-metadata"), filepath.Dir(metaPath))
	assert.Equal(t, ".pdf", filepath.Ext(pdfPath))
	assert.Equal(t, ".json", filepath.Ext(metaPath))
	assert.Contains(t, filepath.Base(pdfPath), "job-1")
}

func TestSaveIncomingPayload(t *testing.T) {
	l, root := newTestLayout(t)

	path, err := l.SaveIncomingPayload("msg/with:odd chars", []byte(`{"a":1}`))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "incoming"), filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestQuarantineJob(t *testing.T) {
	l, root := newTestLayout(t)

	rawDir, err := l.RawDir("94771234567@c.us", "job-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "a.jpg"), []byte("x"), 0o644))

	pdfPath := filepath.Join(root, "documents", "broken.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("x"), 0o644))

	err = l.QuarantineJob("job-1", rawDir, pdfPath, "", "/does/not/exist")
	require.NoError(t, err)

	// Everything that existed moved under quarantine/<jobID>.
	assert.NoDirExists(t, rawDir)
	assert.NoFileExists(t, pdfPath)
	qdir := filepath.Join(root, "quarantine", "job-1")
	assert.FileExists(t, filepath.Join(qdir, filepath.Base(rawDir), "a.jpg"))
	assert.FileExists(t, filepath.Join(qdir, "broken.pdf"))
}

func TestCleanupRaw(t *testing.T) {
	l, _ := newTestLayout(t)

	oldDir, err := l.RawDir("94771234567@c.us", "job-old")
	require.NoError(t, err)
	newDir, err := l.RawDir("94771234567@c.us", "job-new")
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldDir, stale, stale))

	removed, err := l.CleanupRaw(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, oldDir)
	assert.DirExists(t, newDir)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "94771234567@c.us", want: "94771234567_c.us"},
		{in: "simple-name_1.2", want: "simple-name_1.2"},
		{in: "a/b\\c d", want: "a_b_c_d"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitize(tt.in))
	}
}
