package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	types map[string]string
	fail  string
}

func (s *recordingSink) Upload(_ context.Context, key, _ string, contentType string) error {
	if key == s.fail {
		return errors.New("boom")
	}
	if s.types == nil {
		s.types = map[string]string{}
	}
	s.types[key] = contentType
	return nil
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "runs/r1/report.md", ObjectKey("/runs/r1/", "report.md"))
	assert.Equal(t, "candidates/a.pdf", ObjectKey("", filepath.Join("candidates", "a.pdf")))
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "candidates"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "candidates", "a.pdf"), []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.json"), []byte(`{"ok":true}`), 0644))
	return dir
}

func TestPublishDir(t *testing.T) {
	dir := writeTree(t)
	sink := &recordingSink{}
	keys, err := PublishDir(context.Background(), sink, "runs/r1", dir)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"runs/r1/candidates/a.pdf", "runs/r1/report.json"}, keys)
	assert.Equal(t, "application/pdf", sink.types["runs/r1/candidates/a.pdf"])
	assert.Equal(t, "application/json", sink.types["runs/r1/report.json"])
}

func TestPublishDirStopsOnError(t *testing.T) {
	dir := writeTree(t)
	_, err := PublishDir(context.Background(), &recordingSink{fail: "p/report.json"}, "p", dir)
	assert.ErrorContains(t, err, "upload p/report.json")
}
