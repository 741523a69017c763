package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ArtifactSink stores a local file under key.
type ArtifactSink interface {
	Upload(ctx context.Context, key, localPath, contentType string) error
}

// ObjectKey joins prefix and a slash-separated relative path.
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// PublishDir uploads every regular file under dir to sink, keyed by prefix
// plus the path relative to dir. It returns the uploaded keys.
func PublishDir(ctx context.Context, sink ArtifactSink, prefix, dir string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := ObjectKey(prefix, rel)
		contentType := "application/octet-stream"
		if mt, err := mimetype.DetectFile(p); err == nil {
			contentType = mt.String()
		}
		if err := sink.Upload(ctx, key, p, contentType); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, err
	}
	log.Info().Str("dir", dir).Str("prefix", prefix).Int("objects", len(keys)).Msg("published artifacts")
	return keys, nil
}
