package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Source fetches raw frame bytes by file name ("frame1.png").
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads frames from a file system, typically os.DirFS of the
// frames directory or an embedded FS.
type DirSource struct {
	FS fs.FS
}

func NewDirSource(dir string) DirSource {
	return DirSource{FS: os.DirFS(dir)}
}

func (s DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if s.FS == nil {
		return nil, errors.New("frame file system is required")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := fs.ReadFile(s.FS, path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("read frame file %s: %w", name, err)
	}
	return data, nil
}

type objectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// ObjectSource reads frames from an S3-compatible bucket under Prefix.
type ObjectSource struct {
	Storage objectReader
	Prefix  string
}

func (s ObjectSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if s.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	return s.Storage.ReadObject(ctx, ObjectKey(s.Prefix, name))
}

// ObjectKey joins the configured prefix and a frame file name.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return path.Clean(name)
	}
	return path.Join(prefix, name)
}
