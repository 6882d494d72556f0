package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultAppName = "vote-frame"

// ExportFilename names a download as <app-name>-<unix-ms>.png.
func ExportFilename(appName string, at time.Time) string {
	if strings.TrimSpace(appName) == "" {
		appName = DefaultAppName
	}
	return fmt.Sprintf("%s-%d.png", sanitizePathToken(appName), at.UnixMilli())
}

type Output struct {
	Name   string
	Path   string
	Bytes  int
	Width  int
	Height int
}

// Emitter receives an encoded export.
type Emitter interface {
	Emit(ctx context.Context, name string, data []byte, width, height int) (Output, error)
}

// Export encodes img as PNG and hands it to emitter under name.
func Export(ctx context.Context, emitter Emitter, name string, img image.Image) (Output, error) {
	if img == nil || img.Bounds().Empty() {
		return Output{}, ErrEmptyImage
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return Output{}, err
	}

	b := img.Bounds()
	out, err := emitter.Emit(ctx, name, buf.Bytes(), b.Dx(), b.Dy())
	if err != nil {
		return Output{}, fmt.Errorf("emit export %s: %w", name, err)
	}
	return out, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(ctx context.Context, name string, data []byte, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(name) == "" {
		return Output{}, errors.New("export name is required")
	}

	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	default:
	}

	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(e.OutputDir, filepath.Base(name))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		Name:   filepath.Base(name),
		Path:   fullPath,
		Bytes:  len(data),
		Width:  width,
		Height: height,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
