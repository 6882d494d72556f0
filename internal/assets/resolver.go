// Package assets resolves frame identifiers to decoded frame rasters.
//
// Each frame is looked up as <name>.<ext> for every extension in the format
// chain, in order; the first one that both fetches and decodes wins. Results
// are fitted to the canvas and cached for the lifetime of the Resolver.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/voteframe/internal/compositor"
	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/dunamismax/voteframe/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrFrameUnavailable = errors.New("frame unavailable")

// DefaultFormats is the fallback chain: lossless first, then lossy.
var DefaultFormats = []string{"png", "jpeg"}

type FrameAsset struct {
	ID     domain.FrameID
	Name   string
	Format string
	// Fallback is set when a format other than the first in the chain was used.
	Fallback bool
	Image    image.Image
}

type Options struct {
	Source  Source
	Decoder compositor.Decoder
	Formats []string
	// Width and Height are the canvas size frames are fitted to.
	Width  int
	Height int
	Logger logrus.FieldLogger
}

type Resolver struct {
	source  Source
	decoder compositor.Decoder
	formats []string
	width   int
	height  int
	logger  logrus.FieldLogger
	tracer  trace.Tracer

	mu       sync.Mutex
	cache    map[domain.FrameID]FrameAsset
	inflight map[domain.FrameID]*call
}

// call is a shared in-flight load. It runs detached from any single caller
// and is cancelled only once every waiter has given up.
type call struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	asset   FrameAsset
	err     error
}

func NewResolver(opts Options) (*Resolver, error) {
	if opts.Source == nil {
		return nil, errors.New("frame source is required")
	}

	decoder := opts.Decoder
	if decoder == nil {
		var err error
		decoder, err = compositor.NewDecoder()
		if err != nil {
			return nil, fmt.Errorf("build decoder: %w", err)
		}
	}

	formats := normalizeFormats(opts.Formats)
	if len(formats) == 0 {
		formats = DefaultFormats
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = domain.CanvasWidth, domain.CanvasHeight
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Resolver{
		source:   opts.Source,
		decoder:  decoder,
		formats:  formats,
		width:    width,
		height:   height,
		logger:   logger,
		tracer:   telemetry.Tracer("assets"),
		cache:    make(map[domain.FrameID]FrameAsset),
		inflight: make(map[domain.FrameID]*call),
	}, nil
}

func (r *Resolver) Formats() []string {
	return append([]string(nil), r.formats...)
}

// Cached reports whether id has already been resolved successfully.
func (r *Resolver) Cached(id domain.FrameID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cache[id]
	return ok
}

// Resolve returns the fitted frame for id. Concurrent calls for the same id
// share a single load; a caller giving up does not fail the others. Failures
// are not cached.
func (r *Resolver) Resolve(ctx context.Context, id domain.FrameID) (FrameAsset, error) {
	if !id.Valid() {
		return FrameAsset{}, fmt.Errorf("%w: %q", domain.ErrUnknownFrame, id)
	}
	if err := ctx.Err(); err != nil {
		return FrameAsset{}, err
	}

	r.mu.Lock()
	if asset, ok := r.cache[id]; ok {
		r.mu.Unlock()
		return asset, nil
	}
	c, ok := r.inflight[id]
	if !ok {
		loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{done: make(chan struct{}), cancel: cancel}
		r.inflight[id] = c
		go r.run(loadCtx, id, c)
	}
	c.waiters++
	r.mu.Unlock()

	select {
	case <-c.done:
		return c.asset, c.err
	case <-ctx.Done():
		r.leave(id, c)
		return FrameAsset{}, ctx.Err()
	}
}

func (r *Resolver) run(ctx context.Context, id domain.FrameID, c *call) {
	defer c.cancel()
	asset, err := r.load(ctx, id)

	r.mu.Lock()
	c.asset, c.err = asset, err
	if r.inflight[id] == c {
		delete(r.inflight, id)
	}
	if err == nil {
		r.cache[id] = asset
	}
	r.mu.Unlock()
	close(c.done)
}

// leave drops a waiter. The last one out cancels the load and detaches it so
// the next Resolve starts afresh.
func (r *Resolver) leave(id domain.FrameID, c *call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	if r.inflight[id] == c {
		delete(r.inflight, id)
	}
	c.cancel()
}

// Thumbnail renders a carousel tile of the frame, cropped to fill w×h.
func (r *Resolver) Thumbnail(ctx context.Context, id domain.FrameID, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", w, h)
	}
	asset, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(asset.Image, w, h, imaging.Lanczos), nil
}

func (r *Resolver) load(ctx context.Context, id domain.FrameID) (FrameAsset, error) {
	ctx, span := r.tracer.Start(ctx, "assets.resolve")
	span.SetAttributes(attribute.String("frame.id", id.String()))
	defer span.End()

	var attempts []error
	for i, ext := range r.formats {
		if err := ctx.Err(); err != nil {
			return FrameAsset{}, err
		}

		name := id.AssetName() + "." + ext
		data, err := r.source.Fetch(ctx, name)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("fetch %s: %w", name, err))
			r.logger.WithFields(logrus.Fields{"frame": id, "asset": name}).Debugf("frame fetch failed: %v", err)
			continue
		}

		img, _, err := r.decoder.Decode(ctx, data)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("decode %s: %w", name, err))
			r.logger.WithFields(logrus.Fields{"frame": id, "asset": name}).Warnf("frame decode failed: %v", err)
			continue
		}

		if i > 0 {
			r.logger.WithFields(logrus.Fields{"frame": id, "asset": name}).Warn("primary frame format failed, using fallback")
		}
		span.SetAttributes(
			attribute.String("frame.asset", name),
			attribute.Bool("frame.fallback", i > 0),
		)
		return FrameAsset{
			ID:       id,
			Name:     name,
			Format:   ext,
			Fallback: i > 0,
			Image:    r.fit(img),
		}, nil
	}

	err := fmt.Errorf("%w: %s: %w", ErrFrameUnavailable, id, errors.Join(attempts...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "frame unavailable")
	return FrameAsset{}, err
}

func (r *Resolver) fit(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == r.width && b.Dy() == r.height {
		return img
	}
	return imaging.Resize(img, r.width, r.height, imaging.Lanczos)
}

func normalizeFormats(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, f := range in {
		f = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
