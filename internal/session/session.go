// Package session owns the state of one compositing session: the uploaded
// photo, the selected frame, the transform and the last rendered composite.
//
// All mutations are serialized by the session lock. Photo decoding and frame
// resolution run asynchronously; each request is tagged with a generation and
// a completion is applied only while its generation is still current and the
// session is open. Whenever the photo, the settled frame or the transform
// changes, the composite is re-rendered and pushed to the PreviewSink.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/dunamismax/voteframe/internal/assets"
	"github.com/dunamismax/voteframe/internal/compositor"
	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/dunamismax/voteframe/internal/gesture"
	"github.com/dunamismax/voteframe/internal/id"
	"github.com/dunamismax/voteframe/internal/telemetry"
	"github.com/dunamismax/voteframe/internal/transform"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FrameResolver is satisfied by *assets.Resolver.
type FrameResolver interface {
	Resolve(ctx context.Context, id domain.FrameID) (assets.FrameAsset, error)
}

// PreviewSink receives every successful render and is told when the preview
// should be blanked. It is called with the session lock held and must not
// call back into the session.
type PreviewSink interface {
	Present(surface *image.RGBA, placement compositor.Placement)
	Clear()
}

type Options struct {
	Resolver   FrameResolver
	Decoder    compositor.Decoder
	Compositor *compositor.Compositor
	// Frame is the initial selection; DefaultFrame when empty.
	Frame       domain.FrameID
	Sensitivity float64
	// ResetFrame makes Reset also restore the default frame.
	ResetFrame bool
	AppName    string
	Preview    PreviewSink
	Metrics    *Metrics
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

type Session struct {
	id         string
	resolver   FrameResolver
	decoder    compositor.Decoder
	compositor *compositor.Compositor
	resetFrame bool
	appName    string
	preview    PreviewSink
	metrics    *Metrics
	logger     logrus.FieldLogger
	tracer     trace.Tracer
	now        func() time.Time

	wg sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	state      transform.State
	controller *gesture.Controller

	photo       image.Image
	photoFormat string
	photoErr    error
	photoGen    uint64
	photoCancel context.CancelFunc

	frameID      domain.FrameID
	frame        *assets.FrameAsset
	frameErr     error
	frameLoading bool
	frameGen     uint64
	frameCancel  context.CancelFunc

	surface   *image.RGBA
	rendered  bool
	placement compositor.Placement
}

// New creates a session and starts loading the initial frame.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Resolver == nil {
		return nil, errors.New("frame resolver is required")
	}

	decoder := opts.Decoder
	if decoder == nil {
		var err error
		decoder, err = compositor.NewDecoder()
		if err != nil {
			return nil, fmt.Errorf("build decoder: %w", err)
		}
	}

	comp := opts.Compositor
	if comp == nil {
		var err error
		comp, err = compositor.New(compositor.Options{})
		if err != nil {
			return nil, fmt.Errorf("build compositor: %w", err)
		}
	}

	frameID := opts.Frame
	if frameID == "" {
		frameID = domain.DefaultFrame
	}
	if !frameID.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFrame, frameID)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	appName := opts.AppName
	if appName == "" {
		appName = compositor.DefaultAppName
	}

	sessionID := id.New()
	s := &Session{
		id:         sessionID,
		resolver:   opts.Resolver,
		decoder:    decoder,
		compositor: comp,
		resetFrame: opts.ResetFrame,
		appName:    appName,
		preview:    opts.Preview,
		metrics:    metrics,
		logger:     logger.WithField("session_id", id.Short(sessionID)),
		tracer:     telemetry.Tracer("session"),
		now:        now,
		state:      transform.New(),
		surface:    comp.NewSurface(),
	}
	s.controller = gesture.NewController(&s.state, func() bool { return s.photo != nil }, opts.Sensitivity)

	s.mu.Lock()
	s.selectFrameLocked(ctx, frameID)
	s.mu.Unlock()

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Upload decodes data in the background. On success it replaces the photo
// and restores the default transform. A decode failure leaves the session
// without a photo. Cancelling ctx abandons the upload and keeps the current
// photo. The returned channel closes when the load settles,
// whether or not its result was applied.
func (s *Session) Upload(ctx context.Context, data []byte) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(done)
		return done
	}
	if s.photoCancel != nil {
		s.photoCancel()
	}
	s.photoGen++
	gen := s.photoGen
	loadCtx, cancel := context.WithCancel(ctx)
	s.photoCancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		img, format, err := s.decodeUpload(loadCtx, data)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.photoGen {
			s.metrics.staleCompletions.WithLabelValues("photo").Inc()
			s.logger.WithField("generation", gen).Debug("dropping stale photo decode")
			return
		}
		s.photoCancel = nil

		// The caller abandoned the upload; the current photo stays.
		if loadCtx.Err() != nil {
			s.metrics.uploadsTotal.WithLabelValues("cancelled", "").Inc()
			s.logger.WithField("generation", gen).Debug("photo upload cancelled")
			return
		}

		if err != nil {
			s.photo = nil
			s.photoFormat = ""
			s.photoErr = err
			s.clearLocked()
			s.metrics.uploadsTotal.WithLabelValues("error", "").Inc()
			s.logger.WithField("generation", gen).Warnf("photo decode failed: %v", err)
			return
		}

		s.photo = img
		s.photoFormat = format
		s.photoErr = nil
		s.state.Reset()
		s.metrics.uploadsTotal.WithLabelValues("ok", format).Inc()
		b := img.Bounds()
		s.logger.WithFields(logrus.Fields{
			"generation": gen,
			"format":     format,
			"width":      b.Dx(),
			"height":     b.Dy(),
		}).Info("photo loaded")
		if s.frameLoading {
			// The old composite no longer shows this photo.
			s.clearLocked()
		}
		s.renderLocked(loadCtx)
	}()

	return done
}

func (s *Session) decodeUpload(ctx context.Context, data []byte) (image.Image, string, error) {
	ctx, span := s.tracer.Start(ctx, "session.decode_upload")
	span.SetAttributes(attribute.Int("upload.bytes", len(data)))
	defer span.End()

	img, format, err := s.decoder.Decode(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, "", fmt.Errorf("decode upload: %w", err)
	}
	span.SetAttributes(attribute.String("upload.format", format))
	return img, format, nil
}

// SelectFrame switches the frame and resolves it in the background. Only the
// most recent selection is ever applied.
func (s *Session) SelectFrame(ctx context.Context, frameID domain.FrameID) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		done := make(chan struct{})
		close(done)
		return done
	}
	if !frameID.Valid() {
		s.logger.WithField("frame", frameID).Warn("ignoring unknown frame selection")
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.selectFrameLocked(ctx, frameID)
}

func (s *Session) selectFrameLocked(ctx context.Context, frameID domain.FrameID) <-chan struct{} {
	done := make(chan struct{})

	if s.frameCancel != nil {
		s.frameCancel()
	}
	s.frameGen++
	gen := s.frameGen
	s.frameID = frameID
	s.frameLoading = true
	loadCtx, cancel := context.WithCancel(ctx)
	s.frameCancel = cancel
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		asset, err := s.resolver.Resolve(loadCtx, frameID)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.frameGen {
			s.metrics.staleCompletions.WithLabelValues("frame").Inc()
			s.logger.WithFields(logrus.Fields{"frame": frameID, "generation": gen}).Debug("dropping stale frame load")
			return
		}
		s.frameCancel = nil
		s.frameLoading = false

		if err != nil {
			// Degraded: the photo still renders over the plain background.
			s.frame = nil
			s.frameErr = err
			s.metrics.frameLoadsTotal.WithLabelValues("error", "").Inc()
			s.logger.WithField("frame", frameID).Warnf("frame unavailable, rendering without it: %v", err)
		} else {
			s.frame = &asset
			s.frameErr = nil
			s.metrics.frameLoadsTotal.WithLabelValues("ok", asset.Format).Inc()
			s.logger.WithFields(logrus.Fields{"frame": frameID, "asset": asset.Name}).Debug("frame loaded")
		}
		s.renderLocked(loadCtx)
	}()

	return done
}

// SetZoom is the zoom slider. It is ignored while a drag is in progress so
// the transform has a single writer, and reports whether it was applied.
func (s *Session) SetZoom(v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.controller.Active() {
		return false
	}
	before := s.state.Zoom()
	s.state.SetZoom(v)
	if s.state.Zoom() != before {
		s.renderLocked(context.Background())
	}
	return true
}

// SetOffset is an offset slider; see SetZoom.
func (s *Session) SetOffset(axis transform.Axis, v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.controller.Active() {
		return false
	}
	before := s.state.Offset(axis)
	s.state.SetOffset(axis, v)
	if s.state.Offset(axis) != before {
		s.renderLocked(context.Background())
	}
	return true
}

// Gesture feeds one pointer or touch event to the drag controller.
func (s *Session) Gesture(ev gesture.Event) gesture.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return gesture.Result{}
	}
	res := s.controller.Handle(ev)
	if res.Changed {
		s.metrics.gestureMovesTotal.Inc()
		s.renderLocked(context.Background())
	}
	return res
}

// Reset clears the photo, restores the default transform and abandons any
// pending upload. The frame selection is kept unless ResetFrame was set.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.photoCancel != nil {
		s.photoCancel()
		s.photoCancel = nil
	}
	s.photoGen++
	s.photo = nil
	s.photoFormat = ""
	s.photoErr = nil
	s.state.Reset()
	s.controller.Handle(gesture.Event{Type: gesture.PointerUp})
	s.clearLocked()

	if s.resetFrame && s.frameID != domain.DefaultFrame {
		s.selectFrameLocked(context.Background(), domain.DefaultFrame)
	}
	s.logger.Debug("session reset")
}

// Export encodes the last rendered composite as PNG into w. With no photo,
// or while a new photo waits on its frame, there is nothing to export and ok
// is false.
func (s *Session) Export(w io.Writer) (name string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exportableLocked() {
		return "", false, nil
	}

	cw := &countingWriter{w: w}
	if err := compositor.EncodePNG(cw, s.surface); err != nil {
		return "", false, err
	}
	name = compositor.ExportFilename(s.appName, s.now())
	s.recordExportLocked(name, cw.n)
	return name, true, nil
}

// ExportTo is Export through an Emitter, such as a local directory.
func (s *Session) ExportTo(ctx context.Context, emitter compositor.Emitter) (compositor.Output, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exportableLocked() {
		return compositor.Output{}, false, nil
	}

	name := compositor.ExportFilename(s.appName, s.now())
	out, err := compositor.Export(ctx, emitter, name, s.surface)
	if err != nil {
		return compositor.Output{}, false, err
	}
	s.recordExportLocked(out.Name, out.Bytes)
	return out, true, nil
}

func (s *Session) exportableLocked() bool {
	return !s.closed && s.photo != nil && s.rendered
}

func (s *Session) recordExportLocked(name string, n int) {
	s.metrics.exportsTotal.Inc()
	s.metrics.exportBytesTotal.Add(float64(n))
	s.logger.WithFields(logrus.Fields{"file": name, "bytes": n}).Info("composite exported")
}

// Close ends the session. In-flight loads are cancelled and their results,
// should they still arrive, are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.photoCancel != nil {
		s.photoCancel()
		s.photoCancel = nil
	}
	if s.frameCancel != nil {
		s.frameCancel()
		s.frameCancel = nil
	}
	s.photoGen++
	s.frameGen++
	s.controller.Cancel()
}

// Wait blocks until every background load has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) State() transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Frame() domain.FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameID
}

// FrameAsset returns the settled asset of the current selection.
func (s *Session) FrameAsset() (assets.FrameAsset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil || s.frameLoading {
		return assets.FrameAsset{}, false
	}
	return *s.frame, true
}

func (s *Session) FrameLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLoading
}

func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo != nil
}

func (s *Session) FrameErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameErr
}

func (s *Session) PhotoErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photoErr
}

func (s *Session) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Active()
}

// Rendered returns a copy of the last composite and its placement.
func (s *Session) Rendered() (*image.RGBA, compositor.Placement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rendered {
		return nil, compositor.Placement{}, false
	}
	out := image.NewRGBA(s.surface.Rect)
	copy(out.Pix, s.surface.Pix)
	return out, s.placement, true
}

func (s *Session) renderLocked(ctx context.Context) {
	if s.closed || s.photo == nil || s.frameLoading {
		return
	}

	_, span := s.tracer.Start(ctx, "session.render")
	defer span.End()

	var frame image.Image
	frameLabel := "none"
	if s.frame != nil {
		frame = s.frame.Image
		frameLabel = s.frame.ID.String()
	}
	span.SetAttributes(
		attribute.String("frame.id", frameLabel),
		attribute.Float64("transform.zoom", s.state.Zoom()),
		attribute.Float64("transform.offset_x", s.state.OffsetX()),
		attribute.Float64("transform.offset_y", s.state.OffsetY()),
	)

	start := time.Now()
	placement, err := s.compositor.Render(s.surface, frame, s.photo, s.state)
	s.metrics.renderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.rendered = false
		s.metrics.rendersTotal.WithLabelValues("error", frameLabel).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		s.logger.Errorf("render composite: %v", err)
		return
	}

	s.rendered = true
	s.placement = placement
	s.metrics.rendersTotal.WithLabelValues("ok", frameLabel).Inc()
	if !placement.CoversClip() {
		s.metrics.uncoveredRenders.Inc()
	}
	if s.preview != nil {
		s.preview.Present(s.surface, placement)
	}
}

func (s *Session) clearLocked() {
	s.rendered = false
	s.placement = compositor.Placement{}
	if s.preview != nil {
		s.preview.Clear()
	}
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
