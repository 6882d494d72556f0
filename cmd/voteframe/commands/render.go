package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dunamismax/voteframe/internal/compositor"
	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/dunamismax/voteframe/internal/gesture"
	"github.com/dunamismax/voteframe/internal/session"
	"github.com/dunamismax/voteframe/internal/transform"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type renderFlags struct {
	photo   string
	frame   string
	zoom    float64
	offsetX float64
	offsetY float64
	drag    string
	out     string
	preview string
}

func renderCmd() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render and export a framed composite",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.photo, "photo", "", "photo to place in the frame")
	cmd.Flags().StringVar(&f.frame, "frame", domain.DefaultFrame.String(), "frame id (frame1..frame5)")
	cmd.Flags().Float64Var(&f.zoom, "zoom", transform.DefaultZoom, "zoom percent, 50-250")
	cmd.Flags().Float64Var(&f.offsetX, "offset-x", 0, "horizontal offset, -100..100")
	cmd.Flags().Float64Var(&f.offsetY, "offset-y", 0, "vertical offset, -100..100")
	cmd.Flags().StringVar(&f.drag, "drag", "", `drag path applied after the sliders, e.g. "100,100 150,80"`)
	cmd.Flags().StringVar(&f.out, "out", "", "export directory (default app.output_dir)")
	cmd.Flags().StringVar(&f.preview, "preview", "", "also write a downscaled preview PNG here")
	_ = cmd.MarkFlagRequired("photo")
	return cmd
}

func runRender(cmd *cobra.Command, f renderFlags) error {
	ctx := cmd.Context()

	frameID, err := domain.ParseFrameID(f.frame)
	if err != nil {
		return err
	}
	drag, err := parseDrag(f.drag)
	if err != nil {
		return err
	}
	photo, err := os.ReadFile(f.photo)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	comp, err := compositor.New(compositor.Options{Kernel: cfg.Render.Kernel})
	if err != nil {
		return err
	}

	s, err := session.New(ctx, session.Options{
		Resolver:    resolver,
		Compositor:  comp,
		Frame:       frameID,
		Sensitivity: cfg.Gesture.Sensitivity,
		ResetFrame:  cfg.Session.ResetFrame,
		AppName:     cfg.App.Name,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		s.Close()
		s.Wait()
	}()

	<-s.Upload(ctx, photo)
	s.Wait()
	if err := s.PhotoErr(); err != nil {
		return err
	}
	if err := s.FrameErr(); err != nil {
		logger.Warnf("exporting without frame: %v", err)
	}

	s.SetZoom(f.zoom)
	s.SetOffset(transform.AxisX, f.offsetX)
	s.SetOffset(transform.AxisY, f.offsetY)
	for _, ev := range drag {
		s.Gesture(ev)
	}

	outDir := f.out
	if outDir == "" {
		outDir = cfg.App.OutputDir
	}
	out, ok, err := s.ExportTo(ctx, compositor.LocalFileEmitter{OutputDir: outDir})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("nothing to export")
	}

	state := s.State()
	_, placement, _ := s.Rendered()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %s) zoom=%.0f offset=(%.1f,%.1f)\n",
		out.Path, out.Width, out.Height, humanize.Bytes(uint64(out.Bytes)),
		state.Zoom(), state.OffsetX(), state.OffsetY())
	if !placement.CoversClip() {
		logger.Warn("photo does not fully cover the circular cut-out at this zoom and offset")
	}

	if f.preview != "" {
		if err := writePreview(s, f.preview); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote preview %s\n", f.preview)
	}

	if cfg.Metrics.Textfile != "" {
		if err := s.Metrics().WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warnf("%v", err)
		}
	}
	return nil
}

func writePreview(s *session.Session, path string) error {
	surface, _, ok := s.Rendered()
	if !ok {
		return fmt.Errorf("nothing rendered")
	}
	preview, err := compositor.Preview(surface, cfg.Render.PreviewHeight)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := compositor.EncodePNG(&buf, preview); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	return writeFile(path, buf.Bytes())
}

// parseDrag turns "x1,y1 x2,y2 ..." into a pointer down, moves and an up.
func parseDrag(in string) ([]gesture.Event, error) {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("drag needs at least two points, got %q", in)
	}

	events := make([]gesture.Event, 0, len(fields)+1)
	for i, field := range fields {
		pt, err := parsePoint(field)
		if err != nil {
			return nil, err
		}
		typ := gesture.PointerMove
		if i == 0 {
			typ = gesture.PointerDown
		}
		events = append(events, gesture.Event{Type: typ, At: pt})
	}
	last := events[len(events)-1].At
	events = append(events, gesture.Event{Type: gesture.PointerUp, At: last})
	return events, nil
}

func parsePoint(in string) (gesture.Point, error) {
	xs, ys, ok := strings.Cut(in, ",")
	if !ok {
		return gesture.Point{}, fmt.Errorf("invalid drag point %q, want x,y", in)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("invalid drag point %q: %w", in, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return gesture.Point{}, fmt.Errorf("invalid drag point %q: %w", in, err)
	}
	return gesture.Point{X: x, Y: y}, nil
}
