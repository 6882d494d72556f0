package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestResolvePrefersPNG(t *testing.T) {
	fsys := fstest.MapFS{
		"frame1.png":  {Data: encodePNG(t, 1080, 1350)},
		"frame1.jpeg": {Data: encodeJPEG(t, 1080, 1350)},
	}
	r := newTestResolver(t, DirSource{FS: fsys})

	asset, err := r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)
	assert.Equal(t, "frame1.png", asset.Name)
	assert.Equal(t, "png", asset.Format)
	assert.False(t, asset.Fallback)
	assert.Equal(t, image.Rect(0, 0, 1080, 1350), asset.Image.Bounds())
}

func TestResolveFallsBackToJPEG(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	fsys := fstest.MapFS{
		"frame3.jpeg": {Data: encodeJPEG(t, 1080, 1350)},
	}
	r, err := NewResolver(Options{Source: DirSource{FS: fsys}, Logger: logger})
	require.NoError(t, err)

	asset, err := r.Resolve(context.Background(), domain.Frame3)
	require.NoError(t, err)
	assert.Equal(t, "frame3.jpeg", asset.Name)
	assert.True(t, asset.Fallback)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "frame3.jpeg", entry.Data["asset"])
}

func TestResolveFallsBackWhenPrimaryIsCorrupt(t *testing.T) {
	fsys := fstest.MapFS{
		"frame2.png":  {Data: []byte("not a png")},
		"frame2.jpeg": {Data: encodeJPEG(t, 1080, 1350)},
	}
	r := newTestResolver(t, DirSource{FS: fsys})

	asset, err := r.Resolve(context.Background(), domain.Frame2)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", asset.Format)
}

func TestResolveFitsFrameToCanvas(t *testing.T) {
	fsys := fstest.MapFS{
		"frame4.png": {Data: encodePNG(t, 540, 675)},
	}
	r := newTestResolver(t, DirSource{FS: fsys})

	asset, err := r.Resolve(context.Background(), domain.Frame4)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1080, 1350), asset.Image.Bounds())
}

func TestResolveReportsEveryAttempt(t *testing.T) {
	r := newTestResolver(t, DirSource{FS: fstest.MapFS{}})

	_, err := r.Resolve(context.Background(), domain.Frame5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameUnavailable))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "frame5.png")
	assert.Contains(t, err.Error(), "frame5.jpeg")
	assert.False(t, r.Cached(domain.Frame5), "failures must not be cached")
}

func TestResolveRejectsUnknownFrame(t *testing.T) {
	r := newTestResolver(t, DirSource{FS: fstest.MapFS{}})

	_, err := r.Resolve(context.Background(), domain.FrameID("frame9"))
	assert.True(t, errors.Is(err, domain.ErrUnknownFrame))
}

func TestResolveCachesSuccess(t *testing.T) {
	src := &countingSource{data: map[string][]byte{"frame1.png": encodePNG(t, 1080, 1350)}}
	r := newTestResolver(t, src)

	first, err := r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)

	assert.Same(t, first.Image, second.Image)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.True(t, r.Cached(domain.Frame1))
}

func TestResolveRetriesAfterFailure(t *testing.T) {
	src := &countingSource{data: map[string][]byte{}}
	r := newTestResolver(t, src)

	_, err := r.Resolve(context.Background(), domain.Frame1)
	require.Error(t, err)

	src.set("frame1.png", encodePNG(t, 1080, 1350))
	_, err = r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)
}

func TestResolveSharesInflightLoad(t *testing.T) {
	release := make(chan struct{})
	src := &countingSource{
		data:    map[string][]byte{"frame2.png": encodePNG(t, 1080, 1350)},
		release: release,
	}
	r := newTestResolver(t, src)

	const callers = 4
	var wg sync.WaitGroup
	results := make([]FrameAsset, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset, err := r.Resolve(context.Background(), domain.Frame2)
			assert.NoError(t, err)
			results[i] = asset
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, timeout, tick)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	for _, res := range results {
		assert.Same(t, results[0].Image, res.Image)
	}
}

func TestResolveSurvivesCancelledLeader(t *testing.T) {
	release := make(chan struct{})
	src := &countingSource{
		data:    map[string][]byte{"frame2.png": encodePNG(t, 1080, 1350)},
		release: release,
	}
	r := newTestResolver(t, src)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(leaderCtx, domain.Frame2)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, timeout, tick)

	type result struct {
		asset FrameAsset
		err   error
	}
	waiter := make(chan result, 1)
	go func() {
		asset, err := r.Resolve(context.Background(), domain.Frame2)
		waiter <- result{asset, err}
	}()
	require.Eventually(t, func() bool { return r.waiters(domain.Frame2) == 2 }, timeout, tick)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	res := <-waiter
	require.NoError(t, res.err)
	assert.Equal(t, "frame2.png", res.asset.Name)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.True(t, r.Cached(domain.Frame2))
}

func TestResolveAbandonedLoadStartsAfresh(t *testing.T) {
	release := make(chan struct{})
	src := &countingSource{
		data:    map[string][]byte{"frame3.png": encodePNG(t, 1080, 1350)},
		release: release,
	}
	r := newTestResolver(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, domain.Frame3)
		errc <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, timeout, tick)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, r.waiters(domain.Frame3))
	assert.False(t, r.Cached(domain.Frame3))

	close(release)
	asset, err := r.Resolve(context.Background(), domain.Frame3)
	require.NoError(t, err)
	assert.Equal(t, "frame3.png", asset.Name)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestResolveRejectsCancelledContext(t *testing.T) {
	src := &countingSource{data: map[string][]byte{"frame1.png": encodePNG(t, 1080, 1350)}}
	r := newTestResolver(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, domain.Frame1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.calls.Load())
}

func TestResolveHonorsCustomFormatChain(t *testing.T) {
	fsys := fstest.MapFS{
		"frame1.png": {Data: encodePNG(t, 1080, 1350)},
		"frame1.jpg": {Data: encodeJPEG(t, 1080, 1350)},
	}
	r, err := NewResolver(Options{
		Source:  DirSource{FS: fsys},
		Formats: []string{".JPG", "png", "jpg"},
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"jpg", "png"}, r.Formats())

	asset, err := r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)
	assert.Equal(t, "frame1.jpg", asset.Name)
	assert.False(t, asset.Fallback)
}

func TestThumbnail(t *testing.T) {
	fsys := fstest.MapFS{"frame1.png": {Data: encodePNG(t, 1080, 1350)}}
	r := newTestResolver(t, DirSource{FS: fsys})

	thumb, err := r.Thumbnail(context.Background(), domain.Frame1, 160, 200)
	require.NoError(t, err)
	assert.Equal(t, 160, thumb.Bounds().Dx())
	assert.Equal(t, 200, thumb.Bounds().Dy())

	_, err = r.Thumbnail(context.Background(), domain.Frame1, 0, 200)
	assert.Error(t, err)
}

func TestObjectSourceUsesPrefixedKeys(t *testing.T) {
	reader := &fakeObjectReader{objects: map[string][]byte{
		"frames/frame1.jpeg": encodeJPEG(t, 1080, 1350),
	}}
	r := newTestResolver(t, ObjectSource{Storage: reader, Prefix: "/frames/"})

	asset, err := r.Resolve(context.Background(), domain.Frame1)
	require.NoError(t, err)
	assert.Equal(t, "frame1.jpeg", asset.Name)
	assert.Equal(t, []string{"frames/frame1.png", "frames/frame1.jpeg"}, reader.keys)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "frame1.png", ObjectKey("", "frame1.png"))
	assert.Equal(t, "frames/frame1.png", ObjectKey("frames", "frame1.png"))
	assert.Equal(t, "a/b/frame1.png", ObjectKey(" /a/b/ ", "frame1.png"))
}

func TestDirSourceHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DirSource{FS: fstest.MapFS{}}.Fetch(ctx, "frame1.png")
	assert.True(t, errors.Is(err, context.Canceled))
}

func newTestResolver(t *testing.T, src Source) *Resolver {
	t.Helper()
	r, err := NewResolver(Options{Source: src, Logger: quietLogger()})
	require.NoError(t, err)
	return r
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

// waiters reports how many callers are attached to the in-flight load of id.
func (r *Resolver) waiters(id domain.FrameID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.inflight[id]; ok {
		return c.waiters
	}
	return 0
}

type countingSource struct {
	mu      sync.Mutex
	data    map[string][]byte
	release chan struct{}
	calls   atomic.Int32
}

func (s *countingSource) set(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = data
}

func (s *countingSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

type fakeObjectReader struct {
	objects map[string][]byte
	keys    []string
}

func (f *fakeObjectReader) ReadObject(_ context.Context, key string) ([]byte, error) {
	f.keys = append(f.keys, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 60, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}
