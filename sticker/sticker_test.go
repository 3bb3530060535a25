package sticker

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sticker-bot/entity"
)

// fakeCodec produces frames whose encoded size depends only on quality.
type fakeCodec struct {
	width, height int
	decodeErr     error
	encodeErr     error
	sizeFor       func(quality int) int
	// resizeSlop is added to the requested width, as a rounding resampler would.
	resizeSlop int
	decodes    int
	last       *fakeFrame
}

func (c *fakeCodec) Decode([]byte) (frame, error) {
	c.decodes++
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	c.last = &fakeFrame{codec: c, width: c.width, height: c.height}
	return c.last, nil
}

type fakeFrame struct {
	codec         *fakeCodec
	width, height int
	encoded       []int
	closed        bool
}

func (f *fakeFrame) Size() (int, int) { return f.width, f.height }

func (f *fakeFrame) Resize(width, height int) error {
	f.width, f.height = width+f.codec.resizeSlop, height
	return nil
}

func (f *fakeFrame) Encode(quality int) ([]byte, error) {
	f.encoded = append(f.encoded, quality)
	if f.codec.encodeErr != nil {
		return nil, f.codec.encodeErr
	}
	return make([]byte, f.codec.sizeFor(quality)), nil
}

func (f *fakeFrame) Close() { f.closed = true }

func newTestNormalizer(c codec) *Normalizer {
	return &Normalizer{codec: c, side: Side, maxBytes: MaxBytes, maxPixels: MaxPixels}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h
// grayscale image with no pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.WriteString("IHDR")
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(append([]byte("IHDR"), ihdr...)))
	return buf.Bytes()
}

func TestTargetSize(t *testing.T) {
	cases := map[string]struct {
		w, h         int
		wantW, wantH int
	}{
		"landscape 2:1":      {w: 2000, h: 1000, wantW: 512, wantH: 256},
		"portrait 1:2":       {w: 1000, h: 2000, wantW: 256, wantH: 512},
		"square upscale":     {w: 100, h: 100, wantW: 512, wantH: 512},
		"square downscale":   {w: 4096, h: 4096, wantW: 512, wantH: 512},
		"already bounded":    {w: 512, h: 256, wantW: 512, wantH: 256},
		"rounds half up":     {w: 1024, h: 3, wantW: 512, wantH: 2},
		"rounds to nearest":  {w: 3000, h: 1001, wantW: 512, wantH: 171},
		"portrait rounding":  {w: 333, h: 1000, wantW: 170, wantH: 512},
		"extreme landscape":  {w: 10000, h: 1, wantW: 512, wantH: 1},
		"extreme portrait":   {w: 1, h: 10000, wantW: 1, wantH: 512},
		"one pixel wider":    {w: 513, h: 512, wantW: 512, wantH: 511},
		"one pixel narrower": {w: 512, h: 513, wantW: 511, wantH: 512},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, h := targetSize(tc.w, tc.h, Side)
			assert.Equal(t, tc.wantW, w, "width")
			assert.Equal(t, tc.wantH, h, "height")
		})
	}
}

func TestTargetSizeKeepsAspectRatio(t *testing.T) {
	for w := 1; w <= 3000; w += 97 {
		for h := 1; h <= 3000; h += 89 {
			tw, th := targetSize(w, h, Side)
			if w > h {
				require.Equal(t, Side, tw)
				assert.InDelta(t, float64(h)*Side/float64(w), float64(th), 1, "%dx%d", w, h)
			} else {
				require.Equal(t, Side, th)
				assert.InDelta(t, float64(w)*Side/float64(h), float64(tw), 1, "%dx%d", w, h)
			}
		}
	}
}

func TestNormalizeDefaultQualityFits(t *testing.T) {
	c := &fakeCodec{width: 2000, height: 1000, sizeFor: func(int) int { return 1000 }}

	res, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.NoError(t, err)

	assert.Equal(t, FitDefault, res.Fit)
	assert.Equal(t, 0, res.Quality)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, 512, res.Width)
	assert.Equal(t, 256, res.Height)
	assert.Len(t, res.Data, 1000)
}

func TestNormalizeLimitIsInclusive(t *testing.T) {
	c := &fakeCodec{width: 10, height: 10, sizeFor: func(int) int { return MaxBytes }}

	res, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.NoError(t, err)
	assert.Equal(t, FitDefault, res.Fit)
}

func TestNormalizeReducesQuality(t *testing.T) {
	c := &fakeCodec{width: 800, height: 600, sizeFor: func(q int) int {
		switch {
		case q == 0:
			return MaxBytes + 1
		case q > 80:
			return MaxBytes + 100
		default:
			return MaxBytes - 100
		}
	}}

	res, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.NoError(t, err)

	assert.Equal(t, FitReduced, res.Fit)
	assert.Equal(t, 80, res.Quality)
	assert.Equal(t, []int{95, 90, 85, 80}, res.Attempts)
	assert.LessOrEqual(t, len(res.Data), MaxBytes)
}

func TestNormalizeOversizedAfterAllQualities(t *testing.T) {
	var f *fakeFrame
	c := &fakeCodec{width: 300, height: 900, sizeFor: func(q int) int { return MaxBytes + 1000 - q }}
	n := newTestNormalizer(c)
	n.codec = codecFunc(func(raw []byte) (frame, error) {
		fr, err := c.Decode(raw)
		f = fr.(*fakeFrame)
		return fr, err
	})

	res, err := n.Normalize([]byte("img"))
	require.NoError(t, err)

	assert.Equal(t, FitOversized, res.Fit)
	assert.True(t, res.Oversized())
	assert.Equal(t, []int{95, 90, 85, 80, 75, 70, 65, 60, 55, 50, 45, 40, 35}, res.Attempts)
	assert.Equal(t, 35, res.Quality)
	assert.Len(t, res.Data, MaxBytes+1000-35)
	assert.Equal(t, append([]int{0}, res.Attempts...), f.encoded, "every candidate re-encodes the same frame")
	assert.True(t, f.closed)
}

func TestNormalizeDecodeFailure(t *testing.T) {
	c := &fakeCodec{decodeErr: errors.New("image: unknown format")}

	_, err := newTestNormalizer(c).Normalize([]byte("garbage"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnsupportedImage))
	assert.Contains(t, err.Error(), "unknown format")
}

func TestNormalizeRejectsOversizedHeader(t *testing.T) {
	c := &fakeCodec{width: 10, height: 10, sizeFor: func(int) int { return 10 }}

	_, err := newTestNormalizer(c).Normalize(pngHeader(20000, 20000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnsupportedImage))
	assert.Contains(t, err.Error(), "20000x20000")
	assert.Zero(t, c.decodes, "pixels must not be decoded")
}

func TestNormalizeAcceptsHeaderAtPixelLimit(t *testing.T) {
	c := &fakeCodec{width: 10, height: 10, sizeFor: func(int) int { return 10 }}
	n := newTestNormalizer(c)
	n.maxPixels = 400 * 300

	_, err := n.Normalize(pngHeader(400, 300))
	require.NoError(t, err)
	assert.Equal(t, 1, c.decodes)
}

func TestNormalizeRejectsOversizedFrame(t *testing.T) {
	c := &fakeCodec{width: 20000, height: 20000, sizeFor: func(int) int { return 10 }}

	_, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrUnsupportedImage))
	require.NotNil(t, c.last)
	assert.True(t, c.last.closed)
	assert.Empty(t, c.last.encoded)
}

func TestNormalizeReportsResampledSize(t *testing.T) {
	c := &fakeCodec{width: 3000, height: 1001, resizeSlop: 1, sizeFor: func(int) int { return 10 }}

	res, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 513, res.Width)
	assert.Equal(t, 171, res.Height)
}

func TestNormalizeEncodeFailure(t *testing.T) {
	c := &fakeCodec{width: 10, height: 10, encodeErr: errors.New("out of memory")}

	_, err := newTestNormalizer(c).Normalize([]byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrEncodingFailed))
}

func TestFitString(t *testing.T) {
	assert.Equal(t, "default", FitDefault.String())
	assert.Equal(t, "reduced", FitReduced.String())
	assert.Equal(t, "oversized", FitOversized.String())
	assert.Equal(t, "unknown", Fit(42).String())
}

type codecFunc func(raw []byte) (frame, error)

func (f codecFunc) Decode(raw []byte) (frame, error) { return f(raw) }
