// Package sticker turns arbitrary raster images into payloads that satisfy
// Telegram's static sticker limits.
package sticker

import (
	"bytes"
	"image"
	"math"

	"github.com/pkg/errors"

	"sticker-bot/entity"
)

const (
	// Side is the length of the longer side of every sticker, in pixels.
	Side = 512
	// MaxBytes is the largest payload Telegram accepts for a static sticker.
	MaxBytes = 512 * 1024
	// MaxPixels bounds width*height of an accepted image. It matches
	// Pillow's decompression bomb threshold.
	MaxPixels = 178956970

	// FileName is the default name of a sticker written to disk.
	FileName = "sticker.webp"
)

// Quality steps tried when the default encoding is too big.
const (
	startQuality = 95
	qualityStep  = 5
	floorQuality = 30
)

// Fit tells how the payload was brought under MaxBytes.
type Fit int

const (
	// FitDefault means the codec default quality was small enough.
	FitDefault Fit = iota
	// FitReduced means a lowered quality was needed.
	FitReduced
	// FitOversized means every quality step was tried and the last
	// payload is still larger than MaxBytes.
	FitOversized
)

func (f Fit) String() string {
	switch f {
	case FitDefault:
		return "default"
	case FitReduced:
		return "reduced"
	case FitOversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// Result is a sticker-ready encoding.
type Result struct {
	Data   []byte
	Width  int
	Height int
	// Quality is the encoder quality of Data, 0 for the codec default.
	Quality int
	// Attempts lists the reduced qualities that were encoded, in order.
	Attempts []int
	Fit      Fit
}

// Oversized reports whether Data exceeds MaxBytes.
func (r Result) Oversized() bool {
	return r.Fit == FitOversized
}

// Normalizer decodes, resamples and re-encodes images. It keeps no state
// between calls and is safe for concurrent use.
type Normalizer struct {
	codec     codec
	side      int
	maxBytes  int
	maxPixels int
}

func New() *Normalizer {
	return &Normalizer{
		codec:     defaultCodec(),
		side:      Side,
		maxBytes:  MaxBytes,
		maxPixels: MaxPixels,
	}
}

// Normalize returns raw re-encoded as a WEBP sticker. Errors are
// *entity.NormalizeError values of kind entity.ErrUnsupportedImage or
// entity.ErrEncodingFailed.
func (n *Normalizer) Normalize(raw []byte) (Result, error) {
	if err := checkHeader(raw, n.maxPixels); err != nil {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrUnsupportedImage, Err: err}
	}

	img, err := n.codec.Decode(raw)
	if err != nil {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrUnsupportedImage, Err: err}
	}
	defer img.Close()

	w, h := img.Size()
	if w <= 0 || h <= 0 {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrUnsupportedImage, Err: errors.Errorf("invalid dimensions %dx%d", w, h)}
	}
	if err := checkPixels(w, h, n.maxPixels); err != nil {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrUnsupportedImage, Err: err}
	}

	tw, th := targetSize(w, h, n.side)
	if err := img.Resize(tw, th); err != nil {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrEncodingFailed, Err: errors.WithMessage(err, "resize")}
	}

	// Resamplers may round a side differently; report what was encoded.
	var res Result
	res.Width, res.Height = img.Size()
	data, err := img.Encode(0)
	if err != nil {
		return Result{}, &entity.NormalizeError{Kind: entity.ErrEncodingFailed, Err: err}
	}
	res.Data = data
	if len(data) <= n.maxBytes {
		res.Fit = FitDefault
		return res, nil
	}

	for quality := startQuality; quality > floorQuality; quality -= qualityStep {
		data, err := img.Encode(quality)
		if err != nil {
			return Result{}, &entity.NormalizeError{Kind: entity.ErrEncodingFailed, Err: errors.WithMessagef(err, "quality %d", quality)}
		}
		res.Data = data
		res.Quality = quality
		res.Attempts = append(res.Attempts, quality)
		if len(data) <= n.maxBytes {
			res.Fit = FitReduced
			return res, nil
		}
	}

	res.Fit = FitOversized
	return res, nil
}

// checkHeader rejects images whose header declares more than limit pixels.
// Formats without a registered header decoder are left to the codec.
func checkHeader(raw []byte, limit int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if errors.Is(err, image.ErrFormat) {
		return nil
	}
	if err != nil {
		return errors.WithMessage(err, "decode header")
	}
	return checkPixels(cfg.Width, cfg.Height, limit)
}

func checkPixels(w, h, limit int) error {
	if int64(w)*int64(h) > int64(limit) {
		return errors.Errorf("%dx%d exceeds the %d pixel limit", w, h, limit)
	}
	return nil
}

// targetSize scales (w, h) so the longer side equals side. Squares take the
// portrait branch.
func targetSize(w, h, side int) (int, int) {
	if w > h {
		return side, clampSide(math.Round(float64(h) * float64(side) / float64(w)))
	}
	return clampSide(math.Round(float64(w) * float64(side) / float64(h))), side
}

func clampSide(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
