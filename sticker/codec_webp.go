//go:build !govips

package sticker

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/pkg/errors"
)

// Slowest, best-compressing libwebp method.
const optimizeMethod = 6

type webpCodec struct{}

func defaultCodec() codec {
	return webpCodec{}
}

func (webpCodec) Decode(raw []byte) (frame, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.WithMessage(err, "decode")
	}
	return &webpFrame{img: img}, nil
}

type webpFrame struct {
	img image.Image
}

func (f *webpFrame) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

func (f *webpFrame) Resize(width, height int) error {
	f.img = imaging.Resize(f.img, width, height, imaging.Lanczos)
	return nil
}

func (f *webpFrame) Encode(quality int) ([]byte, error) {
	if quality <= 0 {
		quality = defaultQuality
	}
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, errors.WithMessage(err, "encoder options")
	}
	opts.Method = optimizeMethod

	var buf bytes.Buffer
	if err := webp.Encode(&buf, f.img, opts); err != nil {
		return nil, errors.WithMessage(err, "encode webp")
	}
	return buf.Bytes(), nil
}

func (f *webpFrame) Close() {}
