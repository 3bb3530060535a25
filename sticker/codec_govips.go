//go:build govips

package sticker

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/pkg/errors"
)

// Highest libvips WEBP reduction effort.
const optimizeEffort = 6

var startupOnce sync.Once

type vipsCodec struct{}

func defaultCodec() codec {
	return vipsCodec{}
}

func startup() {
	startupOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   64 * 1024 * 1024,
			MaxCacheSize:  100,
		})
	})
}

func (vipsCodec) Decode(raw []byte) (frame, error) {
	startup()

	img, err := vips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, errors.WithMessage(err, "decode")
	}
	// Pixels load lazily, so the header size is known before any decoding.
	if err := checkPixels(img.Width(), img.Height(), MaxPixels); err != nil {
		img.Close()
		return nil, err
	}
	if err := img.AutoRotate(); err != nil {
		img.Close()
		return nil, errors.WithMessage(err, "auto rotate")
	}
	return &vipsFrame{img: img}, nil
}

type vipsFrame struct {
	img *vips.ImageRef
}

func (f *vipsFrame) Size() (int, int) {
	return f.img.Width(), f.img.Height()
}

func (f *vipsFrame) Resize(width, height int) error {
	hscale := float64(width) / float64(f.img.Width())
	vscale := float64(height) / float64(f.img.Height())
	return f.img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3)
}

func (f *vipsFrame) Encode(quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}
	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.ReductionEffort = optimizeEffort

	data, _, err := f.img.ExportWebp(params)
	if err != nil {
		return nil, errors.WithMessage(err, "encode webp")
	}
	return data, nil
}

func (f *vipsFrame) Close() {
	f.img.Close()
}
