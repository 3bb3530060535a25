package sticker

// Header decoders for the pixel limit, registered for both codecs.
import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// defaultQuality is used when a frame is encoded with quality 0. It is
// Pillow's WEBP default.
const defaultQuality = 80

// codec decodes raw bytes into a frame. Implementations are selected at
// build time, see codec_webp.go and codec_govips.go.
type codec interface {
	Decode(raw []byte) (frame, error)
}

// frame is a decoded pixel grid.
type frame interface {
	Size() (width, height int)
	// Resize resamples the grid in place with a Lanczos filter.
	Resize(width, height int) error
	// Encode writes the grid as WEBP with encoder optimization enabled.
	// A quality of 0 selects the encoder default.
	Encode(quality int) ([]byte, error)
	Close()
}
