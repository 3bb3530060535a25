package entity

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrStatusCode        = errors.New("status code error")
	ErrFetch             = errors.New("fetch error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTooLarge          = errors.New("file is too large")
	ErrUnsupportedImage  = errors.New("unsupported or corrupt image")
	ErrEncodingFailed    = errors.New("encoding failed")
	ErrSendSticker       = errors.New("send sticker")
	ErrSendMsg           = errors.New("send message error")
)

// StatusError is returned when an image host answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrStatusCode, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatusCode || target == ErrFetch
}

// NormalizeError reports why an image could not be turned into a sticker.
// Kind is ErrUnsupportedImage or ErrEncodingFailed.
type NormalizeError struct {
	Kind error
	Err  error
}

func (e *NormalizeError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *NormalizeError) Is(target error) bool {
	return target == e.Kind
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}
