package bot

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sticker-bot/entity"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// IsURL reports whether text should be treated as an image link.
func IsURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

// IsImage reports whether a response looks like an image, by declared
// content type or by the extension of the URL path.
func IsImage(contentType string, u *url.URL) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return true
	}
	if u == nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

type FetcherConfig struct {
	Timeout  time.Duration
	Proxy    *url.URL
	MaxBytes int64
}

// Fetcher downloads images referenced by URL.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	tracer   trace.Tracer
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != nil {
		transport.Proxy = http.ProxyURL(cfg.Proxy)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxBytes: cfg.MaxBytes,
		tracer:   otel.Tracer("sticker-bot/fetch"),
	}
}

// Fetch performs a single GET of rawURL and returns the body if the
// response is a successful image response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "fetch", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	data, err := f.fetch(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("body.bytes", len(data)))
	return data, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.WithMessage(entity.ErrFetch, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WithMessage(entity.ErrFetch, err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WithMessage(entity.ErrFetch, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &entity.StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !IsImage(contentType, resp.Request.URL) && !IsImage("", u) {
		return nil, errors.WithMessagef(entity.ErrUnsupportedFormat, "content type %q", contentType)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, errors.WithMessagef(entity.ErrTooLarge, "%d bytes", resp.ContentLength)
	}
	return readLimited(resp.Body, f.maxBytes)
}
