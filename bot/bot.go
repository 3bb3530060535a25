package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/telebot.v3"

	botUtils "sticker-bot/bot/utils"
	"sticker-bot/entity"
	"sticker-bot/metrics"
	"sticker-bot/sticker"
)

// Gateway is the part of *telebot.Bot the handlers use.
type Gateway interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
	Start()
	Stop()
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Delete(msg telebot.Editable) error
	File(file *telebot.File) (io.ReadCloser, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, raw []byte) (sticker.Result, error)
}

type Api struct {
	api         Gateway
	fetcher     Fetcher
	normalizer  Normalizer
	sticker     botUtils.Sticker
	metrics     *metrics.Metrics
	log         *slog.Logger
	tracer      trace.Tracer
	maxDownload int64
}

type Options struct {
	Fetcher     Fetcher
	Normalizer  Normalizer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	MaxDownload int64
}

func NewBot(api Gateway, opts Options) *Api {
	return &Api{
		api:         api,
		fetcher:     opts.Fetcher,
		normalizer:  opts.Normalizer,
		sticker:     botUtils.NewSticker(api),
		metrics:     opts.Metrics,
		log:         opts.Logger,
		tracer:      otel.Tracer("sticker-bot/bot"),
		maxDownload: opts.MaxDownload,
	}
}

// Start registers the handlers and polls for updates until ctx is done.
func (bot *Api) Start(ctx context.Context) {
	bot.Register(ctx)

	go func() {
		<-ctx.Done()
		bot.api.Stop()
	}()

	bot.log.Info("bot started")
	bot.api.Start()
	bot.log.Info("bot stopped")
}

func (bot *Api) Register(ctx context.Context) {
	bot.api.Handle("/start", bot.handleStart)
	bot.api.Handle("/help", bot.handleHelp)
	bot.api.Handle(telebot.OnText, bot.handleMessage(ctx))
	bot.api.Handle(telebot.OnPhoto, bot.handleMessage(ctx))
	bot.api.Handle(telebot.OnDocument, bot.handleMessage(ctx))
}

func (bot *Api) handleStart(c telebot.Context) error {
	return bot.reply(c.Chat(), entity.Start)
}

func (bot *Api) handleHelp(c telebot.Context) error {
	return bot.reply(c.Chat(), entity.Help)
}

func (bot *Api) handleMessage(ctx context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return bot.dispatch(ctx, c.Message())
	}
}

// dispatch picks the trigger for an inbound message.
func (bot *Api) dispatch(ctx context.Context, msg *telebot.Message) error {
	if msg == nil || msg.Chat == nil {
		return nil
	}
	chat := msg.Chat

	switch {
	case msg.Photo != nil:
		file := msg.Photo.File
		return bot.process(ctx, chat, metrics.TriggerPhoto, func(context.Context) ([]byte, error) {
			return botUtils.Download(bot.api, &file, bot.maxDownload)
		})
	case msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/"):
		file := msg.Document.File
		return bot.process(ctx, chat, metrics.TriggerDocument, func(context.Context) ([]byte, error) {
			return botUtils.Download(bot.api, &file, bot.maxDownload)
		})
	case botUtils.IsURL(msg.Text):
		url := msg.Text
		return bot.process(ctx, chat, metrics.TriggerURL, func(ctx context.Context) ([]byte, error) {
			return bot.fetcher.Fetch(ctx, url)
		})
	default:
		return bot.reply(chat, entity.SendValidURL)
	}
}

// process runs one request: progress message, raw bytes, normalization and
// the sticker reply. Failures replace the progress message.
func (bot *Api) process(ctx context.Context, chat *telebot.Chat, trigger string, source func(context.Context) ([]byte, error)) error {
	started := time.Now()
	ctx, span := bot.tracer.Start(ctx, "sticker.request", trace.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Int64("chat.id", chat.ID),
	))
	defer span.End()

	log := bot.log.With("chat_id", chat.ID, "trigger", trigger)

	progress, err := bot.api.Send(chat, entity.Processing)
	if err != nil {
		return errors.WithMessage(entity.ErrSendMsg, err.Error())
	}

	raw, err := source(ctx)
	if err != nil {
		return bot.fail(span, log, progress, trigger, started, err)
	}

	normalizeStarted := time.Now()
	res, err := bot.normalizer.Normalize(ctx, raw)
	if err != nil {
		return bot.fail(span, log, progress, trigger, started, err)
	}
	bot.metrics.ObserveNormalize(time.Since(normalizeStarted), len(res.Data), len(res.Attempts))

	outcome := metrics.OutcomeSuccess
	if res.Oversized() {
		outcome = metrics.OutcomeOversized
		log.Warn("sticker still exceeds size limit after quality reduction",
			"bytes", len(res.Data), "limit", sticker.MaxBytes, "quality", res.Quality)
	}

	if err := bot.api.Delete(progress); err != nil {
		log.Warn("delete progress message", "err", err)
	}

	if _, err := bot.sticker.UploadSticker(chat, res.Data); err != nil {
		bot.metrics.ObserveRequest(trigger, metrics.OutcomeError, time.Since(started))
		span.RecordError(err)
		span.SetStatus(codes.Error, "send sticker")
		return err
	}

	if _, err := bot.api.Send(chat, entity.StickerCreated); err != nil {
		return errors.WithMessage(entity.ErrSendMsg, err.Error())
	}

	log.Info("sticker sent",
		"width", res.Width, "height", res.Height, "bytes", len(res.Data),
		"fit", res.Fit.String(), "duration", time.Since(started))
	bot.metrics.ObserveRequest(trigger, outcome, time.Since(started))
	return nil
}

func (bot *Api) fail(span trace.Span, log *slog.Logger, progress *telebot.Message, trigger string, started time.Time, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	log.Error("sticker request failed", "err", cause)
	bot.metrics.ObserveRequest(trigger, outcomeFor(cause), time.Since(started))

	if _, err := bot.api.Edit(progress, entity.FailureText(cause)); err != nil {
		return errors.WithMessage(entity.ErrSendMsg, err.Error())
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, entity.ErrUnsupportedFormat):
		return metrics.OutcomeRejected
	case errors.Is(err, entity.ErrFetch), errors.Is(err, entity.ErrTooLarge):
		return metrics.OutcomeFetchFailed
	case errors.Is(err, entity.ErrUnsupportedImage), errors.Is(err, entity.ErrEncodingFailed):
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomeError
	}
}

func (bot *Api) reply(chat *telebot.Chat, text string) error {
	if _, err := bot.api.Send(chat, text); err != nil {
		return errors.WithMessage(entity.ErrSendMsg, err.Error())
	}
	return nil
}
