package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"sticker-bot/bot"
	botUtils "sticker-bot/bot/utils"
	"sticker-bot/conf"
	"sticker-bot/metrics"
	"sticker-bot/sticker"
	"sticker-bot/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("stickerbot", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "stickerbot",
		Short:         "Telegram bot that turns images into stickers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional .env/.yaml file read before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Poll Telegram for updates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "convert <input> [output]",
			Short: "Convert an image file into a sticker file (default output " + sticker.FileName + ")",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				output := sticker.FileName
				if len(args) == 2 {
					output = args[1]
				}
				return convert(cmd, args[0], output)
			},
		},
		&cobra.Command{
			Use:   "env",
			Short: "List the environment variables the bot reads",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				cmd.Println(conf.Usage())
			},
		},
	)
	return root
}

func run(ctx context.Context, configPath string) error {
	cfg, err := conf.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Trace, logger)
	if err != nil {
		return errors.WithMessage(err, "setup tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("shutdown tracing", "err", err)
		}
	}()

	proxy, err := cfg.Proxy()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.PollTimeout + time.Minute}
	if proxy != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxy)
		client.Transport = transport
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.TelegramBotApiKey,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		Client: client,
		OnError: func(err error, c tele.Context) {
			if c != nil && c.Chat() != nil {
				logger.Error("handler failed", "chat_id", c.Chat().ID, "err", err)
				return
			}
			logger.Error("telegram", "err", err)
		},
	})
	if err != nil {
		return errors.WithMessage(err, "connect to telegram")
	}
	logger.Info("authorized", "username", b.Me.Username)

	m := metrics.New()
	api := bot.NewBot(b, bot.Options{
		Fetcher: botUtils.NewFetcher(botUtils.FetcherConfig{
			Timeout:  cfg.FetchTimeout,
			Proxy:    proxy,
			MaxBytes: cfg.MaxDownloadBytes,
		}),
		Normalizer:  sticker.NewPool(sticker.New(), cfg.WorkerCount()),
		Metrics:     m,
		Logger:      logger,
		MaxDownload: cfg.MaxDownloadBytes,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.WithMessage(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		api.Start(ctx)
		return nil
	})

	return g.Wait()
}

func convert(cmd *cobra.Command, input, output string) error {
	raw, err := os.ReadFile(input)
	if err != nil {
		return errors.WithMessage(err, "read input")
	}

	res, err := sticker.New().Normalize(raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, res.Data, 0o644); err != nil {
		return errors.WithMessage(err, "write output")
	}

	cmd.Printf("%s: %dx%d, %d bytes, quality %s\n", output, res.Width, res.Height, len(res.Data), quality(res))
	if res.Oversized() {
		cmd.PrintErrf("warning: %d bytes exceeds the %d byte sticker limit\n", len(res.Data), sticker.MaxBytes)
	}
	return nil
}

func quality(res sticker.Result) string {
	if res.Quality == 0 {
		return "default"
	}
	return strconv.Itoa(res.Quality)
}
