package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lysyi3m/rss-relay/app/api"
	"github.com/lysyi3m/rss-relay/app/bot"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"github.com/lysyi3m/rss-relay/app/cycle"
	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/post"
	"github.com/lysyi3m/rss-relay/app/publish"
	"github.com/lysyi3m/rss-relay/app/store"
	"github.com/lysyi3m/rss-relay/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting RSS Relay",
		"version", appCfg.Version,
		"channel", appCfg.Channel,
		"timezone", time.Local.String(),
		"posts_per_hour", appCfg.PostsPerHour(),
		"dry_run", appCfg.DryRun)

	registry, err := feed.LoadRegistry(appCfg.ConfigFile)
	if err != nil {
		fatal("Failed to load sources", err)
	}
	slog.Info("Sources loaded", "count", len(registry.Sources), "file", appCfg.ConfigFile)

	st, err := store.Open(appCfg.DedupBackend, appCfg.DedupPath)
	if err != nil {
		fatal("Failed to open dedup store", err)
	}
	defer st.Close()

	if appCfg.DryRun {
		st = store.NewReadOnlyStore(st)
	}

	if count, err := st.Count(context.Background()); err == nil {
		slog.Info("Dedup store opened", "backend", appCfg.DedupBackend, "path", appCfg.DedupPath, "posted_links", count)
	}

	messenger, tgBot, err := newMessenger()
	if err != nil {
		fatal("Failed to set up messenger", err)
	}

	runner := newRunner(registry, st, messenger)
	scheduler := tasks.NewScheduler(runner, appCfg.Interval, appCfg.StartDelay, appCfg.CycleTimeout)

	if appCfg.Once {
		if err := scheduler.RunOnce(context.Background()); err != nil {
			fatal("Cycle failed", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start()

	if tgBot != nil {
		responder := bot.NewResponder(runner, st, appCfg.MaxPostsPerCycle, appCfg.Interval)
		go bot.NewCommands(tgBot, responder).Run(ctx)
	}

	var httpServer *http.Server
	serverErrChan := make(chan error, 1)

	if appCfg.Port != "" {
		handler := api.NewHandler(runner, st, api.Info{
			Version:        appCfg.Version,
			Channel:        appCfg.Channel,
			Interval:       appCfg.Interval,
			MaxPosts:       appCfg.MaxPostsPerCycle,
			ActiveFromHour: appCfg.ActiveFromHour,
			ActiveToHour:   appCfg.ActiveToHour,
			DedupBackend:   appCfg.DedupBackend,
			DryRun:         appCfg.DryRun,
		})

		httpServer = &http.Server{
			Addr:         ":" + appCfg.Port,
			Handler:      api.NewServer(handler, appCfg.APIAccessKey),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		go func() {
			slog.Info("Starting HTTP server", "port", appCfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("RSS Relay started")

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}

	scheduler.Stop()

	slog.Info("RSS Relay shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// newMessenger returns the channel messenger and, unless in dry-run mode, the bot
// client that also serves operator commands.
func newMessenger() (publish.Messenger, *tgbotapi.BotAPI, error) {
	c := cfg.Get()

	if c.DryRun {
		slog.Warn("Dry run: posts are logged, not sent, and links are not recorded")
		return publish.NewLogMessenger(), nil, nil
	}

	target, err := publish.ParseChatTarget(c.Channel)
	if err != nil {
		return nil, nil, err
	}

	// Long polling holds requests for 30 seconds and uploads stream media for up to the
	// video timeout, so the client timeout covers both.
	timeout := max(c.VideoTimeout, 30*time.Second) + 30*time.Second

	tgBot, err := publish.NewBot(c.BotToken, "", timeout)
	if err != nil {
		return nil, nil, err
	}

	return publish.NewTelegramMessenger(tgBot, target, c.SendInterval), tgBot, nil
}

func newRunner(registry *feed.Registry, st store.Store, messenger publish.Messenger) *cycle.Runner {
	c := cfg.Get()
	httpClient := &http.Client{}
	clock := cycle.SystemClock{}

	pages := feed.NewPageFetcher(httpClient, c.UserAgent, c.PageTimeout)
	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), c.UserAgent, c.FeedTimeout, clock.Now)
	extractor := feed.NewTextExtractor(
		feed.NewHighlighter(registry.Post.HighlightTerms),
		c.MinTextLength,
		c.ExcerptThreshold,
		pages,
		feed.NewContentExtractor(),
	)
	resolver := feed.NewMediaResolver(pages)
	composer := post.NewComposer(registry.Post, nil, c.CaptionLimit, c.CaptionCut)
	publisher := publish.NewPublisher(messenger, publish.NewHTTPMediaSource(httpClient, c.UserAgent), c.PhotoTimeout, c.VideoTimeout)

	return cycle.NewRunner(
		registry.Sources,
		fetcher,
		extractor,
		resolver,
		composer,
		publisher,
		st,
		cycle.Settings{
			MaxPosts:        c.MaxPostsPerCycle,
			ActualityWindow: c.ActualityWindow,
			ActiveFromHour:  c.ActiveFromHour,
			ActiveToHour:    c.ActiveToHour,
			FetchWorkers:    c.FetchWorkers,
		},
		clock,
	)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
