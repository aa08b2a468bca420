package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"FinVision/internal/api"
	"FinVision/internal/collector"
	"FinVision/internal/config"
	"FinVision/internal/dashboard"
	"FinVision/internal/model"
	"FinVision/internal/notifier"
	"FinVision/internal/scheduler"
)

func main() {
	// .env is optional; real environment variables take precedence.
	envErr := godotenv.Load()

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	setupLogger(cfg.Log.Level)
	log.Info().Str("config", cfgPath).Bool("dotenv", envErr == nil).Msg("FinVision starting...")

	if !cfg.HasGeminiKey() {
		log.Warn().Msg("no Gemini API key configured, live fetches and chart analysis will fall back")
	}

	// Init fetchers
	fetcher := buildFetcher(cfg)
	analyzer := collector.NewVisionAnalyzer(geminiConfig(cfg))
	log.Info().Str("source", fetcher.Name()).Msg("market data source")

	orch := dashboard.New(fetcher, analyzer, collector.FallbackSnapshots())

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// HTTP API
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: api.NewRouter(orch)}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Telegram bot and digest
	if cfg.TelegramEnabled() {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Proxy)
		sched := scheduler.NewScheduler(ctx, orch, tn)
		if err := sched.RegisterDigest(cfg.Schedule.DigestCron); err != nil {
			log.Fatal().Err(err).Msg("register cron tasks")
		}
		sched.Start()
		defer sched.Stop()

		go tn.StartPolling(ctx, sched.HandleMessage)
		log.Info().Msg("telegram polling started")

		// Optional: run immediately on start
		if os.Getenv("RUN_ON_START") == "true" {
			log.Info().Msg("RUN_ON_START enabled, sending digest now")
			go sched.RunDigestNow()
		}
	} else {
		log.Info().Msg("telegram bot token not set, bot and digest disabled")
	}

	log.Info().Msg("FinVision is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("FinVision stopped")
}

func setupLogger(level string) {
	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(level),
		Caller:     1,
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		Writer:     &log.ConsoleWriter{Writer: os.Stderr},
	}
}

func geminiConfig(cfg *config.Config) collector.GeminiConfig {
	gc := collector.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			gc.HTTPClient = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(u)}}
		} else {
			log.Warn().Err(err).Str("proxy", cfg.Proxy).Msg("ignoring invalid proxy for gemini")
		}
	}
	return gc
}

// buildFetcher picks the provider for standard assets and routes assets with
// a local history pair to the local history service.
func buildFetcher(cfg *config.Config) *collector.Collector {
	var base collector.Fetcher
	switch cfg.Market.Provider {
	case config.ProviderYahoo:
		base = collector.NewYahooFetcher(cfg.Proxy)
	case config.ProviderMock:
		base = &collector.MockFetcher{}
	default:
		base = collector.NewGeminiFetcher(geminiConfig(cfg))
	}
	col := collector.NewCollector(base)

	if cfg.LocalHistory.BaseURL == "" {
		return col
	}
	pairs := make(map[model.AssetID]string, len(collector.DefaultHistoryPairs))
	for id, pair := range collector.DefaultHistoryPairs {
		pairs[id] = pair
	}
	for name, pair := range cfg.LocalHistory.Pairs {
		id, err := model.ParseAssetID(name)
		if err != nil || id.IsCustom() {
			log.Warn().Str("asset", name).Msg("ignoring local history pair for unknown asset")
			continue
		}
		pairs[id] = pair
	}
	hf := collector.NewHistoryFetcher(cfg.LocalHistory.BaseURL, pairs, cfg.Proxy)
	for id := range pairs {
		col.Route(id, hf)
	}
	return col
}
