package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/btcview/internal/chart"
	"github.com/rewired-gh/btcview/internal/controller"
	"github.com/rewired-gh/btcview/internal/dashboard"
	"github.com/rewired-gh/btcview/internal/logger"
	"github.com/rewired-gh/btcview/internal/render"
	"github.com/rewired-gh/btcview/internal/server"
	"github.com/rewired-gh/btcview/internal/storage"
	"github.com/rewired-gh/btcview/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		return serve()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address override (e.g. :8080)")
}

func serve() error {
	opts := dashboard.Options{
		Controller:  controller.Config{RefreshInterval: cfg.Sync.RefreshInterval},
		ChartHeight: cfg.Chart.Height,
		Placeholder: chart.PlaceholderConfig{
			Candles:    cfg.Chart.PlaceholderCandles,
			Interval:   cfg.Chart.PlaceholderInterval,
			BasePrice:  cfg.Chart.PlaceholderBasePrice,
			Volatility: chart.DefaultPlaceholderConfig().Volatility,
		},
	}

	if cfg.History.Enabled {
		store, err := storage.New(cfg.History.MaxSamples, cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize history storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
		if removed, err := store.Rotate(context.Background()); err != nil {
			logger.Warn("Failed to rotate price history: %v", err)
		} else if removed > 0 {
			logger.Info("Rotated %d price samples over the %d sample cap", removed, cfg.History.MaxSamples)
		}
		opts.Recorder = store
		opts.History = storage.NewHistory(store, cfg.History.CandleInterval, cfg.History.MinCandles, cfg.History.MaxCandles)
		logger.Info("Price history enabled (interval: %v, min candles: %d)", cfg.History.CandleInterval, cfg.History.MinCandles)
	} else {
		logger.Debug("Price history disabled; chart uses placeholder data")
	}

	view := dashboard.New(newBackend(cfg), opts)
	defer view.Teardown()

	srv, err := server.New(view, cfg.Server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")

		states, unsubscribe := view.Controller().Subscribe()
		defer unsubscribe()
		go telegram.WatchRefreshes(ctx, states, tg)
		tg.ListenForCommands(ctx, func() string {
			return render.StatusLine(view.Controller().State())
		})
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if err := view.Mount(); err != nil {
		return err
	}
	logger.Info("Starting live view (backend: %s, refresh interval: %v)", cfg.API.BaseURL, cfg.Sync.RefreshInterval)

	err = srv.ListenAndServe(ctx)
	logger.Info("Service stopped")
	return err
}
