package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/transports/httpapi"
	"github.com/harunnryd/voxa/pkg/voxa"
)

const shutdownTimeout = 30 * time.Second

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API until interrupted",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (defaults to server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	log := newLogger(cfg)
	engine, err := voxa.NewEngine(voxa.EngineOptions{Config: cfg, Logger: log})
	if err != nil {
		return err
	}

	api := httpapi.New(engine, httpapi.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Gatherer:     engine.Gatherer(),
		Logger:       log,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := api.Start(context.Background()); err != nil {
		_ = engine.Close()
		return err
	}
	slog.Info("transport_ready", "transport", api.Name(), "fields", api.ReadyFields())

	return engine.Runner(api, shutdownTimeout).Run(ctx)
}
