package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carbonalert/internal/config"
	"carbonalert/internal/logger"
	"carbonalert/internal/monitor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "ERR: missing -config flag")
		os.Exit(1)
	}

	// Malformed configuration is fatal at startup
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// create monitor
	m := monitor.New(cfg)

	// run monitor in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(ctx)
	}()

	// wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		if err := <-errCh; err != nil {
			logger.Logger.Error().Err(err).Msg("monitor exited with error")
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			logger.Logger.Error().Err(err).Msg("monitor exited with error")
			os.Exit(1)
		}
	}

	// give in-flight log writes a moment
	time.Sleep(100 * time.Millisecond)
	logger.Logger.Info().Msg("exited")
}
