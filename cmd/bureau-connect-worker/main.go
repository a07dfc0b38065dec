// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/bureau-connect/lib/clock"
	"github.com/bureau-foundation/bureau-connect/lib/compress"
	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/evictbuffer"
	"github.com/bureau-foundation/bureau-connect/lib/flusher"
	"github.com/bureau-foundation/bureau-connect/lib/metrics"
	"github.com/bureau-foundation/bureau-connect/lib/process"
	"github.com/bureau-foundation/bureau-connect/lib/service"
	"github.com/bureau-foundation/bureau-connect/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath     string
		showVersion    bool
		logLevel       string
		socketPath     string
		metricsAddress string
	)
	flagSet := pflag.NewFlagSet("bureau-connect-worker", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the worker config file (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.StringVar(&logLevel, "log-level", "", "override service.log_level (debug, info, warn, error)")
	flagSet.StringVar(&socketPath, "socket-path", "", "override service.socket_path")
	flagSet.StringVar(&metricsAddress, "metrics-address", "", "override service.metrics_address, e.g. 127.0.0.1:9464")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("bureau-connect-worker %s\n", version.Full())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("log-level") {
		cfg.Service.LogLevel = logLevel
	}
	if flagSet.Changed("socket-path") {
		cfg.Service.SocketPath = socketPath
	}
	if flagSet.Changed("metrics-address") {
		cfg.Service.MetricsAddress = metricsAddress
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := service.NewLogger(cfg.Service.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	buffer, err := evictbuffer.New(cfg.Buffer.CapacityBytes,
		evictbuffer.WithClock(clk),
		evictbuffer.WithEvictHandler(func(entry evictbuffer.Entry) {
			logger.Debug("evicted unacknowledged reply",
				"request_id", entry.ID,
				"bytes", len(entry.Data),
				"age", clk.Now().Sub(entry.Timestamp),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("creating reply buffer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewBufferCollector(buffer),
	)

	// Parse cannot fail here: Validate checked it.
	compression, _ := compress.Parse(cfg.Flush.Compression)
	flush, err := flusher.New(buffer, flusher.Config{
		APIOrigin:          cfg.Flush.APIOrigin,
		PollInterval:       cfg.Flush.PollInterval,
		TTL:                cfg.Flush.TTL,
		Timeout:            cfg.Flush.Timeout,
		Compression:        compression,
		SigningKey:         cfg.Flush.SigningKey,
		SigningKeyFallback: cfg.Flush.SigningKeyFallback,
		Clock:              clk,
		Logger:             logger.With("component", "flusher"),
		Metrics:            metrics.NewFlushMetrics(registry),
	})
	if err != nil {
		return fmt.Errorf("creating flusher: %w", err)
	}
	defer flush.Close()

	worker := newWorker(workerConfig{
		Gateway:  cfg.Gateway,
		Apps:     cfg.Apps,
		Buffer:   buffer,
		Flusher:  flush,
		Executor: newHTTPExecutor(&http.Client{}, logger.With("component", "executor")),
		Dial:     gatewayDialer(cfg.Gateway),
		Clock:    clk,
		Logger:   logger,
	})

	socketServer := service.NewSocketServer(cfg.Service.SocketPath, logger)
	worker.registerActions(socketServer)

	logger.Info("connect worker starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"gateway", cfg.Gateway.Address,
		"socket", cfg.Service.SocketPath,
		"buffer_capacity", cfg.Buffer.CapacityBytes,
		"flush_ttl", cfg.Flush.TTL,
		"apps", len(cfg.Apps),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.runGateway(ctx) })
	group.Go(func() error { return flush.Run(ctx) })
	group.Go(func() error { return socketServer.Serve(ctx) })
	if cfg.Service.MetricsAddress != "" {
		metricsServer := service.NewHTTPServer(service.HTTPServerConfig{
			Address: cfg.Service.MetricsAddress,
			Handler: metrics.Handler(registry),
			Logger:  logger,
		})
		group.Go(func() error { return metricsServer.Serve(ctx) })
	}

	err = group.Wait()
	logger.Info("connect worker stopped", "buffered_replies", buffer.Len())
	return err
}

// loadConfig reads the file named by --config, or by the environment
// variable when the flag is absent.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
