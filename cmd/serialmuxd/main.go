package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/serialmux/internal/auth"
	"github.com/danmuck/serialmux/internal/bridge"
	"github.com/danmuck/serialmux/internal/config"
	"github.com/danmuck/serialmux/internal/observability"
	"github.com/danmuck/serialmux/internal/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	path := flag.String("config", "serialmuxd.toml", "config file path")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "serialmuxd: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if _, err := config.LoadDaemonConfig(path); err != nil {
		return err
	}
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		return err
	}
	logger := observability.InitLogger("serialmuxd", cfg.Service.Device.Path)
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := []bridge.ServiceOption{bridge.WithLogger(logger.With().Str("component", "bridge").Logger())}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		ttl := 3 * cfg.Service.HeartbeatInterval
		opts = append(opts, bridge.WithRegistry(bridge.NewRedisRegistry(rdb, ttl)))
		logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", ttl).Msg("redis session registry enabled")
	}

	svc, err := bridge.NewService(cfg.Service, sink, opts...)
	if err != nil {
		return err
	}

	errc := make(chan error, 2)
	go func() { errc <- svc.Run(ctx) }()
	if cfg.StatusAddr != "" {
		var statusOpts []server.Option
		if cfg.AdminToken != "" {
			statusOpts = append(statusOpts, server.WithAuth(auth.StaticToken{Token: cfg.AdminToken}))
		}
		status := server.New(cfg.Service.ID, cfg.StatusAddr, svc, cfg.CorsOrigins, statusOpts...)
		go func() { errc <- status.Serve(ctx) }()
	} else {
		errc <- nil
	}

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	logger.Info().Msg("serialmuxd stopped")
	return nil
}

func openSink(cfg daemonConfig, logger zerolog.Logger) (bridge.Sink, func(), error) {
	if cfg.NATSURL == "" {
		return bridge.LogSink{Logger: logger}, func() {}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("serialmuxd."+cfg.Service.ID),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect %s: %w", cfg.NATSURL, err)
	}
	logger.Info().Str("url", cfg.NATSURL).Str("prefix", cfg.SubjectPrefix).Msg("nats sink enabled")
	return bridge.NewNATSSink(nc, cfg.SubjectPrefix, cfg.Service.ID), func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}, nil
}
