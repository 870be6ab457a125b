package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/indoor-levels/internal/cache/redisstore"
	"github.com/mohammed-shakir/indoor-levels/internal/core/config"
	"github.com/mohammed-shakir/indoor-levels/internal/core/health"
	"github.com/mohammed-shakir/indoor-levels/internal/core/httpclient"
	"github.com/mohammed-shakir/indoor-levels/internal/core/server"
	"github.com/mohammed-shakir/indoor-levels/internal/events"
	"github.com/mohammed-shakir/indoor-levels/internal/feed/kafkaconsumer"
	"github.com/mohammed-shakir/indoor-levels/internal/indoor"
	"github.com/mohammed-shakir/indoor-levels/internal/logger"
	"github.com/mohammed-shakir/indoor-levels/internal/metrics"
	"github.com/mohammed-shakir/indoor-levels/internal/render/memory"
	"github.com/mohammed-shakir/indoor-levels/internal/session"
	"github.com/mohammed-shakir/indoor-levels/internal/style"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	feedFlag := flag.Bool("feed", false, "consume the kafka feed (overrides FEED_ENABLED)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	if *feedFlag {
		cfg.Feed.Enabled = true
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "indoor-levels",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)

	appLog.Info("starting indoor level manager",
		"addr", cfg.Addr,
		"version", Version,
		"min_zoom", cfg.IndoorMinZoom,
		"rescan_interval", cfg.IndoorRescanInterval,
		"feed", cfg.Feed.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	styleOpts := []style.Option{
		style.WithHTTPClient(httpclient.NewOutbound(cfg.StyleTimeout)),
		style.WithLogger(appLog),
	}
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr, redisstore.WithPoolSize(envInt("REDIS_POOL_SIZE", 8)))
		if err != nil {
			appLog.Error("redis unavailable; styles stay process-local", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			styleOpts = append(styleOpts, style.WithCache(rc, cfg.StyleCacheTTL))
		}
	}
	styles, err := style.NewLoader(cfg.StyleURL, cfg.StyleLRUSize, styleOpts...)
	if err != nil {
		appLog.Error("style loader setup failed", "err", err)
		return 1
	}

	bus := events.NewBus()
	bus.Subscribe(logEvents(appLog))

	renderer := memory.New()
	mgr := indoor.New(renderer,
		indoor.WithLogger(appLog),
		indoor.WithMinZoom(cfg.IndoorMinZoom),
		indoor.WithRescanInterval(cfg.IndoorRescanInterval),
		indoor.WithCellResolution(cfg.IndoorH3Res),
		indoor.WithStyleLoader(styles),
		indoor.WithBus(bus),
	)
	sess := session.New(renderer, mgr, appLog)
	defer sess.Close()

	p := metrics.Init(metrics.Config{
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	deps := server.Deps{Control: sess, Metrics: p.Handler(), Styles: styles}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Feed.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Feed), appLog, sess)
		deps.Ready = health.ReadinessReporter(consumer)
		g.Go(func() error { return consumer.Start(gctx) })
	}
	g.Go(func() error { return server.Run(gctx, cfg, appLog, deps) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func logEvents(l *slog.Logger) events.Handler {
	return func(ev events.Event) {
		switch e := ev.(type) {
		case events.Error:
			l.Error("indoor map failed", "map_id", e.MapID, "err", e.Err)
		case events.Loaded:
			l.Info("indoor map active", "map_id", e.MapID, "source", e.SourceID)
		case events.LevelRangeChanged:
			if e.Range == nil {
				l.Info("indoor level range cleared")
				return
			}
			l.Info("indoor level range changed", "range", e.Range.String())
		case events.LevelChanged:
			l.Debug("indoor level changed", "level", e.Level)
		default:
			l.Debug("indoor event", "kind", string(ev.Kind()))
		}
	}
}
