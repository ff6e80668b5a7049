package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/you/solarb/internal/config"
	"github.com/you/solarb/internal/metrics"
	"github.com/you/solarb/internal/orchestrator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = zap.NewAtomicLevelAt(parsed)
	}

	cfg := zap.Config{
		Level:       lvl,
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339)) },
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := newLogger(*logLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("received signal, shutting down...")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize orchestrator", zap.Error(err))
	}
	if orch.SeedPools() == 0 {
		logger.Fatal("no valid pools configured")
	}

	logger.Info("starting arbitrage monitor",
		zap.String("endpoint", cfg.RPC.Endpoint),
		zap.Float64("min_profit_threshold", cfg.Monitoring.MinProfitThreshold),
	)

	go func() {
		<-ctx.Done()
		orch.Stop()
	}()

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("monitor terminated", zap.Error(err))
	}
	logger.Info("stopped")
}
