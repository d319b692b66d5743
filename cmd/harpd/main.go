// Command harpd is the harp collector daemon: it accepts client
// connections, buffers action records in memory, and periodically flushes
// batches into Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"harp/internal/alert"
	"harp/internal/config"
	"harp/internal/logging"
	"harp/internal/metrics"
	"harp/internal/server"
	"harp/internal/store"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("harpd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	configPath := fs.String("c", config.DefaultConfigPath, "config file path")
	fs.StringVar(configPath, "config", config.DefaultConfigPath, "config file path")
	showVersion := fs.Bool("v", false, "print version")
	fs.BoolVar(showVersion, "version", false, "print version")
	showHelp := fs.Bool("h", false, "print help")
	fs.BoolVar(showHelp, "help", false, "print help")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showHelp {
		fs.Usage()
		return 0
	}
	if *showVersion {
		fmt.Println("harpd " + version)
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "harpd: unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return 1
	}

	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "harpd: GOMAXPROCS tuning failed: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harpd: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "harpd: logger init: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL(), cfg.Database.MaxConnections)
	if err != nil {
		logger.Error("harpd: database connect failed", zap.Error(err))
		return 1
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, registry)
	go func() {
		if err := metricsSrv.Run(ctx, logger); err != nil {
			logger.Warn("harpd: metrics server error", zap.Error(err))
		}
	}()

	alertPub, err := alert.New(cfg.Alert.NATSURL, logger)
	if err != nil {
		logger.Error("harpd: alert bus connect failed", zap.Error(err))
		return 1
	}
	defer alertPub.Close()

	sup := server.NewSupervisor(server.Config{
		Addr:                   cfg.Addr(),
		MaxPacketSize:          cfg.MaxPacketSize,
		FlushInterval:          time.Duration(cfg.ProcessInterval) * time.Second,
		QueueReserveFraction:   cfg.QueueReserveFraction,
		QueueEstBytesPerRecord: cfg.QueueEstBytesPerRecord,
	}, db, m, alertPub, logger)

	if err := sup.Run(ctx); err != nil {
		logger.Error("harpd: server error", zap.Error(err))
		alertPub.Publish("server_exit", err.Error())
		return 1
	}

	return 0
}
