// Command auctioneer runs the live auction coordinator.
//
// It serves the participant WebSocket channel on /ws, the HTTP command and
// state endpoints under /api, a read-only SSE stream on /events, and
// Prometheus metrics on a separate listener.
//
// # Usage
//
//	go run ./cmd/auctioneer --config=auctioneer.yaml
//	go run ./cmd/auctioneer --fixtures=fixtures.yaml --lot-duration=20s
//	go run ./cmd/auctioneer --store=postgres --postgres-dsn="postgres://..."
//
// Flags override the configuration file only when set explicitly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/auctioneer/api/httpserver"
	"github.com/flashbots/auctioneer/cmd/common"
	appcommon "github.com/flashbots/auctioneer/common"
	"github.com/flashbots/auctioneer/coordinator"
	"github.com/flashbots/auctioneer/realtime"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flagValues struct {
	configPath   string
	listenAddr   string
	metricsAddr  string
	pprof        bool
	driver       string
	fixtures     string
	postgresDSN  string
	lotDuration  time.Duration
	tickInterval time.Duration
	logJSON      bool
	logLevel     string
}

func parseFlags(args []string) (*pflag.FlagSet, *flagValues, error) {
	var v flagValues

	fs := pflag.NewFlagSet("auctioneer", pflag.ContinueOnError)
	fs.StringVar(&v.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&v.listenAddr, "listen-addr", "", "HTTP listen address")
	fs.StringVar(&v.metricsAddr, "metrics-addr", "", "metrics listen address (empty disables)")
	fs.BoolVar(&v.pprof, "pprof", false, "enable the pprof API under /debug")
	fs.StringVar(&v.driver, "store", "", "store driver: memory or postgres")
	fs.StringVar(&v.fixtures, "fixtures", "", "YAML fixtures to seed an empty store")
	fs.StringVar(&v.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	fs.DurationVar(&v.lotDuration, "lot-duration", 0, "bidding window per lot")
	fs.DurationVar(&v.tickInterval, "tick-interval", 0, "state broadcast interval")
	fs.BoolVar(&v.logJSON, "log-json", false, "log as JSON")
	fs.StringVar(&v.logLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, &v, nil
}

func applyFlagOverrides(cfg *common.Config, fs *pflag.FlagSet, v *flagValues) {
	if fs.Changed("listen-addr") {
		cfg.HTTP.ListenAddr = v.listenAddr
	}
	if fs.Changed("metrics-addr") {
		cfg.HTTP.MetricsAddr = v.metricsAddr
	}
	if fs.Changed("pprof") {
		cfg.HTTP.EnablePprof = v.pprof
	}
	if fs.Changed("store") {
		cfg.Store.Driver = v.driver
	}
	if fs.Changed("fixtures") {
		cfg.Store.Fixtures = v.fixtures
	}
	if fs.Changed("postgres-dsn") {
		cfg.Store.Postgres.DSN = v.postgresDSN
	}
	if fs.Changed("lot-duration") {
		cfg.Auction.LotDuration = v.lotDuration
	}
	if fs.Changed("tick-interval") {
		cfg.Auction.TickInterval = v.tickInterval
	}
	if fs.Changed("log-json") {
		cfg.Log.JSON = v.logJSON
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = v.logLevel
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(args []string) error {
	fs, v, err := parseFlags(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfiguration(v.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, fs, v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	log, err := common.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	st, err := common.OpenStore(ctx, cfg.Store, clock, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	tokens, err := cfg.Tokens()
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		log.Warn("No identities configured, every participant connects as a guest")
	}

	hub := realtime.NewHub(log, cfg.HTTP.SubscriberBuffer)

	coordCfg := cfg.Auction.CoordinatorConfig()
	coordCfg.Clock = clock
	coordCfg.Log = log
	coord, err := coordinator.New(coordCfg, st, hub)
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	api := realtime.NewAPI(realtime.APIConfig{
		Dispatcher:     coord,
		Hub:            hub,
		Auth:           tokens,
		Log:            log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTP.ListenAddr,
		MetricsAddr:              cfg.HTTP.MetricsAddr,
		EnablePprof:              cfg.HTTP.EnablePprof,
		AllowedOrigins:           cfg.HTTP.AllowedOrigins,
		Log:                      log,
		DrainDuration:            cfg.HTTP.DrainDuration,
		GracefulShutdownDuration: cfg.HTTP.GracefulShutdownDuration,
		ReadTimeout:              cfg.HTTP.ReadTimeout,
		WriteTimeout:             cfg.HTTP.WriteTimeout,
	}, api)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.RunInBackground()
	log.Info("Auctioneer started", "version", appcommon.Version, "store", cfg.Store.Driver,
		"lotDuration", cfg.Auction.LotDuration, "identities", len(tokens))

	<-ctx.Done()
	log.Info("Shutting down")

	coord.Close()
	hub.Close()
	srv.Shutdown()
	return nil
}
