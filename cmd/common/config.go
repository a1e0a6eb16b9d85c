// Package common provides configuration loading and component construction
// shared by the auctioneer commands.
package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/coordinator"
	"github.com/flashbots/auctioneer/realtime"
	"github.com/flashbots/auctioneer/store"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the auctioneer configuration file.
//
//	http:
//	  listen_addr: ":8080"
//	  metrics_addr: ":8090"
//	  allowed_origins: ["https://auction.example"]
//	log:
//	  json: true
//	  level: info
//	auction:
//	  lot_duration: 35s
//	  tick_interval: 500ms
//	store:
//	  driver: memory
//	  fixtures: fixtures.yaml
//	identities:
//	  - {token: admin-secret, id: 1, role: admin}
//	  - {token: alice-secret, id: 2, role: bidder}
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Auction    AuctionConfig    `yaml:"auction"`
	Store      StoreConfig      `yaml:"store"`
	Identities []IdentityConfig `yaml:"identities"`
}

type HTTPConfig struct {
	ListenAddr               string        `yaml:"listen_addr"`
	MetricsAddr              string        `yaml:"metrics_addr"`
	EnablePprof              bool          `yaml:"pprof"`
	AllowedOrigins           []string      `yaml:"allowed_origins"`
	ReadTimeout              time.Duration `yaml:"read_timeout"`
	WriteTimeout             time.Duration `yaml:"write_timeout"`
	DrainDuration            time.Duration `yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `yaml:"graceful_shutdown_duration"`
	SubscriberBuffer         int           `yaml:"subscriber_buffer"`
}

type LogConfig struct {
	JSON    bool   `yaml:"json"`
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type AuctionConfig struct {
	LotDuration  time.Duration `yaml:"lot_duration"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`

	// Fixtures seeds an empty store from a YAML catalogue.
	Fixtures string `yaml:"fixtures"`

	Postgres store.PostgresConfig `yaml:"postgres"`
}

// IdentityConfig binds a bearer token to a participant.
type IdentityConfig struct {
	Token string `yaml:"token"`
	ID    int64  `yaml:"id"`
	Role  string `yaml:"role"`
}

// DefaultConfig returns a configuration that runs a memory-backed
// auctioneer on :8080.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			ListenAddr:               ":8080",
			MetricsAddr:              ":8090",
			ReadTimeout:              30 * time.Second,
			DrainDuration:            15 * time.Second,
			GracefulShutdownDuration: 10 * time.Second,
			SubscriberBuffer:         realtime.DefaultSubscriberBuffer,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "auctioneer",
		},
		Auction: AuctionConfig{
			LotDuration:  coordinator.DefaultLotDuration,
			TickInterval: coordinator.DefaultTickInterval,
		},
		Store: StoreConfig{
			Driver: DriverMemory,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the components would reject
// later with less context.
func (c *Config) Validate() error {
	if c.HTTP.ListenAddr == "" {
		return errors.New("http.listen_addr is required")
	}
	if c.HTTP.WriteTimeout != 0 {
		return errors.New("http.write_timeout must be 0 while the SSE stream is served")
	}
	if c.Auction.LotDuration <= 0 || c.Auction.TickInterval <= 0 {
		return errors.New("auction.lot_duration and auction.tick_interval must be positive")
	}
	if c.Auction.TickInterval > c.Auction.LotDuration {
		return errors.New("auction.tick_interval must not exceed auction.lot_duration")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.Postgres.DSN == "" && c.Store.Postgres.Host == "" {
			return errors.New("store.postgres requires dsn or host")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	_, err := c.Tokens()
	return err
}

// Tokens builds the static token table from the identities section.
func (c *Config) Tokens() (realtime.StaticTokens, error) {
	tokens := make(realtime.StaticTokens, len(c.Identities))
	for i, ident := range c.Identities {
		id := auction.Identity{ID: ident.ID, Role: auction.Role(ident.Role)}
		switch {
		case ident.Token == "":
			return nil, fmt.Errorf("identities[%d]: token is required", i)
		case !id.Authenticated():
			return nil, fmt.Errorf("identities[%d]: needs a non-zero id and role admin or bidder", i)
		}
		if _, dup := tokens[ident.Token]; dup {
			return nil, fmt.Errorf("identities[%d]: duplicate token", i)
		}
		tokens[ident.Token] = id
	}
	return tokens, nil
}

// CoordinatorConfig returns the coordinator timings. Clock and logger are
// filled by the caller.
func (c *AuctionConfig) CoordinatorConfig() coordinator.Config {
	cfg := coordinator.DefaultConfig()
	cfg.LotDuration = c.LotDuration
	cfg.TickInterval = c.TickInterval
	return cfg
}
