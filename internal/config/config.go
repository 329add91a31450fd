// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/matchlist/internal/logger"
	"github.com/woozymasta/matchlist/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MATCHLIST"`
	Registry  Registry      `group:"Registry Options" namespace:"registry" env-namespace:"MATCHLIST_REGISTRY"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MATCHLIST_RATE_LIMIT"`
	Storage   Storage       `group:"Journal Options" namespace:"db" env-namespace:"MATCHLIST_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MATCHLIST_GEOIP"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MATCHLIST_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin token for the event journal API (disabled when empty)"`
	CORSOrigin  string `long:"cors-origin" env:"CORS_ORIGIN" description:"Value of Access-Control-Allow-Origin (empty disables CORS headers)" default:"*"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"4096"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust CF-Connecting-IP and X-Forwarded-For headers"`
}

// Registry holds match registry configuration.
type Registry struct {
	// betteralign:ignore

	EvictAfter    time.Duration `long:"evict-after" env:"EVICT_AFTER" description:"Remove matches without heartbeat for this long (0 keeps them until unregistered)" default:"0"`
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" description:"How often stale matches and idle rate limit keys are swept" default:"1m"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	Count  int           `long:"count" env:"COUNT" description:"Requests allowed per client and path within the window" default:"15"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Sliding window duration" default:"1m"`
}

// Storage holds event journal configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite event journal (disabled when empty)"`
	PruneOlder    time.Duration `long:"prune-older" description:"Delete journal events older than the duration and exit"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (country tagging disabled when empty)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// ErrVersion is returned by Load when the version flag was given.
var ErrVersion = errors.New("version requested")

// Load parses args into a Config without touching the process state.
func Load(args []string, out io.Writer) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			_, _ = fmt.Fprintln(out, flagsErr.Message)
		}
		return nil, err
	}

	if cfg.Version {
		return &cfg, ErrVersion
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, ErrVersion) {
			vars.Print()
			os.Exit(0)
		}

		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}

func (c *Config) validate() error {
	if c.RateLimit.Count <= 0 {
		return fmt.Errorf("rate limit count must be positive, got %d", c.RateLimit.Count)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive, got %d", c.Server.MaxBodySize)
	}
	if c.Registry.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.Registry.SweepInterval)
	}
	if c.Storage.PruneOlder < 0 {
		return fmt.Errorf("prune duration must not be negative, got %s", c.Storage.PruneOlder)
	}
	if c.Storage.PruneOlder > 0 && c.Storage.Path == "" {
		return errors.New("--db-prune-older requires --db-path")
	}

	return nil
}
