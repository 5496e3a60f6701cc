// Package config holds the node configuration. Values come from defaults,
// then a YAML file, then SYNCROLLUPS_* environment variables, then CLI
// flags, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "SYNCROLLUPS_"

// Verifier kinds.
const (
	VerifierHash = "hash"
	VerifierBLS  = "bls"
)

// Config holds all configuration for a node.
type Config struct {
	// DataDir is the root directory for all data storage.
	DataDir string `yaml:"datadir" env:"DATADIR"`

	// CacheMB is the pebble block cache size in megabytes.
	CacheMB int64 `yaml:"cache_mb" env:"CACHE_MB"`

	// ChainID is the settlement chain id bound into relay addresses.
	ChainID uint64 `yaml:"chain_id" env:"CHAIN_ID"`

	// Seed feeds the per-tick randomness of the simulated settlement layer.
	Seed string `yaml:"seed" env:"SEED"`

	Engine   EngineConfig   `yaml:"engine" envPrefix:"ENGINE_"`
	Shield   ShieldConfig   `yaml:"shield" envPrefix:"SHIELD_"`
	Verifier VerifierConfig `yaml:"verifier" envPrefix:"VERIFIER_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// EngineConfig holds the execution engine parameters.
type EngineConfig struct {
	Address       string `yaml:"address" env:"ADDRESS"`
	DefaultMaxAge uint64 `yaml:"default_max_age" env:"DEFAULT_MAX_AGE"`
	MaxScopeDepth int    `yaml:"max_scope_depth" env:"MAX_SCOPE_DEPTH"`
}

// ShieldConfig holds the commit-reveal window in ticks.
type ShieldConfig struct {
	MinDelay uint64 `yaml:"min_delay" env:"MIN_DELAY"`
	MaxAge   uint64 `yaml:"max_age" env:"MAX_AGE"`
}

// VerifierConfig selects the proof oracle.
type VerifierConfig struct {
	Kind string `yaml:"kind" env:"KIND"`

	// HashKey keys the development hash verifier.
	HashKey string `yaml:"hash_key" env:"HASH_KEY"`

	// Committee lists the hex BLS public keys of the attesting committee.
	Committee []string `yaml:"committee" env:"COMMITTEE" envSeparator:","`
}

// LogConfig controls logging.
type LogConfig struct {
	Verbosity int    `yaml:"verbosity" env:"VERBOSITY"`
	Format    string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir: "syncrollups-data",
		CacheMB: 64,
		ChainID: 1,
		Seed:    "syncrollups",
		Engine: EngineConfig{
			Address:       "0x0000000000000000000000000000000000005c01",
			DefaultMaxAge: 7200,
			MaxScopeDepth: 64,
		},
		Shield: ShieldConfig{
			MinDelay: 1,
			MaxAge:   256,
		},
		Verifier: VerifierConfig{
			Kind:    VerifierHash,
			HashKey: "syncrollups-dev",
		},
		Log: LogConfig{
			Verbosity: 3,
			Format:    "text",
		},
	}
}

// Load builds a config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are
// rejected.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays SYNCROLLUPS_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks configuration values and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.DataDir == "" {
		result = multierror.Append(result, errors.New("config: datadir must not be empty"))
	}
	if c.CacheMB < 0 {
		result = multierror.Append(result, fmt.Errorf("config: invalid cache size: %d", c.CacheMB))
	}
	if c.ChainID == 0 {
		result = multierror.Append(result, errors.New("config: chain id must be non-zero"))
	}
	if !common.IsHexAddress(c.Engine.Address) {
		result = multierror.Append(result, fmt.Errorf("config: invalid engine address %q", c.Engine.Address))
	}
	if c.Engine.MaxScopeDepth <= 0 {
		result = multierror.Append(result, fmt.Errorf("config: invalid max scope depth: %d", c.Engine.MaxScopeDepth))
	}
	if c.Shield.MinDelay == 0 || c.Shield.MinDelay > c.Shield.MaxAge {
		result = multierror.Append(result, fmt.Errorf("config: invalid shield window [%d, %d]", c.Shield.MinDelay, c.Shield.MaxAge))
	}
	switch c.Verifier.Kind {
	case VerifierHash:
		if c.Verifier.HashKey == "" {
			result = multierror.Append(result, errors.New("config: hash verifier needs a key"))
		}
	case VerifierBLS:
		if len(c.Verifier.Committee) == 0 {
			result = multierror.Append(result, errors.New("config: bls verifier needs a committee"))
		}
		for i, pk := range c.Verifier.Committee {
			if _, err := hexutil.Decode(pk); err != nil {
				result = multierror.Append(result, fmt.Errorf("config: committee member %d: %w", i, err))
			}
		}
	default:
		result = multierror.Append(result, fmt.Errorf("config: unknown verifier kind %q", c.Verifier.Kind))
	}
	if c.Log.Verbosity < 0 || c.Log.Verbosity > 5 {
		result = multierror.Append(result, fmt.Errorf("config: invalid verbosity: %d", c.Log.Verbosity))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}
	return result.ErrorOrNil()
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// DBPath returns the directory of the pebble database.
func (c *Config) DBPath() string {
	return c.ResolvePath("chaindata")
}

// EngineAddress returns the parsed engine address.
func (c *Config) EngineAddress() common.Address {
	return common.HexToAddress(c.Engine.Address)
}

// CommitteeKeys decodes the BLS committee public keys.
func (c *Config) CommitteeKeys() ([][]byte, error) {
	keys := make([][]byte, len(c.Verifier.Committee))
	for i, pk := range c.Verifier.Committee {
		raw, err := hexutil.Decode(pk)
		if err != nil {
			return nil, fmt.Errorf("config: committee member %d: %w", i, err)
		}
		keys[i] = raw
	}
	return keys, nil
}
