// Package config loads node settings from flags, environment and the genesis file.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/ledger"
)

const EnvPrefix = "CORE_BRIDGE"

const (
	BackendMemory    = "memory"
	BackendGoLevelDB = "goleveldb"
	BackendPostgres  = "postgres"
)

type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	Name        string `mapstructure:"name"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type GovernanceConfig struct {
	Chain   uint16 `mapstructure:"chain"`
	Emitter string `mapstructure:"emitter"`
}

type Config struct {
	Chain            uint16           `mapstructure:"chain"`
	APIAddr          string           `mapstructure:"api_addr"`
	GenesisFile      string           `mapstructure:"genesis_file"`
	MaxPayloadLength uint32           `mapstructure:"max_payload_length"`
	ShutdownTimeout  time.Duration    `mapstructure:"shutdown_timeout"`
	Store            StoreConfig      `mapstructure:"store"`
	NATS             NATSConfig       `mapstructure:"nats"`
	Governance       GovernanceConfig `mapstructure:"governance"`
}

// SetDefaults registers every key so environment variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chain", uint16(vaaLib.ChainIDSolana))
	v.SetDefault("api_addr", ":8080")
	v.SetDefault("genesis_file", "")
	v.SetDefault("max_payload_length", 30*1024)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.name", "corebridge")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "corebridge.messages")
	v.SetDefault("governance.chain", uint16(vaaLib.GovernanceChain))
	v.SetDefault("governance.emitter", vaaLib.GovernanceEmitter.String())
}

// NewViper returns a viper instance reading CORE_BRIDGE_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Chain == 0 {
		return fmt.Errorf("chain must be set")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendGoLevelDB:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the %s backend", BackendGoLevelDB)
		}
	case BackendPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := c.GovernanceEmitter(); err != nil {
		return err
	}
	return nil
}

func (c *Config) GovernanceEmitter() (vaaLib.Address, error) {
	addr, err := vaaLib.StringToAddress(c.Governance.Emitter)
	if err != nil {
		return vaaLib.Address{}, fmt.Errorf("governance.emitter: %w", err)
	}
	return addr, nil
}

// OpenStore opens the configured ledger backend.
func (c *Config) OpenStore(ctx context.Context) (ledger.Store, error) {
	switch c.Store.Backend {
	case BackendGoLevelDB:
		return ledger.OpenDBStore(c.Store.Name, c.Store.Dir)
	case BackendPostgres:
		store, err := ledger.OpenPostgresStore(ctx, c.Store.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err = store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return ledger.NewMemoryStore(), nil
	}
}
