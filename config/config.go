package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

const (
	DefaultPrimaryAddress   = "127.0.0.1:8053"
	DefaultSecondaryAddress = "127.0.0.1:8054"

	DefaultDataDir          = "data"
	DefaultDrainIntervalSec = 30
)

type Config struct {
	Main struct {
		Role     string `toml:"role"`
		Debug    bool   `toml:"debug"`
		LogLevel string `toml:"log_level"`
		LogFile  string `toml:"log_file"`
	} `toml:"main"`
	Listener struct {
		Address        string `toml:"address"`
		MaxConnections int64  `toml:"max_connections"`
		MaxRequestSize int    `toml:"max_request_size"`
		ReadTimeoutSec int    `toml:"read_timeout_sec"`
		RespAddress    string `toml:"resp_address"`
		HttpAddress    string `toml:"http_address"`
		DnsAddress     string `toml:"dns_address"`
	} `toml:"listener"`
	Store struct {
		Provider string `toml:"provider"`
		// Path overrides the per-role location under DataDir.
		Path     string `toml:"path"`
		DataDir  string `toml:"data_dir"`
	} `toml:"store"`
	Cache struct {
		Provider  string `toml:"provider"`
		TTLSec    int    `toml:"ttl_sec"`
		KeyPrefix string `toml:"key_prefix"`
	} `toml:"cache"`
	Redis struct {
		Address  string `toml:"address"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		// Protocol selects RESP2 or RESP3, 0 keeps the client default.
		Protocol int `toml:"protocol"`
	} `toml:"redis"`
	Replication struct {
		Channel          string `toml:"channel"`
		BacklogKey       string `toml:"backlog_key"`
		Subscribe        *bool  `toml:"subscribe"`
		DrainIntervalSec int    `toml:"drain_interval_sec"`
		ApplyToStore     bool   `toml:"apply_to_store"`
	} `toml:"replication"`
	Client ClientConfig `toml:"client"`
}

type ClientConfig struct {
	Primary       string `toml:"primary"`
	Secondary     string `toml:"secondary"`
	RetryAttempts int    `toml:"retry_attempts"`
	RetryDelayMs  int    `toml:"retry_delay_ms"`
	DialTimeoutMs int    `toml:"dial_timeout_ms"`
}

func (c ClientConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c ClientConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// NewDefault returns the configuration of a primary server on the default
// ports backed by a bolt store and redis.
func NewDefault() *Config {
	c := new(Config)
	c.Main.Role = "primary"
	c.Main.LogLevel = "info"
	c.Listener.MaxConnections = 256
	c.Listener.MaxRequestSize = 1024
	c.Store.Provider = "bolt"
	c.Store.DataDir = DefaultDataDir
	c.Cache.Provider = "redis"
	c.Cache.TTLSec = 3600
	c.Redis.Address = "localhost:6379"
	c.Replication.Channel = "dns_updates"
	c.Replication.BacklogKey = "pending_updates"
	c.Replication.DrainIntervalSec = DefaultDrainIntervalSec
	c.Client = DefaultClientConfig()
	return c
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Primary:       DefaultPrimaryAddress,
		Secondary:     DefaultSecondaryAddress,
		RetryAttempts: 3,
		RetryDelayMs:  2000,
		DialTimeoutMs: 3000,
	}
}

func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

func LoadFs(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	c := NewDefault()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(fmt.Sprint("unknown config keys: ", undecoded))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := iface.ParseRole(c.Main.Role); err != nil {
		return errors.Wrap(err, "main.role="+c.Main.Role)
	}
	switch c.Store.Provider {
	case "bolt", "diskv", "mem":
	default:
		return errors.New("unknown store provider:" + c.Store.Provider)
	}
	switch c.Cache.Provider {
	case "redis", "mem":
	default:
		return errors.New("unknown cache provider:" + c.Cache.Provider)
	}
	if c.Cache.TTLSec <= 0 {
		return errors.New("cache.ttl_sec must be positive")
	}
	if c.Listener.MaxRequestSize <= 0 || c.Listener.MaxConnections <= 0 {
		return errors.New("listener limits must be positive")
	}
	if c.Redis.Protocol != 0 && c.Redis.Protocol != 2 && c.Redis.Protocol != 3 {
		return errors.New("redis.protocol must be 2 or 3")
	}
	if c.Replication.Channel == "" || c.Replication.BacklogKey == "" {
		return errors.New("replication channel and backlog_key are required")
	}
	return nil
}

func (c *Config) Role() iface.ReplicatorRole {
	r, _ := iface.ParseRole(c.Main.Role)
	return r
}

// ListenAddress falls back to the well-known port of the role.
func (c *Config) ListenAddress() string {
	if c.Listener.Address != "" {
		return c.Listener.Address
	}
	if c.Role() == iface.RoleSecondary {
		return DefaultSecondaryAddress
	}
	return DefaultPrimaryAddress
}

// StorePath keeps the stores of the two roles apart when store.path is unset,
// bolt holds an exclusive lock on its file.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	dir := c.Store.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	name := "dns_records.db"
	if c.Store.Provider == "diskv" {
		name = "dns_records"
	}
	return filepath.Join(dir, c.Role().String(), name)
}

// Subscribe defaults to true on the secondary only.
func (c *Config) Subscribe() bool {
	if c.Replication.Subscribe != nil {
		return *c.Replication.Subscribe
	}
	return c.Role() == iface.RoleSecondary
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Listener.ReadTimeoutSec) * time.Second
}

// DrainInterval is zero when periodic draining is disabled, the peer queue is
// then only drained at startup.
func (c *Config) DrainInterval() time.Duration {
	if c.Replication.DrainIntervalSec < 0 {
		return 0
	}
	return time.Duration(c.Replication.DrainIntervalSec) * time.Second
}
