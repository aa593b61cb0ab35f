// Package config provides configuration loading for testyard: an optional
// YAML file overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = "testyard.yaml"

// Config is the top-level testyard configuration.
type Config struct {
	ListenAddr      string         `yaml:"listen_addr"`
	StaticDir       string         `yaml:"static_dir"`
	TokenTTLMinutes int            `yaml:"token_ttl_minutes"`
	AdminUsername   string         `yaml:"admin_username"`
	AdminPassword   string         `yaml:"admin_password"`
	Database        DatabaseConfig `yaml:"database"`
	KV              KVConfig       `yaml:"kv"`
	Workers         WorkersConfig  `yaml:"workers"`
	Notify          NotifyConfig   `yaml:"notify"`
	GitHub          GitHubConfig   `yaml:"github"`
	Schedule        ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig holds connection settings for the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, mysql, sqlite
	URL      string `yaml:"url"`    // host for postgres/mysql
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file, ":memory:" allowed
}

// KVConfig selects the TTL key/value backend used for tokens and import status.
type KVConfig struct {
	Backend   string `yaml:"backend"` // badger, redis
	Path      string `yaml:"path"`
	InMemory  bool   `yaml:"in_memory"`
	RedisURL  string `yaml:"redis_url"`
	RedisPort int    `yaml:"redis_port"`
}

// WorkersConfig sizes the background import pool.
type WorkersConfig struct {
	Size  int `yaml:"size"`
	Queue int `yaml:"queue"`
}

// NotifyConfig holds optional chat notification targets.
type NotifyConfig struct {
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// GitHubConfig enables opening an issue for every new bug.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// Enabled reports whether bug issues should be mirrored to GitHub.
func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Owner != "" && g.Repo != ""
}

// ScheduleConfig holds 5-field cron expressions for maintenance jobs.
type ScheduleConfig struct {
	Reconcile string `yaml:"reconcile"`
	KVGC      string `yaml:"kv_gc"`
}

// TokenTTL returns the configured token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Load reads a YAML config file from path, overlays the environment and
// returns a validated Config. A missing file at DefaultPath is not an error;
// the environment alone can configure the server.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !(errors.Is(err, fs.ErrNotExist) && path == DefaultPath) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = nil
	}
	return parse(data, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config, overlaying the
// process environment.
func Parse(data []byte) (*Config, error) {
	return parse(data, os.LookupEnv)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("PG_URL", &c.Database.URL)
	str("PG_USR", &c.Database.User)
	str("PG_PWD", &c.Database.Password)
	str("PG_DB", &c.Database.Name)
	str("REDIS_URL", &c.KV.RedisURL)
	str("TY_LISTEN_ADDR", &c.ListenAddr)
	str("TY_STATIC_DIR", &c.StaticDir)
	str("TY_DB_DRIVER", &c.Database.Driver)
	str("TY_DB_PATH", &c.Database.Path)
	str("TY_KV_BACKEND", &c.KV.Backend)
	str("TY_KV_PATH", &c.KV.Path)
	str("TY_ADMIN_USERNAME", &c.AdminUsername)
	str("TY_ADMIN_PASSWORD", &c.AdminPassword)
	str("TY_SLACK_TOKEN", &c.Notify.SlackToken)
	str("TY_SLACK_CHANNEL", &c.Notify.SlackChannel)
	str("TY_DISCORD_TOKEN", &c.Notify.DiscordToken)
	str("TY_DISCORD_CHANNEL", &c.Notify.DiscordChannel)
	str("TY_GITHUB_TOKEN", &c.GitHub.Token)
	str("TY_GITHUB_OWNER", &c.GitHub.Owner)
	str("TY_GITHUB_REPO", &c.GitHub.Repo)

	for key, dst := range map[string]*int{
		"PG_PORT":    &c.Database.Port,
		"REDIS_PORT": &c.KV.RedisPort,
		"TIMEDELTA":  &c.TokenTTLMinutes,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if _, ok := lookup("PG_URL"); ok && c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if _, ok := lookup("REDIS_URL"); ok && c.KV.Backend == "" {
		c.KV.Backend = "redis"
	}
	return nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}
	if c.TokenTTLMinutes == 0 {
		c.TokenTTLMinutes = 60
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	case "mysql":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "testyard.db"
		}
	}
	if c.Database.URL == "" {
		c.Database.URL = "127.0.0.1"
	}
	if c.Database.Name == "" {
		c.Database.Name = "testyard"
	}
	if c.KV.Backend == "" {
		c.KV.Backend = "badger"
	}
	if c.KV.Backend == "badger" && c.KV.Path == "" && !c.KV.InMemory {
		c.KV.Path = ".testyard/kv"
	}
	if c.KV.Backend == "redis" && c.KV.RedisPort == 0 {
		c.KV.RedisPort = 6379
	}
	if c.Workers.Size == 0 {
		c.Workers.Size = 4
	}
	if c.Workers.Queue == 0 {
		c.Workers.Queue = 64
	}
	if c.Schedule.Reconcile == "" {
		c.Schedule.Reconcile = "0 3 * * *"
	}
	if c.Schedule.KVGC == "" {
		c.Schedule.KVGC = "*/10 * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.TokenTTLMinutes < 0 {
		errs = append(errs, "token_ttl_minutes (TIMEDELTA) must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.User == "" {
			errs = append(errs, fmt.Sprintf("database.user is required for %s", c.Database.Driver))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of postgres, mysql, sqlite", c.Database.Driver))
	}
	switch c.KV.Backend {
	case "badger":
	case "redis":
		if c.KV.RedisURL == "" {
			errs = append(errs, "kv.redis_url (REDIS_URL) is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("kv.backend %q is not one of badger, redis", c.KV.Backend))
	}
	if c.Workers.Size < 0 || c.Workers.Queue < 0 {
		errs = append(errs, "workers.size and workers.queue must not be negative")
	}
	if (c.Notify.SlackToken == "") != (c.Notify.SlackChannel == "") {
		errs = append(errs, "notify.slack_token and notify.slack_channel must be set together")
	}
	if (c.Notify.DiscordToken == "") != (c.Notify.DiscordChannel == "") {
		errs = append(errs, "notify.discord_token and notify.discord_channel must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
