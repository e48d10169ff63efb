// Package config loads the host configuration: data directory, sink
// backends, Lua resolver scripts and scheduled jobs. Everything the engine
// needs is passed in explicitly at construction; there is no process-wide
// configuration state.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Logging   LoggingConfig   `yaml:"logging"`
	Limits    LimitsConfig    `yaml:"limits"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Resolvers ResolversConfig `yaml:"resolvers"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    EventsConfig    `yaml:"events"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type LimitsConfig struct {
	// MaxGenerations caps workflow re-execution when the workflow itself
	// declares no ceiling. 0 means unlimited.
	MaxGenerations int `yaml:"max_generations"`
}

type SinksConfig struct {
	Default  string         `yaml:"default"` // store name Persist routes bare collections to
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ResolversConfig struct {
	Lua []LuaScript `yaml:"lua"`
}

type LuaScript struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

type SchedulerConfig struct {
	Jobs []JobConfig `yaml:"jobs"`
}

type JobConfig struct {
	Name     string            `yaml:"name"`
	Schedule string            `yaml:"schedule"` // cron expression
	Workflow string            `yaml:"workflow"` // path to the workflow file
	Inputs   map[string]string `yaml:"inputs,omitempty"`
}

type EventsConfig struct {
	Listen string `yaml:"listen"` // websocket event stream address, empty disables
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func expandEnvInSinks(cfg *Config) {
	cfg.Sinks.Redis.Addr = expandEnv(cfg.Sinks.Redis.Addr)
	cfg.Sinks.Postgres.DSN = expandEnv(cfg.Sinks.Postgres.DSN)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	expandEnvInSinks(&cfg)
	return &cfg, nil
}
