package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threadpool/internal/api"
	"threadpool/internal/client"
	"threadpool/internal/logger"
	"threadpool/internal/scenario"
	"threadpool/internal/server"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Bench  BenchConfig  `yaml:"bench" json:"bench"`
	Server ServerConfig `yaml:"server" json:"server"`
	Load   LoadConfig   `yaml:"load" json:"load"`
	API    APIConfig    `yaml:"api" json:"api"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// PoolConfig はプール設定
type PoolConfig struct {
	Size int `yaml:"size" json:"size"`
}

// BenchConfig はベンチマーク設定
type BenchConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Workers     int    `yaml:"workers" json:"workers"`
	Jobs        int    `yaml:"jobs" json:"jobs"`
	Submitters  int    `yaml:"submitters" json:"submitters"`
	JobDuration string `yaml:"job_duration" json:"job_duration"`
	PanicEvery  int    `yaml:"panic_every" json:"panic_every"`
}

// ServerConfig は接続サーバー設定
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	DocRoot     string `yaml:"doc_root" json:"doc_root"`
	MaxConns    int    `yaml:"max_conns" json:"max_conns"`
	Sleep       string `yaml:"sleep" json:"sleep"`
	ReadTimeout string `yaml:"read_timeout" json:"read_timeout"`
}

// LoadConfig は負荷生成設定
type LoadConfig struct {
	Addr          string  `yaml:"addr" json:"addr"`
	Workers       int     `yaml:"workers" json:"workers"`
	Requests      uint64  `yaml:"requests" json:"requests"`
	SleepRatio    float64 `yaml:"sleep_ratio" json:"sleep_ratio"`
	NotFoundRatio float64 `yaml:"not_found_ratio" json:"not_found_ratio"`
	Timeout       string  `yaml:"timeout" json:"timeout"`
}

// APIConfig はステータスAPI設定
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultFileConfig はデフォルト値で埋めたFileConfigを返す
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Pool: PoolConfig{Size: 4},
		Bench: BenchConfig{
			Name:        "custom",
			Workers:     4,
			Jobs:        1000,
			Submitters:  1,
			JobDuration: "1ms",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:7878",
			Sleep:       "5s",
			ReadTimeout: "5s",
		},
		Load: LoadConfig{
			Addr:     "127.0.0.1:7878",
			Workers:  4,
			Requests: 1000,
			Timeout:  "10s",
		},
		API: APIConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9000",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile は設定ファイルを読み込む
// ファイルに無い項目はデフォルト値のまま残る
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultFileConfig()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// parseDuration は空文字ならfallbackを返す
func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative", name)
	}
	return d, nil
}

// ToScenarioConfig はbench設定をscenario.Configに変換する
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	b := f.Bench
	config := scenario.DefaultConfig()

	if b.Name != "" {
		config.Name = b.Name
	}
	if b.Description != "" {
		config.Description = b.Description
	}
	if b.Workers > 0 {
		config.Workers = b.Workers
	}
	config.Jobs = b.Jobs
	if b.Submitters > 0 {
		config.Submitters = b.Submitters
	}
	config.PanicEvery = b.PanicEvery

	d, err := parseDuration("bench.job_duration", b.JobDuration, config.JobDuration)
	if err != nil {
		return config, err
	}
	config.JobDuration = d

	return config, nil
}

// ToServerConfig はserver設定をserver.Configに変換する
func (f *FileConfig) ToServerConfig() (server.Config, error) {
	s := f.Server
	config := server.DefaultConfig()

	if s.Addr != "" {
		config.Addr = s.Addr
	}
	config.DocRoot = s.DocRoot
	config.MaxConns = s.MaxConns

	sleep, err := parseDuration("server.sleep", s.Sleep, config.Sleep)
	if err != nil {
		return config, err
	}
	config.Sleep = sleep

	readTimeout, err := parseDuration("server.read_timeout", s.ReadTimeout, config.ReadTimeout)
	if err != nil {
		return config, err
	}
	config.ReadTimeout = readTimeout

	return config, nil
}

// ToClientConfig はload設定をclient.Configに変換する
func (f *FileConfig) ToClientConfig() (client.Config, error) {
	l := f.Load
	config := client.DefaultConfig()

	if l.Addr != "" {
		config.Addr = l.Addr
	}
	if l.Workers > 0 {
		config.NumWorkers = l.Workers
	}
	config.RequestsLimit = l.Requests
	config.SleepRatio = l.SleepRatio
	config.NotFoundRatio = l.NotFoundRatio

	timeout, err := parseDuration("load.timeout", l.Timeout, config.Timeout)
	if err != nil {
		return config, err
	}
	config.Timeout = timeout

	return config, nil
}

// ToAPIConfig はapi設定をapi.Configに変換する
func (f *FileConfig) ToAPIConfig() api.Config {
	config := api.DefaultConfig()
	config.Enabled = f.API.Enabled
	if f.API.Addr != "" {
		config.Addr = f.API.Addr
	}
	return config
}

// LogLevel はログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be positive")
	}

	if f.Bench.Workers < 0 {
		return fmt.Errorf("bench.workers must be non-negative")
	}
	if f.Bench.Jobs < 0 {
		return fmt.Errorf("bench.jobs must be non-negative")
	}
	if f.Bench.Submitters < 0 {
		return fmt.Errorf("bench.submitters must be non-negative")
	}
	if f.Bench.PanicEvery < 0 {
		return fmt.Errorf("bench.panic_every must be non-negative")
	}

	if f.Server.MaxConns < 0 {
		return fmt.Errorf("server.max_conns must be non-negative")
	}

	if f.Load.Workers < 0 {
		return fmt.Errorf("load.workers must be non-negative")
	}
	if f.Load.SleepRatio < 0 || f.Load.SleepRatio > 1 {
		return fmt.Errorf("load.sleep_ratio must be between 0 and 1")
	}
	if f.Load.NotFoundRatio < 0 || f.Load.NotFoundRatio > 1 {
		return fmt.Errorf("load.not_found_ratio must be between 0 and 1")
	}
	if f.Load.SleepRatio+f.Load.NotFoundRatio > 1 {
		return fmt.Errorf("load.sleep_ratio + load.not_found_ratio must not exceed 1")
	}

	if _, err := f.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
