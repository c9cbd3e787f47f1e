package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Output      string `yaml:"output"`
	Mirror      string `yaml:"mirror"`
	DelayMs     int    `yaml:"delay_between_tasks_ms"`
	MaxRetries  int    `yaml:"max_retries"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	MaxPages    int    `yaml:"max_pages"`
	Debug       bool   `yaml:"debug"`
	NoCache     bool   `yaml:"no_cache"`
	CachePath   string `yaml:"cache_path"`
	SourcesFile string `yaml:"sources_file"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool
	NoCache      bool
	Output       string
	Mirror       string
	DelayMs      int
	MaxRetries   int
	TimeoutMs    int
	MaxPages     int
	CachePath    string
	SourcesFile  string
	Cookie       string
	CookieFile   string
	UserAgent    string
}

func DefaultConfig() *Config {
	return &Config{
		Output:      ".",
		Mirror:      "",
		DelayMs:     3000,
		MaxRetries:  2,
		TimeoutMs:   30000,
		MaxPages:    50,
		Debug:       false,
		NoCache:     false,
		CachePath:   filepath.Join(ConfigRoot(), "cache.db"),
		SourcesFile: filepath.Join(ConfigRoot(), "sources.yaml"),
		Cookie:      "",
		CookieFile:  "",
		UserAgent:   "",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `wnacg-dl config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Mirror != "" {
		c.Mirror = o.Mirror
	}
	if o.DelayMs != 0 {
		c.DelayMs = o.DelayMs
	}
	if o.MaxRetries != 0 {
		c.MaxRetries = o.MaxRetries
	}
	if o.TimeoutMs != 0 {
		c.TimeoutMs = o.TimeoutMs
	}
	if o.MaxPages != 0 {
		c.MaxPages = o.MaxPages
	}
	if o.Debug {
		c.Debug = true
	}
	if o.NoCache {
		c.NoCache = true
	}
	if o.CachePath != "" {
		c.CachePath = o.CachePath
	}
	if o.SourcesFile != "" {
		c.SourcesFile = o.SourcesFile
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

func normalizeDefaults(c *Config) {
	if c.Output == "" {
		c.Output = "."
	}
	if c.DelayMs <= 0 {
		c.DelayMs = 3000
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 2
	}
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 30000
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.CachePath == "" {
		c.CachePath = filepath.Join(ConfigRoot(), "cache.db")
	}
	if c.SourcesFile == "" {
		c.SourcesFile = filepath.Join(ConfigRoot(), "sources.yaml")
	}
}

func (c *Config) Print() {
	if c.Output != "" {
		fmt.Printf(" -output: %s\n", c.Output)
	}
	if c.Mirror != "" {
		fmt.Printf(" -mirror: %s\n", c.Mirror)
	}
	fmt.Printf(" -delay_between_tasks_ms: %d\n", c.DelayMs)
	fmt.Printf(" -max_retries: %d\n", c.MaxRetries)
	fmt.Printf(" -timeout_ms: %d\n", c.TimeoutMs)
	fmt.Printf(" -max_pages: %d\n", c.MaxPages)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.NoCache {
		fmt.Printf(" -no_cache: %t\n", c.NoCache)
	}
	fmt.Printf(" -cache_path: %s\n", c.CachePath)
	fmt.Printf(" -sources_file: %s\n", c.SourcesFile)
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
}
