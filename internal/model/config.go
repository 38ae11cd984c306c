package model

import "time"

// Config holds the complete Glimpse configuration
type Config struct {
	HTTP         HTTPConfig        `mapstructure:"http" yaml:"http"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Preload      PreloadConfig     `mapstructure:"preload" yaml:"preload"`
	RateLimiting RateLimitConfig   `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Robots       RobotsConfig      `mapstructure:"robots" yaml:"robots"`
	Server       ServerConfig      `mapstructure:"server" yaml:"server"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Output       OutputConfig      `mapstructure:"output" yaml:"output"`
}

// HTTPConfig controls outbound requests
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	InsecureTLS  bool          `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	HTTPProxy    string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy   string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy      string        `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// CacheConfig controls the preview page cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskDir   string        `mapstructure:"disk_dir" yaml:"disk_dir"` // empty disables the disk layer
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// PreloadConfig configures one preload scheduler run
type PreloadConfig struct {
	Enabled              bool            `mapstructure:"enabled" yaml:"enabled"`
	MaxCandidates        int             `mapstructure:"max_candidates" yaml:"max_candidates"`
	CacheSizeLimitBytes  int64           `mapstructure:"cache_size_limit_bytes" yaml:"cache_size_limit_bytes"`
	StartDelay           time.Duration   `mapstructure:"start_delay" yaml:"start_delay"`
	MaxConcurrentFetches int             `mapstructure:"max_concurrent_fetches" yaml:"max_concurrent_fetches"`
	CacheTTL             time.Duration   `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	SweepInterval        time.Duration   `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	ShowIndicators       bool            `mapstructure:"show_indicators" yaml:"show_indicators"`
	Weights              PriorityWeights `mapstructure:"weights" yaml:"weights"`
}

// PriorityWeights are the score contributions used to rank link candidates
type PriorityWeights struct {
	Rendered   int `mapstructure:"rendered" yaml:"rendered"`       // non-zero width and height
	InViewport int `mapstructure:"in_viewport" yaml:"in_viewport"` // box intersects the viewport
	SameOrigin int `mapstructure:"same_origin" yaml:"same_origin"` // same origin as the page
	AboveFold  int `mapstructure:"above_fold" yaml:"above_fold"`   // top edge in upper half of viewport
}

// RateLimitConfig controls per-host request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// RobotsConfig controls robots.txt compliance for background preloads
type RobotsConfig struct {
	Respect  bool          `mapstructure:"respect" yaml:"respect"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// ServerConfig controls the preview service
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SettingsFile string        `mapstructure:"settings_file" yaml:"settings_file,omitempty"`
}

// ConcurrencyConfig controls batch processing
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool `mapstructure:"quiet" yaml:"quiet"`
}

// DefaultWeights returns the standard candidate scoring weights
func DefaultWeights() PriorityWeights {
	return PriorityWeights{
		Rendered:   10,
		InViewport: 5,
		SameOrigin: 3,
		AboveFold:  2,
	}
}

// DefaultPreloadConfig returns the preload defaults used when no settings exist
func DefaultPreloadConfig() PreloadConfig {
	return PreloadConfig{
		Enabled:              true,
		MaxCandidates:        10,
		CacheSizeLimitBytes:  50 * 1024 * 1024,
		StartDelay:           2 * time.Second,
		MaxConcurrentFetches: 2,
		CacheTTL:             10 * time.Minute,
		SweepInterval:        time.Minute,
		ShowIndicators:       true,
		Weights:              DefaultWeights(),
	}
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
			MaxBodyBytes: 5_000_000,
			MaxRedirects: 5,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Preload: DefaultPreloadConfig(),
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 4,
			BurstSize:         4,
		},
		Robots: RobotsConfig{
			Respect:  true,
			CacheTTL: time.Hour,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:7878",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}
