package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	App       AppConfig       `toml:"app"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Playback  PlaybackConfig  `toml:"playback"`
	Equalizer EqualizerConfig `toml:"equalizer"`
	Download  DownloadConfig  `toml:"download"`
	Stream    StreamConfig    `toml:"stream"`
}

// AppConfig holds settings that apply to the whole process.
type AppConfig struct {
	// Name is shown as the album when a track has none.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port pair the control API listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CatalogConfig points the catalog client at the song lookup and search APIs.
type CatalogConfig struct {
	SongBaseURL    string            `toml:"song_base_url"`
	SearchBaseURL  string            `toml:"search_base_url"`
	UserAgent      string            `toml:"user_agent"`
	TimeoutSeconds float64           `toml:"timeout_seconds"`
	Auth           CatalogAuthConfig `toml:"auth"`
}

// CatalogAuthConfig enables OAuth2 client-credentials auth against the catalog when ClientID is set.
type CatalogAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	TokenURL     string   `toml:"token_url"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether credentials were configured.
func (a CatalogAuthConfig) Enabled() bool {
	return a.ClientID != "" && a.TokenURL != ""
}

// ResolverConfig tunes track resolution.
type ResolverConfig struct {
	TimeoutSeconds  float64 `toml:"timeout_seconds"`
	MaxRetries      int     `toml:"max_retries"`
	RetryCooldown   float64 `toml:"retry_cooldown"`
	RetryExponent   float64 `toml:"retry_exponent"`
	RateLimit       float64 `toml:"rate_limit"`
	SearchLimit     int     `toml:"search_limit"`
	Concurrency     int     `toml:"concurrency"`
	CacheTTLMinutes int     `toml:"cache_ttl_minutes"`
}

// PlaybackConfig configures the engine and its audio source.
type PlaybackConfig struct {
	SkipPreviousThreshold float64 `toml:"skip_previous_threshold"`
	FFmpegPath            string  `toml:"ffmpeg_path"`
	FFplayPath            string  `toml:"ffplay_path"`
	LocalOutput           bool    `toml:"local_output"`
}

// EqualizerConfig holds the startup state of the signal graph.
type EqualizerConfig struct {
	DefaultPreset string  `toml:"default_preset"`
	Hall          bool    `toml:"hall"`
	HallSeconds   float64 `toml:"hall_seconds"`
	HallMix       float64 `toml:"hall_mix"`
	MasterGain    float64 `toml:"master_gain"`
}

// DownloadConfig configures the export pipeline.
type DownloadConfig struct {
	OutputDir     string  `toml:"output_dir"`
	GraceSeconds  float64 `toml:"grace_seconds"`
	CoverMaxSize  int     `toml:"cover_max_size"`
	MaxRetries    int     `toml:"max_retries"`
	RetryCooldown float64 `toml:"retry_cooldown"`
	RetryExponent float64 `toml:"retry_exponent"`
}

// StreamConfig configures the network audio sinks.
type StreamConfig struct {
	MP3Bitrate  string   `toml:"mp3_bitrate"`
	OpusBitrate int      `toml:"opus_bitrate"`
	ICEServers  []string `toml:"ice_servers"`
	// GatherSeconds bounds ICE gathering before a WebRTC answer is returned.
	GatherSeconds float64 `toml:"gather_seconds"`
}

// Seconds converts a float seconds setting into a [time.Duration].
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the settings the playback core cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Catalog.SongBaseURL == "" || c.Catalog.SearchBaseURL == "":
		return fmt.Errorf("%w: catalog base URLs are required", ErrInvalidConfig)
	case c.Resolver.TimeoutSeconds <= 0:
		return fmt.Errorf("%w: resolver.timeout_seconds must be positive", ErrInvalidConfig)
	case c.Resolver.MaxRetries < 0 || c.Download.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries cannot be negative", ErrInvalidConfig)
	case c.Download.GraceSeconds < 0:
		return fmt.Errorf("%w: download.grace_seconds cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
