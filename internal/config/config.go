package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/jscyril/noor_player/pkg/logger"
)

// Config holds application configuration
type Config struct {
	DataDir string `json:"data_dir"`
	// UserID is the authenticated user. Empty means anonymous, which selects
	// the local store for the whole session.
	UserID string `json:"user_id"`

	Store       StoreConfig      `json:"store"`
	MediaCache  MediaCacheConfig `json:"media_cache"`
	YouTube     YouTubeConfig    `json:"youtube"`
	Player      PlayerConfig     `json:"player"`
	Log         logger.Config    `json:"log"`
	KeyBindings KeyMap           `json:"key_bindings"`
}

// StoreConfig selects the remote document store used for signed-in users
type StoreConfig struct {
	Backend       string   `json:"backend"` // redis or postgres
	RedisAddr     string   `json:"redis_addr"`
	RedisPassword string   `json:"redis_password"`
	RedisDB       int      `json:"redis_db"`
	PostgresDSN   string   `json:"postgres_dsn"`
	WriteRetries  int      `json:"write_retries"`
	RetryBackoff  Duration `json:"retry_backoff"`
}

// MediaCacheConfig selects where user-supplied audio files are kept
type MediaCacheConfig struct {
	Backend        string `json:"backend"` // fs or minio
	Dir            string `json:"dir"`
	MinioEndpoint  string `json:"minio_endpoint"`
	MinioAccessKey string `json:"minio_access_key"`
	MinioSecretKey string `json:"minio_secret_key"`
	MinioBucket    string `json:"minio_bucket"`
	MinioUseSSL    bool   `json:"minio_use_ssl"`
}

type YouTubeConfig struct {
	APIKey  string   `json:"api_key"`
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
	Retries int      `json:"retries"`
	Region  string   `json:"region"`
}

type PlayerConfig struct {
	DefaultVolume int      `json:"default_volume"` // 0-100
	TickInterval  Duration `json:"tick_interval"`
	MPVPath       string   `json:"mpv_path"`
	MPVSocket     string   `json:"mpv_socket"`
	SeekStep      Duration `json:"seek_step"`
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	PlayPause   string `json:"play_pause"`
	Next        string `json:"next"`
	Previous    string `json:"previous"`
	VolumeUp    string `json:"volume_up"`
	VolumeDown  string `json:"volume_down"`
	Mute        string `json:"mute"`
	SeekForward string `json:"seek_forward"`
	SeekBack    string `json:"seek_back"`
	Repeat      string `json:"repeat"`
	Shuffle     string `json:"shuffle"`
	Favorite    string `json:"favorite"`
	Remove      string `json:"remove"`
	Quit        string `json:"quit"`
}

// Duration is a time.Duration that reads and writes as "1s", "250ms", ...
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Store: StoreConfig{
			Backend:      "redis",
			RedisAddr:    "127.0.0.1:6379",
			WriteRetries: 3,
			RetryBackoff: Duration(500 * time.Millisecond),
		},
		MediaCache: MediaCacheConfig{
			Backend:     "fs",
			MinioBucket: "noor-media",
		},
		YouTube: YouTubeConfig{
			BaseURL: "https://www.googleapis.com/youtube/v3",
			Timeout: Duration(10 * time.Second),
			Retries: 2,
		},
		Player: PlayerConfig{
			DefaultVolume: 80,
			TickInterval:  Duration(time.Second),
			MPVPath:       "mpv",
			SeekStep:      Duration(10 * time.Second),
		},
		Log: logger.Config{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		KeyBindings: KeyMap{
			PlayPause:   " ",
			Next:        "n",
			Previous:    "p",
			VolumeUp:    "+",
			VolumeDown:  "-",
			Mute:        "m",
			SeekForward: "right",
			SeekBack:    "left",
			Repeat:      "r",
			Shuffle:     "S",
			Favorite:    "f",
			Remove:      "d",
			Quit:        "q",
		},
	}
}

// LoadConfig reads and unmarshals configuration from file
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over the defaults so missing keys keep their default values
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists,
// then applies .env and environment overrides.
func LoadOrCreate(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	// godotenv.Load never overrides variables that are already set
	_ = godotenv.Load()
	ApplyEnv(config)

	return config, nil
}

// ApplyEnv overrides config values from NOOR_* environment variables.
// Secrets are expected to come from here rather than the JSON file.
func ApplyEnv(c *Config) {
	c.DataDir = getEnv("NOOR_DATA_DIR", c.DataDir)
	c.UserID = getEnv("NOOR_USER_ID", c.UserID)

	c.Store.Backend = getEnv("NOOR_STORE_BACKEND", c.Store.Backend)
	c.Store.RedisAddr = getEnv("NOOR_REDIS_ADDR", c.Store.RedisAddr)
	c.Store.RedisPassword = getEnv("NOOR_REDIS_PASSWORD", c.Store.RedisPassword)
	c.Store.RedisDB = getEnvInt("NOOR_REDIS_DB", c.Store.RedisDB)
	c.Store.PostgresDSN = getEnv("NOOR_POSTGRES_DSN", c.Store.PostgresDSN)

	c.MediaCache.Backend = getEnv("NOOR_MEDIA_BACKEND", c.MediaCache.Backend)
	c.MediaCache.MinioEndpoint = getEnv("NOOR_MINIO_ENDPOINT", c.MediaCache.MinioEndpoint)
	c.MediaCache.MinioAccessKey = getEnv("NOOR_MINIO_ACCESS_KEY", c.MediaCache.MinioAccessKey)
	c.MediaCache.MinioSecretKey = getEnv("NOOR_MINIO_SECRET_KEY", c.MediaCache.MinioSecretKey)
	c.MediaCache.MinioBucket = getEnv("NOOR_MINIO_BUCKET", c.MediaCache.MinioBucket)
	c.MediaCache.MinioUseSSL = getEnvBool("NOOR_MINIO_USE_SSL", c.MediaCache.MinioUseSSL)

	c.YouTube.APIKey = getEnv("NOOR_YOUTUBE_API_KEY", c.YouTube.APIKey)
	c.YouTube.BaseURL = getEnv("NOOR_YOUTUBE_BASE_URL", c.YouTube.BaseURL)

	c.Log.Level = getEnv("NOOR_LOG_LEVEL", c.Log.Level)
}

// MediaDir is where the filesystem media cache keeps its files
func (c *Config) MediaDir() string {
	if c.MediaCache.Dir != "" {
		return c.MediaCache.Dir
	}
	return filepath.Join(c.DataDir, "media")
}

// LocalStoreDir is where anonymous sessions persist their state
func (c *Config) LocalStoreDir() string {
	return filepath.Join(c.DataDir, "local")
}

// Authenticated reports whether a user is signed in
func (c *Config) Authenticated() bool {
	return c.UserID != ""
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("NOOR_PLAYER_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "noor", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(home, ".config", "noor", "config.json")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return fallback
}
