package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for gallery.
type Config struct {
	BaseDir string        `toml:"base_dir"`
	Log     LogConfig     `toml:"log"`
	AWS     AWSConfig     `toml:"aws"`
	Store   StoreConfig   `toml:"store"`
	Objects ObjectsConfig `toml:"objects"`
	Ingest  IngestConfig  `toml:"ingest"`
	Server  ServerConfig  `toml:"server"`
}

// LogConfig controls log verbosity and the optional log file directory.
type LogConfig struct {
	Level string `toml:"level"`         // "debug", "info" (default), "warn" or "error"
	Dir   string `toml:"dir,omitempty"` // empty: stderr only
}

// AWSConfig holds settings shared by the S3 and DynamoDB clients.
// Unset fields fall back to the SDK's default chain (environment, shared
// config, instance role).
type AWSConfig struct {
	Region          string `toml:"region,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
}

// StoreConfig represents configuration for the item store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "sqlite", "memory" or "dynamodb"

	// SQLite-specific fields (only used when Type == "sqlite")
	DataDir string `toml:"data_dir,omitempty"`

	// DynamoDB-specific fields (only used when Type == "dynamodb")
	ItemsTable       string `toml:"items_table,omitempty"`
	AlbumsTable      string `toml:"albums_table,omitempty"`
	MembershipsTable string `toml:"memberships_table,omitempty"`
	Endpoint         string `toml:"endpoint,omitempty"`
}

// ObjectsConfig represents configuration for object storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ObjectsConfig struct {
	Type string `toml:"type"` // "s3", "filesystem" or "memory"

	// S3-specific fields (only used when Type == "s3")
	Endpoint     string `toml:"endpoint,omitempty"`
	UsePathStyle bool   `toml:"use_path_style,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem").
	// Each bucket is a subdirectory of the root.
	FSRoot string `toml:"fs_root,omitempty"`
}

// IngestConfig tunes the ingestion engine.
type IngestConfig struct {
	ExportRoot  string   `toml:"export_root"`
	Exclude     []string `toml:"exclude,omitempty"`   // glob patterns below the export root, e.g. "Trash/*"
	TimeZone    string   `toml:"time_zone,omitempty"` // IANA name; empty means process local time
	MaxAttempts int      `toml:"max_attempts"`
}

// Location returns the time zone date albums are computed in.
func (c IngestConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// ServerConfig holds settings for the read-only HTTP view.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// NewConfig creates a new Config rooted at baseDir: a SQLite store and a
// filesystem object store, both under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		Log: LogConfig{
			Level: "info",
			Dir:   filepath.Join(baseDir, "log"),
		},
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Objects: ObjectsConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "objects"),
		},
		Ingest: IngestConfig{
			ExportRoot:  "Takeout/Google Photos",
			MaxAttempts: 3,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
