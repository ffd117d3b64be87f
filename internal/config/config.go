package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Library    LibraryConfig    `json:"library"`
	Thumbnails ThumbnailsConfig `json:"thumbnails"`
	Cache      CacheConfig      `json:"cache"`
	Search     SearchConfig     `json:"search"`
	Watcher    WatcherConfig    `json:"watcher"`
	Log        LogConfig        `json:"log"`
}

// LibraryConfig holds the item library location and listing defaults
type LibraryConfig struct {
	Base        string `json:"base"`        // Root folder searched by tag search
	DefaultSort string `json:"defaultSort"` // "name" | "name-desc" | "date" | "date-asc" | "size" | "size-asc" | "type" | "type-files"
	Database    string `json:"database"`    // SQLite file for history, saved searches, session
}

// ThumbnailsConfig holds thumbnail generation settings
type ThumbnailsConfig struct {
	Size             int    `json:"size"`             // Tile size in pixels
	MaxPixels        int    `json:"maxPixels"`        // Downscale decoded images; 0 keeps full size
	Workers          int    `json:"workers"`          // 0 = max(1, CPUs-1)
	QueueSize        int    `json:"queueSize"`        // Pending generation jobs
	EmptyFolderImage string `json:"emptyFolderImage"` // Image shown for folders without images
}

// CacheConfig holds thumbnail cache settings
type CacheConfig struct {
	Dir           string `json:"dir"`
	MaxEntries    int    `json:"maxEntries"`
	MaxDiskMB     int64  `json:"maxDiskMB"`
	DiskWorkers   int    `json:"diskWorkers"`
	Quality       int    `json:"quality"`
	MaintainEvery int    `json:"maintainEvery"` // Disk writes between maintenance passes
}

// SearchConfig holds search-related settings
type SearchConfig struct {
	HistoryLimit  int `json:"historyLimit"`
	RecentFolders int `json:"recentFolders"`
}

// WatcherConfig holds directory watcher settings
type WatcherConfig struct {
	Enabled    bool `json:"enabled"`
	DebounceMs int  `json:"debounceMs"`
}

// LogConfig holds log file settings
type LogConfig struct {
	File      string `json:"file"`      // Empty logs to stderr only
	MaxSizeMB int    `json:"maxSizeMB"` // Rotate after this size
	Backups   int    `json:"backups"`   // Rotated files kept
}

// MaxDiskBytes returns the disk budget in bytes.
func (c CacheConfig) MaxDiskBytes() int64 {
	return c.MaxDiskMB * 1024 * 1024
}

// Debounce returns the watcher debounce interval.
func (w WatcherConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// Dir returns the config directory: ~/.config/shelf
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "shelf")
}

// ConfigPath returns the config file path: ~/.config/shelf/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = filepath.Join(home, ".cache")
	}

	return &Config{
		Library: LibraryConfig{
			Base:        home,
			DefaultSort: "name",
			Database:    filepath.Join(Dir(), "shelf.db"),
		},
		Thumbnails: ThumbnailsConfig{
			Size:      120,
			MaxPixels: 0,
			Workers:   0,
			QueueSize: 256,
		},
		Cache: CacheConfig{
			Dir:           filepath.Join(cacheRoot, "shelf", "thumbnails"),
			MaxEntries:    1000,
			MaxDiskMB:     500,
			DiskWorkers:   4,
			Quality:       85,
			MaintainEvery: 32,
		},
		Search: SearchConfig{
			HistoryLimit:  50,
			RecentFolders: 10,
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 200,
		},
		Log: LogConfig{
			File:      "",
			MaxSizeMB: 5,
			Backups:   3,
		},
	}
}

// Load reads the configuration from path, or ConfigPath() when path is
// empty. If the file doesn't exist, creates it with defaults. If parsing
// fails, stores the error and keeps defaults. Fields missing from the file
// keep their default values.
func (m *Manager) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if path == "" {
		path = ConfigPath()
	}
	m.path = path
	m.parseErr = nil

	// Ensure config directory exists
	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", configDir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("Config: failed to read %s: %v", m.path, err)
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("Config: JSON parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}

	m.config = cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	if m.path == "" {
		m.path = ConfigPath()
	}
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Path returns the file the configuration was loaded from.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetBase updates the library root
func (m *Manager) SetBase(base string) error {
	m.mu.Lock()
	m.config.Library.Base = base
	m.mu.Unlock()
	return m.Save()
}

// SetDefaultSort updates the default listing order
func (m *Manager) SetDefaultSort(mode string) error {
	m.mu.Lock()
	m.config.Library.DefaultSort = mode
	m.mu.Unlock()
	return m.Save()
}

// GenerateConfig backs up the config at path (ConfigPath() when empty) and
// writes a fresh default config. Returns the backup path if a backup was
// created, or empty string if there was no existing config.
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
