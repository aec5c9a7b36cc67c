package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultFilename = "gtlabel.json"

type Config struct {
	ListenAddr      string  `json:"listenAddr"`      // eg ":8090"
	StoragePath     string  `json:"storagePath"`     // Directory holding the revision database
	Document        string  `json:"document"`        // Annotation file (any supported format) that is opened at startup and written by Save
	MaxRevisions    int     `json:"maxRevisions"`    // Older revisions are purged once we have more than this. 0 = no limit.
	DefaultCategory string  `json:"defaultCategory"` // Category used when a box is drawn with no category selected
	MutationsPerSec float64 `json:"mutationsPerSec"` // Rate limit on mutating API calls, per client IP. 0 = no limit.
	MaxUploadMB     int     `json:"maxUploadMB"`     // Largest file accepted by the import endpoint
	ChangeBacklog   int     `json:"changeBacklog"`   // Minimum number of recent changes kept for websocket clients that connect late. Rounded up to 2^N - 1.
}

// DefaultConfig returns the settings we use for anything missing from the config file
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8090",
		StoragePath:     "gtlabel-data",
		MaxRevisions:    100,
		DefaultCategory: "Objects",
		MutationsPerSec: 50,
		MaxUploadMB:     256,
		ChangeBacklog:   1023,
	}
}

// DBFilename is the path of the revision database
func (c *Config) DBFilename() string {
	return filepath.Join(c.StoragePath, "revisions.sqlite")
}

// BacklogRingSize is the size of a ring buffer that can hold at least ChangeBacklog changes.
// The ring needs a power of 2, and holds one less item than its size.
func (c *Config) BacklogRingSize() int {
	size := 2
	for size < c.ChangeBacklog+1 {
		size *= 2
	}
	return size
}

// MaxUploadBytes is MaxUploadMB in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.StoragePath == "" {
		c.StoragePath = def.StoragePath
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = def.DefaultCategory
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = def.MaxUploadMB
	}
	if c.ChangeBacklog <= 0 {
		c.ChangeBacklog = def.ChangeBacklog
	}
	c.ChangeBacklog = c.BacklogRingSize() - 1
	if c.MaxRevisions < 0 {
		c.MaxRevisions = 0
	}
	if c.MutationsPerSec < 0 {
		c.MutationsPerSec = 0
	}
}

// LoadConfig reads a JSON config file. Fields that are absent keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
