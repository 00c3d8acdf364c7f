// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pharmabridge/pharmsync/internal/ingest"
)

type Database struct {
	Driver string `json:"driver"` // sqlite | postgres | mysql
	DSN    string `json:"dsn"`
}

type Config struct {
	Database Database      `json:"database"`
	Ingest   ingest.Config `json:"ingest"`
	LogFile  string        `json:"log_file"`
	Console  bool          `json:"console"`
}

// LoadOrCreate reads the config file, writing an editable default
// on first run so an operator has something to edit.
func LoadOrCreate(path string) (*Config, bool, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{
				Database: Database{Driver: "sqlite", DSN: "pharmsync.db"},
				Ingest: ingest.Config{
					WatchDir: "./payloads",
					PollSec:  10,
					Encodings: map[string]string{
						"winpharma": "windows-1252",
					},
				},
				LogFile: "pharmsync.log",
				Console: true,
			}
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("write default config: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
