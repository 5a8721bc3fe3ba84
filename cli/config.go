package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration. Values come from defaults, then
// command-line flags, then an optional YAML file; keys present in the file
// win for the options they set.
type Config struct {
	// Server port. Default is 8080.
	Port int `yaml:"port"`

	// Path to the sqlite database file.
	Database string `yaml:"database"`

	// Directory where uploaded PDFs are stored.
	BooksDir string `yaml:"books_dir"`

	// Extraction worker count.
	Workers int `yaml:"workers"`

	// Extraction queue capacity.
	QueueSize int `yaml:"queue_size"`

	// Timeout, in seconds, for downloading a remote PDF.
	FetchTimeoutSecs int `yaml:"fetch_timeout"`

	// Optional YAML config file, set by flag only.
	ConfigFile string `yaml:"-"`

	// One-shot extract/search inputs, set by flags only.
	Source  string `yaml:"-"`
	Pattern string `yaml:"-"`
}

var DefaultConfig = Config{
	Port:             8080,
	Database:         "ramayti.db",
	BooksDir:         "books",
	Workers:          4,
	QueueSize:        64,
	FetchTimeoutSecs: 60,
}

// LoadFile merges the YAML file at path into the config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
