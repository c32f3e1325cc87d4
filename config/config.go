// Package config holds the importer settings shared by the server and the
// command line tools.
package config

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging  LoggingConfig `yaml:"logging"`
	Import   ImportConfig  `yaml:"import"`
	Server   ServerConfig  `yaml:"server"`
	Encoding string        `yaml:"encoding"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ImportConfig controls how scenes are read and marshaled.
type ImportConfig struct {
	// MaxDepth bounds node nesting before a scene is treated as malformed.
	MaxDepth        int `yaml:"max_depth"`
	TexCoordChannel int `yaml:"texcoord_channel"`
	ColorChannel    int `yaml:"color_channel"`
	// TexCoordsWithW exports texture coordinates as u, v, w triples.
	TexCoordsWithW bool `yaml:"texcoords_with_w"`
	// Engines are tried by name before format detection, in order.
	Engines               []string `yaml:"engines"`
	Triangulate           bool     `yaml:"triangulate"`
	JoinIdenticalVertices bool     `yaml:"join_identical_vertices"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Root is the directory whose model files are served.
	Root string `yaml:"root"`
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Import: ImportConfig{
			MaxDepth:              1024,
			JoinIdenticalVertices: true,
		},
		Server: ServerConfig{
			Addr: ":8000",
			Root: ".",
		},
		Encoding: charmap.Windows1252.String(),
	}
}

// Load reads a yaml file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Invalid config %q", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Import.MaxDepth <= 0 {
		return errors.Errorf("import.max_depth must be positive, got %d", c.Import.MaxDepth)
	}
	if c.Import.TexCoordChannel < 0 {
		return errors.Errorf("import.texcoord_channel must not be negative, got %d", c.Import.TexCoordChannel)
	}
	if c.Import.ColorChannel < 0 {
		return errors.Errorf("import.color_channel must not be negative, got %d", c.Import.ColorChannel)
	}
	if _, err := findCharmap(c.Encoding); err != nil {
		return err
	}
	return nil
}

// Apply installs process wide settings, currently the path encoding.
func (c *Config) Apply() error {
	return SetEncoding(c.Encoding)
}
