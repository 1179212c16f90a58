package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to unset config fields.
const (
	DefaultSampleInterval = 0.1
	DefaultFillInterval   = 1.0
	DefaultGroupSize      = 5
	DefaultEncoding       = "utf-8-sig"
)

var (
	ErrNoAscFile  = errors.New("no asc file configured")
	ErrNoDbcFiles = errors.New("no dbc files configured")
)

// Config drives a single conversion run.
type Config struct {
	AscFile        string   `yaml:"ascFile"`
	DbcFiles       []string `yaml:"dbcFiles"`
	OutputDir      string   `yaml:"outputDir"`
	SampleInterval float64  `yaml:"sampleInterval"`
	FillInterval   float64  `yaml:"fillInterval"`
	GroupSize      int      `yaml:"groupSize"`
	CsvEncoding    string   `yaml:"csvEncoding"`
	Debug          bool     `yaml:"debug"`
}

// ApplyDefaults fills unset fields with the standard defaults.
func (c *Config) ApplyDefaults() {
	if c.SampleInterval == 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.FillInterval == 0 {
		c.FillInterval = DefaultFillInterval
	}
	if c.GroupSize == 0 {
		c.GroupSize = DefaultGroupSize
	}
	if strings.TrimSpace(c.CsvEncoding) == "" {
		c.CsvEncoding = DefaultEncoding
	}
	if strings.TrimSpace(c.OutputDir) == "" && c.AscFile != "" {
		base := strings.TrimSuffix(filepath.Base(c.AscFile), filepath.Ext(c.AscFile))
		c.OutputDir = filepath.Join(filepath.Dir(c.AscFile), base+"_csv")
	}
}

// Validate checks the config before any file is opened. It fails closed so
// a bad run never produces a partial output directory.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AscFile) == "" {
		return ErrNoAscFile
	}
	if len(c.DbcFiles) == 0 {
		return ErrNoDbcFiles
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %g", c.SampleInterval)
	}
	if c.FillInterval <= 0 {
		return fmt.Errorf("fill interval must be positive, got %g", c.FillInterval)
	}
	if c.GroupSize <= 0 {
		return fmt.Errorf("group size must be positive, got %d", c.GroupSize)
	}
	if _, err := os.Stat(c.AscFile); err != nil {
		return fmt.Errorf("asc file: %w", err)
	}
	for _, p := range c.DbcFiles {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("dbc file: %w", err)
		}
	}
	return nil
}

// LoadConfig reads a YAML config, resolves relative paths against the file's
// directory and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		candidate := filepath.Clean(filepath.Join(baseDir, p))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		return filepath.Clean(p)
	}
	cfg.AscFile = resolvePath(cfg.AscFile)
	for i := range cfg.DbcFiles {
		cfg.DbcFiles[i] = resolvePath(cfg.DbcFiles[i])
	}
	if strings.TrimSpace(cfg.OutputDir) != "" && !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Clean(filepath.Join(baseDir, cfg.OutputDir))
	}
	cfg.ApplyDefaults()
	return cfg, nil
}
