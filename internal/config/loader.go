package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched in the working
// and home directories.
const DefaultConfigFile = ".pdfscrub.yaml"

// xdgConfigFile is the file name inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ScannerFile is the scanner section of the configuration file.
type ScannerFile struct {
	ScriptAnalysis *bool `yaml:"script_analysis,omitempty"`
	EXIF           *bool `yaml:"exif,omitempty"`
	Metadata       *bool `yaml:"metadata,omitempty"`
}

// File represents the structure of the .pdfscrub.yaml file. Unset fields
// keep the value they already have in the Config.
type File struct {
	OutputDir       string        `yaml:"output_dir,omitempty"`
	LogFile         string        `yaml:"log_file,omitempty"`
	Concurrency     int           `yaml:"concurrency,omitempty" validate:"gte=0"`
	KeepAnnotations *bool         `yaml:"keep_annotations,omitempty"`
	NoExternal      *bool         `yaml:"no_external,omitempty"`
	Report          string        `yaml:"report,omitempty" validate:"omitempty,oneof=text json markdown none"`
	History         *bool         `yaml:"history,omitempty"`
	ToolTimeout     time.Duration `yaml:"tool_timeout,omitempty" validate:"gte=0"`
	Scanner         ScannerFile   `yaml:"scanner,omitempty"`
	Tools           []ToolConfig  `yaml:"tools,omitempty" validate:"omitempty,dive"`
}

// LoadConfigFile loads and validates a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	if err := validate.Struct(&cf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	for i, t := range cf.Tools {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: tool %d: %w", ErrInvalidConfigFile, path, i, err)
		}
	}
	return &cf, nil
}

// Apply copies the values set in the file into c.
func (cf *File) Apply(c *Config) {
	if cf.OutputDir != "" {
		c.OutputDir = cf.OutputDir
	}
	if cf.LogFile != "" {
		c.LogFile = cf.LogFile
	}
	if cf.Concurrency > 0 {
		c.Concurrency = cf.Concurrency
	}
	if cf.Report != "" {
		c.ReportFormat = cf.Report
	}
	if cf.ToolTimeout > 0 {
		c.ToolTimeout = cf.ToolTimeout
	}
	setBool(&c.KeepAnnotations, cf.KeepAnnotations)
	setBool(&c.NoExternal, cf.NoExternal)
	setBool(&c.History, cf.History)
	setBool(&c.Scanner.ScriptAnalysis, cf.Scanner.ScriptAnalysis)
	setBool(&c.Scanner.EXIF, cf.Scanner.EXIF)
	setBool(&c.Scanner.Metadata, cf.Scanner.Metadata)
	if len(cf.Tools) > 0 {
		c.Tools = cf.Tools
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// UserConfigFile returns the per-user configuration file path.
func UserConfigFile() string {
	return filepath.Join(XDGConfigDir(), xdgConfigFile)
}

// FindConfigFile searches for the configuration file in the following order:
//  1. configPath, when specified
//  2. .pdfscrub.yaml in the current directory
//  3. config.yaml in the XDG config directory
//  4. .pdfscrub.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, UserConfigFile())
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// Load applies the configuration file found by FindConfigFile to c.
// A missing file is not an error unless configPath names it explicitly.
// It returns the path that was loaded, if any.
func Load(c *Config, configPath string) (string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return "", nil
	}
	cf, err := LoadConfigFile(path)
	if err != nil {
		return "", err
	}
	cf.Apply(c)
	return path, nil
}
