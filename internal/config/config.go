package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pdfscrub/internal/external"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pdfscrub"

	// DefaultOutputDir is the directory, relative to the working directory,
	// that receives the cleaned files.
	DefaultOutputDir = "PDFs_limpios"

	// DefaultReportFormat prints a human-readable summary.
	DefaultReportFormat = ReportText

	// DefaultToolTimeout disables the subprocess timeout. Some documents
	// take minutes in Ghostscript and a premature kill loses the stage.
	DefaultToolTimeout time.Duration = 0
)

// Report formats.
const (
	ReportText     = "text"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
	ReportNone     = "none"
)

// ReportFormats lists the accepted values of Config.ReportFormat.
var ReportFormats = []string{ReportText, ReportJSON, ReportMarkdown, ReportNone}

// ScannerConfig toggles the optional checks of the risk scanner. The
// structural checks always run.
type ScannerConfig struct {
	// ScriptAnalysis parses stream payloads as JavaScript to tell real
	// scripts from text that merely contains a keyword.
	ScriptAnalysis bool

	// EXIF inspects embedded JPEG images for metadata.
	EXIF bool

	// Metadata reports identifying fields of the document information
	// dictionary.
	Metadata bool
}

// Config holds all options of one pdfscrub invocation. It is built from
// NewConfig, then the configuration file, then command-line flags, and is
// passed explicitly to every component.
type Config struct {
	// Inputs are the PDF files to process.
	Inputs []string

	// OutputDir receives <stem>_limpio.pdf for every cleaned input. It is
	// created when missing.
	OutputDir string

	// LogFile, when set, receives a copy of every log line.
	LogFile string

	// Verbose enables slog.LevelDebug.
	Verbose bool

	// Concurrency is the number of files processed at the same time.
	Concurrency int

	// KeepAnnotations keeps page annotation arrays. Actions attached to the
	// annotations are still removed.
	KeepAnnotations bool

	// NoExternal skips both external tool stages.
	NoExternal bool

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string

	// ReportFormat is one of ReportFormats.
	ReportFormat string

	// ReportFile, when set, receives the report instead of stdout.
	ReportFile string

	// History records every run in the database in the output directory.
	History bool

	// MetricsFile, when set, receives the run metrics in the Prometheus
	// text format.
	MetricsFile string

	// ToolTimeout bounds every external tool invocation. Zero means no
	// limit.
	ToolTimeout time.Duration

	// Scanner toggles the optional risk checks.
	Scanner ScannerConfig

	// Tools is the external tool chain, run in order.
	Tools []ToolConfig
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:    DefaultOutputDir,
		Concurrency:  runtime.NumCPU(),
		ReportFormat: DefaultReportFormat,
		ToolTimeout:  DefaultToolTimeout,
		Scanner: ScannerConfig{
			ScriptAnalysis: true,
			EXIF:           true,
			Metadata:       true,
		},
		Tools: DefaultTools(),
	}
}

// XDGConfigDir returns the XDG config directory for pdfscrub.
// On Linux: ~/.config/pdfscrub
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for pdfscrub.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// Inputs are not checked here: a clean run without inputs is a usage
// error reported by the command, and watch mode has none.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrEmptyOutputDir
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if !slices.Contains(ReportFormats, c.ReportFormat) {
		return ErrInvalidReportFormat
	}
	if c.ToolTimeout < 0 {
		return ErrInvalidToolTimeout
	}
	for i, t := range c.Tools {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tool %d: %w", i, err)
		}
	}
	return nil
}

// ExternalTools returns the tool chain for the external adapter, or nil
// when external stages are disabled.
func (c *Config) ExternalTools() []external.Tool {
	if c.NoExternal {
		return nil
	}
	tools := make([]external.Tool, 0, len(c.Tools))
	for _, t := range c.Tools {
		tools = append(tools, t.Tool())
	}
	return tools
}
