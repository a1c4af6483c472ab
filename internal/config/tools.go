package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/pdfscrub/internal/external"
)

// ToolConfig is one external tool entry of the configuration file.
type ToolConfig struct {
	// Name identifies the tool in logs and reports.
	Name string `yaml:"name" validate:"required"`

	// Command is the executable name, looked up in PATH, or an absolute
	// path.
	Command string `yaml:"command" validate:"required"`

	// Args are passed to the command after replacing {input} and
	// {output}.
	Args []string `yaml:"args" validate:"required,min=2"`

	// Optional tools are dropped with a warning when not installed.
	Optional bool `yaml:"optional,omitempty"`
}

// DefaultTools returns the default chain as configuration entries.
func DefaultTools() []ToolConfig {
	defaults := external.DefaultTools()
	tools := make([]ToolConfig, 0, len(defaults))
	for _, t := range defaults {
		tools = append(tools, ToolConfig{
			Name:     t.Name,
			Command:  t.Command,
			Args:     slices.Clone(t.Args),
			Optional: t.Optional,
		})
	}
	return tools
}

// Validate reports whether the entry can be run: it needs a name, a
// command and arguments naming both the input and the output.
func (t ToolConfig) Validate() error {
	if t.Name == "" || t.Command == "" {
		return fmt.Errorf("%w: name and command are required", ErrInvalidTool)
	}
	if !mentions(t.Args, external.InputPlaceholder) {
		return fmt.Errorf("%w: %s: arguments must contain %s", ErrInvalidTool, t.Name, external.InputPlaceholder)
	}
	if !mentions(t.Args, external.OutputPlaceholder) {
		return fmt.Errorf("%w: %s: arguments must contain %s", ErrInvalidTool, t.Name, external.OutputPlaceholder)
	}
	return nil
}

// Tool converts the entry for the external adapter.
func (t ToolConfig) Tool() external.Tool {
	return external.Tool{
		Name:     t.Name,
		Command:  t.Command,
		Args:     slices.Clone(t.Args),
		Optional: t.Optional,
	}
}

func mentions(args []string, placeholder string) bool {
	return slices.ContainsFunc(args, func(a string) bool {
		return strings.Contains(a, placeholder)
	})
}
