// Package external drives the third-party PDF tools that normalize a
// document before and after the in-process sanitizer.
//
// The tools are treated as black boxes: only their success and the file
// they produce matter. Commands go through a Runner so tests can replace
// the real programs with a FakeRunner.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nao1215/pdfscrub/internal/model"
)

var (
	// ErrToolExecution is returned when a tool fails or cannot be run.
	ErrToolExecution = errors.New("external tool failed")

	// ErrToolMissing is returned by Check when a required tool is not
	// installed.
	ErrToolMissing = fmt.Errorf("%w: required external tool not found", model.ErrEnvironment)
)

// Placeholders replaced in tool arguments.
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

// maxStderr is the amount of tool stderr quoted in errors.
const maxStderr = 512

// Tool is one program of the chain.
type Tool struct {
	// Name identifies the tool in logs and reports.
	Name string

	// Command is the executable name or path.
	Command string

	// Args may contain {input} and {output}.
	Args []string

	// Optional tools are dropped from the chain when not installed.
	Optional bool
}

// DefaultTools returns the default chain: qpdf, pdftk and Ghostscript.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:    "qpdf",
			Command: "qpdf",
			Args: []string{
				"--linearize",
				"--object-streams=disable",
				"--remove-unreferenced-resources=yes",
				InputPlaceholder, OutputPlaceholder,
			},
		},
		{
			Name:    "pdftk",
			Command: "pdftk",
			Args:    []string{InputPlaceholder, "output", OutputPlaceholder, "flatten"},
		},
		{
			Name:     "ghostscript",
			Command:  "gs",
			Optional: true,
			Args: []string{
				"-sDEVICE=pdfwrite",
				"-dCompatibilityLevel=1.4",
				"-dPDFSETTINGS=/default",
				"-dNOPAUSE", "-dQUIET", "-dBATCH",
				"-sOutputFile=" + OutputPlaceholder,
				InputPlaceholder,
			},
		},
	}
}

// Adapter runs a tool chain over one file.
type Adapter struct {
	tools    []Tool
	paths    map[string]string
	runner   Runner
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRunner sets the command runner. The default is an ExecRunner
// without timeout.
func WithRunner(r Runner) Option {
	return func(a *Adapter) {
		a.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithLookPath replaces exec.LookPath in Check.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(a *Adapter) {
		a.lookPath = fn
	}
}

// NewAdapter returns an Adapter for the given chain.
func NewAdapter(tools []Tool, opts ...Option) *Adapter {
	a := &Adapter{
		tools:    append([]Tool(nil), tools...),
		paths:    make(map[string]string),
		runner:   ExecRunner{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Tools returns the active chain.
func (a *Adapter) Tools() []Tool {
	return append([]Tool(nil), a.tools...)
}

// Check locates every tool. Optional tools that are missing are dropped
// from the chain with a warning. Missing required tools are reported
// together in an error wrapping ErrToolMissing.
func (a *Adapter) Check() error {
	var missing []string
	kept := a.tools[:0]
	for _, tool := range a.tools {
		path, err := a.lookPath(tool.Command)
		if err != nil {
			if tool.Optional {
				a.logger.Warn("optional external tool not found, skipped", "tool", tool.Name, "command", tool.Command)
				continue
			}
			missing = append(missing, tool.Command)
			kept = append(kept, tool)
			continue
		}
		a.paths[tool.Name] = path
		kept = append(kept, tool)
	}
	a.tools = kept
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrToolMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Clean runs the chain from in to out. Tools pass their artifact through
// scratch files next to out, which are removed before Clean returns. An
// empty chain copies in to out.
func (a *Adapter) Clean(ctx context.Context, in, out string) error {
	if len(a.tools) == 0 {
		return copyFile(in, out)
	}

	var scratch []string
	defer func() {
		for _, path := range scratch {
			_ = os.Remove(path) //nolint:errcheck // best-effort cleanup
		}
	}()

	current := in
	for i, tool := range a.tools {
		target := out
		if i < len(a.tools)-1 {
			target = scratchPath(out, i, tool.Name)
			scratch = append(scratch, target)
		}

		if err := a.run(ctx, tool, current, target); err != nil {
			return err
		}
		if target != out {
			if _, err := os.Stat(target); err != nil {
				return fmt.Errorf("%w: %s produced no output", ErrToolExecution, tool.Name)
			}
		}
		current = target
	}
	return nil
}

func (a *Adapter) run(ctx context.Context, tool Tool, in, out string) error {
	path := a.paths[tool.Name]
	if path == "" {
		path = tool.Command
	}
	cmd := Command{
		Name:   tool.Name,
		Path:   path,
		Args:   expand(tool.Args, in, out),
		Input:  in,
		Output: out,
	}

	a.logger.Debug("running external tool", "tool", tool.Name, "args", strings.Join(cmd.Args, " "))
	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolExecution, tool.Name, err)
	}
	if !res.Success {
		return fmt.Errorf("%w: %s exited with status %d: %s",
			ErrToolExecution, tool.Name, res.ExitCode, truncate(strings.TrimSpace(res.Stderr)))
	}
	a.logger.Info("external tool finished", "tool", tool.Name, "duration", res.Duration)
	return nil
}

func expand(args []string, in, out string) []string {
	r := strings.NewReplacer(InputPlaceholder, in, OutputPlaceholder, out)
	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = r.Replace(arg)
	}
	return expanded
}

func scratchPath(out string, step int, name string) string {
	dir, base := filepath.Split(out)
	return filepath.Join(dir, fmt.Sprintf(".%s.%d-%s.tmp", base, step, name))
}

func truncate(s string) string {
	if len(s) <= maxStderr {
		return s
	}
	return s[:maxStderr] + "..."
}
