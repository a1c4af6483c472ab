package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Command is one invocation of an external program.
type Command struct {
	// Name is the tool name used in logs and reports.
	Name string

	// Path is the executable to run.
	Path string

	// Args are the arguments with placeholders already expanded.
	Args []string

	// Input and Output are the artifact paths the command reads and
	// writes. Runners that only execute the program may ignore them.
	Input  string
	Output string
}

// Result is what a finished command reported.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. Run returns an error only when the program
// could not be started or was stopped; a non-zero exit status is reported
// through Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout bounds each command. Zero means no limit.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...) //nolint:gosec // tool paths come from configuration
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Success = true
	case ctx.Err() != nil:
		return res, fmt.Errorf("%s: %w", cmd.Name, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	return res, nil
}

// FakeOutcome scripts the behaviour of one tool in a FakeRunner.
type FakeOutcome struct {
	Result Result
	Err    error

	// NoOutput stops the fake from writing the output file on success.
	NoOutput bool
}

// FakeRunner is a Runner for tests. Tools without a scripted outcome
// succeed. On success the input file is copied to the output file, so a
// chain of fake tools behaves like a chain of no-op filters.
type FakeRunner struct {
	// Outcomes maps a tool name to its scripted outcome.
	Outcomes map[string]FakeOutcome

	mu    sync.Mutex
	calls []Command
}

// Run implements Runner.
func (f *FakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	outcome, scripted := f.Outcomes[cmd.Name]
	f.mu.Unlock()

	if !scripted {
		outcome = FakeOutcome{Result: Result{Success: true}}
	}
	if outcome.Err != nil {
		return outcome.Result, outcome.Err
	}
	if outcome.Result.Success && !outcome.NoOutput && cmd.Input != "" && cmd.Output != "" {
		if err := copyFile(cmd.Input, cmd.Output); err != nil {
			return Result{}, err
		}
	}
	return outcome.Result, nil
}

// Calls returns the commands run so far.
func (f *FakeRunner) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.calls))
	copy(out, f.calls)
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // test fixture paths
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.Create(dst) //nolint:gosec // test fixture paths
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close() //nolint:errcheck // copy error wins
		return err
	}
	return out.Close()
}
