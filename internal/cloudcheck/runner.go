package cloudcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult is the outcome of a finished shell command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the command exited with status 0.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Runner executes a shell command line on a deployment host.
type Runner interface {
	Run(ctx context.Context, cmd string) (CommandResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd string) (CommandResult, error)

func (f RunnerFunc) Run(ctx context.Context, cmd string) (CommandResult, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands on the local host through Shell -c. A non-zero
// exit status is reported in the result, not as an error.
type ExecRunner struct {
	Shell string
}

func (r ExecRunner) Run(ctx context.Context, cmd string) (CommandResult, error) {
	shell := r.Shell
	if shell == "" {
		shell = "bash"
	}

	var stdout, stderr bytes.Buffer

	c := exec.CommandContext(ctx, shell, "-c", cmd)
	c.Stdin = strings.NewReader("")
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("exec.Cmd.Run %s: %w", shell, err)
	}

	return res, nil
}

const (
	UtilityContainer = "utility"
	SwiftContainer   = "swift"
)

// RunOnContainer runs cmd inside the first LXC container whose name contains
// container.
func RunOnContainer(ctx context.Context, r Runner, container, cmd string) (CommandResult, error) {
	line := fmt.Sprintf("lxc-attach -n $(lxc-ls -1 | grep %s | head -n 1) -- bash -c '%s'", container, cmd)
	return r.Run(ctx, line)
}

// RunOnSwift runs cmd in the swift container with the admin credentials and
// the swift virtualenv loaded.
func RunOnSwift(ctx context.Context, r Runner, cmd string) (CommandResult, error) {
	return RunOnContainer(ctx, r, SwiftContainer, ". ~/openrc ; . /openstack/venvs/swift-*/bin/activate ; "+cmd)
}

// RunOnUtility runs an openstack client command in the utility container.
func RunOnUtility(ctx context.Context, r Runner, cmd string) (CommandResult, error) {
	return RunOnContainer(ctx, r, UtilityContainer, ". ~/openrc ; "+cmd)
}
