package summarize

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

const commandTimeout = 2 * time.Minute

// CommandProvider runs a local program with the prompt as its last argument
// and reads the summary from stdout.
type CommandProvider struct {
	binaryPath string
	args       []string
}

func NewCommandProvider(binaryPath string, args []string) (*CommandProvider, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("summary.command is required for the command provider")
	}
	return &CommandProvider{
		binaryPath: binaryPath,
		args:       args,
	}, nil
}

func (p *CommandProvider) Name() string {
	return "command"
}

func (p *CommandProvider) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	args := append(append([]string{}, p.args...), prompt)
	cmd := exec.CommandContext(ctx, p.binaryPath, args...) // #nosec G204

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timed out: %w", p.binaryPath, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s failed: %w: %s", p.binaryPath, err, exitErr.Stderr)
		}
		return "", fmt.Errorf("%s failed: %w", p.binaryPath, err)
	}
	return string(out), nil
}
