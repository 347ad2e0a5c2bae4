package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes one job definition. The command runner is the production
// implementation; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, def JobSpec) error
}

// ExecRunner runs the job's argv as a child process. The process inherits
// the daemon's environment; stdout is discarded, stderr is kept for the
// failure message.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, def JobSpec) error {
	if len(def.Command) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, def.Command[0], def.Command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("command timed out: %w", ctx.Err())
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		const max = 512
		if len(msg) > max {
			msg = msg[:max] + "..."
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
