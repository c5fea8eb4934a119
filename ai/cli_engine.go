package ai

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIEngine runs a local model binary, `<command> run <model>`, feeding the
// prompt on stdin and reading the answer from stdout
type CLIEngine struct {
	Command string
	Args    []string
}

// NewCLIEngine builds the engine for `command run model`
func NewCLIEngine(command, model string) *CLIEngine {
	if command == "" {
		command = "ollama"
	}
	if model == "" {
		model = "mistral"
	}
	return &CLIEngine{Command: command, Args: []string{"run", model}}
}

// Generate runs the command once. The process is killed when ctx is done.
func (e *CLIEngine) Generate(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", e.Command, err, msg)
		}
		return "", fmt.Errorf("%s: %w", e.Command, err)
	}
	return stdout.String(), nil
}
