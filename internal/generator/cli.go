package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// defaultBinary is the producer CLI invoked when none is configured.
const defaultBinary = "claude"

// defaultArgs run the producer non-interactively with JSON output.
var defaultArgs = []string{"--dangerously-skip-permissions", "-p", "--output-format", "json"}

// CLIConfig configures the subprocess-backed generator.
type CLIConfig struct {
	Binary string
	Args   []string
}

// CLI shells out to a producer binary, feeding the prompt on stdin and
// decoding a StageOutput envelope from stdout. No retries, no timeout of
// its own - cancellation and deadlines come in through the context.
type CLI struct {
	cfg CLIConfig
}

// NewCLI creates a subprocess generator, filling in defaults for any
// unset config field.
func NewCLI(cfg CLIConfig) *CLI {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.Args == nil {
		cfg.Args = defaultArgs
	}
	return &CLI{cfg: cfg}
}

// Invoke runs one producer call for the stage.
func (c *CLI) Invoke(ctx context.Context, stageSlug, promptContext, feedback string) (*StageOutput, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "## Stage: %s\n\n", stageSlug)
	if promptContext != "" {
		prompt.WriteString("## Context\n\n")
		prompt.WriteString(promptContext)
		prompt.WriteString("\n\n")
	}
	if feedback != "" {
		prompt.WriteString("## Feedback to address\n\n")
		prompt.WriteString(feedback)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Respond with a single JSON object: {\"tldr\", \"compliance_report\", \"claims\", \"content\"}.\n")

	cmd := exec.CommandContext(ctx, c.cfg.Binary, c.cfg.Args...)
	cmd.Stdin = strings.NewReader(prompt.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &Error{Stage: stageSlug, Err: fmt.Errorf("running %s: %w (stderr: %s)", c.cfg.Binary, err, strings.TrimSpace(stderr.String()))}
	}

	out, err := decodeEnvelope(stdout.Bytes())
	if err != nil {
		return nil, &Error{Stage: stageSlug, Err: err}
	}
	return out, nil
}

// decodeEnvelope parses the producer's stdout. Producers that wrap the
// envelope in a result field (the claude CLI's --output-format json does)
// are unwrapped transparently.
func decodeEnvelope(data []byte) (*StageOutput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty producer output")
	}

	var out StageOutput
	if err := json.Unmarshal(trimmed, &out); err == nil && out.Content != "" {
		return &out, nil
	}

	var wrapper struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && wrapper.Result != "" {
		inner := []byte(wrapper.Result)
		var nested StageOutput
		if err := json.Unmarshal(inner, &nested); err == nil && nested.Content != "" {
			return &nested, nil
		}
		// Plain-text result: treat the whole thing as content.
		return &StageOutput{Content: wrapper.Result}, nil
	}

	return nil, fmt.Errorf("parsing producer output: not a stage envelope")
}
