// Package scanner implements the static-analysis scanner collaborator
// (spec §6 "Static analysis scanner"): invoking an external process
// against a path and a rule list, then decoding its machine-readable
// findings. Grounded on the teacher's pkg/tools/command.go CommandTool
// for the os/exec.CommandContext-with-timeout and allowed-binary
// validation pattern, generalized from an agent-invoked shell tool into
// a fixed-contract collaborator.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/omnicore/agentrt/pkg/agents"
)

// Config configures the external scanner binary. Binary must emit a
// JSON array of Finding on stdout when invoked as
// `Binary Args... --path <path> --rule <rule> [--rule <rule> ...]`.
type Config struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

// finding is the wire shape the external scanner process is expected
// to emit; it is deliberately small and stable, since spec §6 leaves
// the scanner's own output format unspecified.
type finding struct {
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	LineStart int    `json:"lineStart"`
	LineEnd   int    `json:"lineEnd"`
}

// Process implements agents.Scanner by shelling out to an external
// binary. A zero-value Binary makes Scan a no-op returning no findings,
// so deployments without a configured scanner behave exactly as if
// scanning were disabled (spec §4.F "ScannerEnabled" already guards
// this at the call site; Process's own no-op is a second, cheaper
// line of defense).
type Process struct {
	cfg Config
}

func New(cfg Config) *Process {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Process{cfg: cfg}
}

// Scan implements agents.Scanner.
func (p *Process) Scan(ctx context.Context, path string, rules []string) ([]agents.ScanFinding, error) {
	if p.cfg.Binary == "" {
		return nil, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	args := append([]string{}, p.cfg.Args...)
	args = append(args, "--path", path)
	for _, rule := range rules {
		args = append(args, "--rule", rule)
	}

	cmd := exec.CommandContext(runCtx, p.cfg.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("scanner: %s: %w: %s", p.cfg.Binary, err, stderr.String())
	}

	var findings []finding
	if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
		return nil, fmt.Errorf("scanner: decode output: %w", err)
	}

	out := make([]agents.ScanFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, agents.ScanFinding{
			Level:     f.Level,
			Category:  f.Category,
			Message:   f.Message,
			LineStart: f.LineStart,
			LineEnd:   f.LineEnd,
		})
	}
	return out, nil
}

var _ agents.Scanner = (*Process)(nil)
