package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDecodesExternalProcessOutput(t *testing.T) {
	p := New(Config{
		Binary: "sh",
		Args:   []string{"-c", `echo '[{"level":"warning","category":"style","message":"line too long","lineStart":10,"lineEnd":10}]'`},
	})

	findings, err := p.Scan(context.Background(), "main.go", []string{"style-rule"})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "warning", findings[0].Level)
	assert.Equal(t, 10, findings[0].LineStart)
}

func TestScanWithoutConfiguredBinaryIsNoOp(t *testing.T) {
	p := New(Config{})
	findings, err := p.Scan(context.Background(), "main.go", nil)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestScanPropagatesProcessFailure(t *testing.T) {
	p := New(Config{Binary: "sh", Args: []string{"-c", "exit 1"}})
	_, err := p.Scan(context.Background(), "main.go", nil)
	assert.Error(t, err)
}

func TestScanRespectsTimeout(t *testing.T) {
	p := New(Config{Binary: "sh", Args: []string{"-c", "sleep 2"}, Timeout: 10 * time.Millisecond})
	_, err := p.Scan(context.Background(), "main.go", nil)
	assert.Error(t, err)
}
