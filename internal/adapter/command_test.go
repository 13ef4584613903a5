package adapter

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCommandRunner_RunCommand(t *testing.T) {
	tests := []struct {
		name     string
		cmd      Command
		stdout   string
		stderr   string
		exitCode int
		timeout  bool
	}{
		{
			name:     "success",
			cmd:      Command{Script: "echo out; echo err >&2"},
			stdout:   "out\n",
			stderr:   "err\n",
			exitCode: -1,
		},
		{
			name:     "non-zero exit",
			cmd:      Command{Script: "exit 4"},
			exitCode: 4,
		},
		{
			name:     "env and dir",
			cmd:      Command{Script: `echo "$NAME"; pwd`, Env: []string{"NAME=trellis"}, Dir: "/"},
			stdout:   "trellis\n/\n",
			exitCode: -1,
		},
		{
			name:     "timeout",
			cmd:      Command{Script: "sleep 5", Timeout: 50 * time.Millisecond},
			exitCode: -1,
			timeout:  true,
		},
	}

	runner := NewLocalCommandRunner()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			err := runner.RunCommand(context.Background(), tt.cmd, &stdout, &stderr)

			switch {
			case tt.timeout:
				require.ErrorIs(t, err, ErrCommandTimeout)
			case tt.exitCode >= 0:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}

			assert.Equal(t, tt.exitCode, ExitCode(err))
			assert.Equal(t, tt.stdout, stdout.String())
			assert.Equal(t, tt.stderr, stderr.String())
		})
	}
}

func TestExitCode_NotAnExitError(t *testing.T) {
	assert.Equal(t, -1, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(context.Canceled))
}
