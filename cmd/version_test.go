package cmd

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionLines(t *testing.T) {
	tests := []struct {
		name string
		info *debug.BuildInfo
		ok   bool
		want []string
	}{
		{name: "no build info", want: []string{"trellis version unknown"}},
		{
			name: "development build",
			info: &debug.BuildInfo{GoVersion: "go1.25.1"},
			ok:   true,
			want: []string{"trellis (devel)", "go\tgo1.25.1", "config\tversion 1"},
		},
		{
			name: "release with dirty checkout",
			info: &debug.BuildInfo{
				GoVersion: "go1.25.1",
				Main:      debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "4f2a9c1"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			ok:   true,
			want: []string{"trellis v0.3.0", "commit\t4f2a9c1 (modified)", "go\tgo1.25.1", "config\tversion 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, versionLines(tt.info, tt.ok))
		})
	}
}

func TestVersionCmd_Output(t *testing.T) {
	cmd := newVersionCmd()

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "trellis ")
}
