package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelstack/pkg/composite"
	"pixelstack/pkg/hyperstack"
	"pixelstack/pkg/imageio"
	"pixelstack/pkg/stack"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.2.3")
	output, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "1.2.3")
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	_, err := execute(t, "invalid-command")
	assert.Error(t, err)
}

func TestSetVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"normal version", "1.2.3", "1.2.3"},
		{"empty version", "", "1.2.3"}, // unchanged
		{"dev version", "dev", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersion(tt.version)
			assert.Equal(t, tt.want, rootCmd.Version)
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"info", "generate", "save", "composite", "export", "config", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
			assert.NotEmpty(t, sub.GroupID)
		})
	}
}

func TestParseTriple(t *testing.T) {
	tests := []struct {
		in      string
		want    [3]int
		wantErr bool
	}{
		{"1,2,3", [3]int{1, 2, 3}, false},
		{" 2, 5 ,1", [3]int{2, 5, 1}, false},
		{"1,2", [3]int{}, true},
		{"1,0,1", [3]int{}, true},
		{"a,b,c", [3]int{}, true},
		{"", [3]int{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, b, c, err := parseTriple(tt.in, "position")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, [3]int{a, b, c})
		})
	}
}

func TestParseDims(t *testing.T) {
	d, ok, err := parseDims("")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, d.Size())

	d, ok, err = parseDims("2,3,4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hyperstack.Dimensions{Channels: 2, Slices: 3, Frames: 4}, d)

	_, _, err = parseDims("2,3")
	assert.Error(t, err)
}

func TestApplyActive(t *testing.T) {
	s, err := stack.NewGeneratedStack(4, 4, 8, 3, stack.GeneratorOptions{})
	require.NoError(t, err)
	c := composite.New(s, hyperstack.Dimensions{Channels: 3, Slices: 1, Frames: 1})

	require.NoError(t, applyActive(c, "101"))
	assert.True(t, c.Active(1))
	assert.False(t, c.Active(2))
	assert.True(t, c.Active(3))

	assert.Error(t, applyActive(c, "1x1"))
	assert.Error(t, applyActive(c, "1111"), "more flags than channels")
	assert.Error(t, applyActive(nil, "1"))
	assert.NoError(t, applyActive(nil, ""))
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	generated := filepath.Join(dir, "generated")

	_, err := execute(t, "--config", cfg, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, cfg)
	_, err = execute(t, "--config", cfg, "config", "init")
	assert.Error(t, err, "existing file is not overwritten")

	_, err = execute(t, "--config", cfg, "generate",
		"--width", "64", "--height", "32", "--bits", "8", "--dims", "2,3,1", "-o", generated)
	require.NoError(t, err)

	s, dims, err := imageio.Load(generated)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, hyperstack.Dimensions{Channels: 2, Slices: 3, Frames: 1}, dims)

	_, err = execute(t, "--config", cfg, "info", generated)
	require.NoError(t, err)

	snapshot := filepath.Join(dir, "snap.png")
	_, err = execute(t, "--config", cfg, "composite", generated,
		"--position", "1,2,1", "--mode", "composite", "--active", "11", "-o", snapshot)
	require.NoError(t, err)
	assert.FileExists(t, snapshot)

	exported := filepath.Join(dir, "slices")
	_, err = execute(t, "--config", cfg, "export", generated,
		"--position", "1,1,1", "--axis", "z", "--format", "png", "-o", exported)
	require.NoError(t, err)
	entries, err := os.ReadDir(exported)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	copied := filepath.Join(dir, "copied")
	_, err = execute(t, "--config", cfg, "save", generated, copied)
	require.NoError(t, err)
	_, dims, err = imageio.Load(copied)
	require.NoError(t, err)
	assert.Equal(t, hyperstack.Dimensions{Channels: 2, Slices: 3, Frames: 1}, dims)
}

func TestInfo_MissingDirectory(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	_, err := execute(t, "--config", cfg, "info", filepath.Join(t.TempDir(), "nothing"))
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "panic"))
}
