package cmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandex/firestorm/firestorm/internal/cmd"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

func run(t *testing.T, args ...string) (string, error) {
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func requireFiles(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}
}

func TestDemoRenderCollapse(t *testing.T) {
	tmp := t.TempDir()
	dumpPath := filepath.Join(tmp, "demo.fsd")

	_, err := run(t, "demo", "--unit", "1ms", "-o", filepath.Join(tmp, "demo"), "--dump", dumpPath)
	require.NoError(t, err)
	requireFiles(t, filepath.Join(tmp, "demo"),
		"firestorm.html",
		"firestorm/owntime.html",
		"firestorm/timeaxis.html",
		"firestorm/merged.html",
	)

	_, err = run(t, "render", dumpPath, "-o", filepath.Join(tmp, "render"), "--format", "json", "--collapsed", "--pprof")
	require.NoError(t, err)
	requireFiles(t, filepath.Join(tmp, "render"),
		"firestorm.html",
		"firestorm/merged.json",
		"firestorm/merged.txt",
		"firestorm/merged.pb.gz",
	)

	out, err := run(t, "collapse", dumpPath, "--mode", "merged")
	require.NoError(t, err)
	lines, err := collapsed.Decode(strings.NewReader(out))
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line.Path, "own_3_twice_call"), line.Path)
	}

	_, err = run(t, "merge", dumpPath, dumpPath, "-o", filepath.Join(tmp, "merge"), "--modes", "merged")
	require.NoError(t, err)
	requireFiles(t, filepath.Join(tmp, "merge"), "firestorm/merged.html")
	_, err = os.Stat(filepath.Join(tmp, "merge", "firestorm", "timeaxis.html"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCollapseToFile(t *testing.T) {
	tmp := t.TempDir()
	dumpPath := filepath.Join(tmp, "soak.fsd")

	_, err := run(t, "demo", "--workload", "soak", "-o", tmp, "--dump", dumpPath)
	require.NoError(t, err)

	out := filepath.Join(tmp, "timeaxis.txt")
	_, err = run(t, "collapse", dumpPath, "--mode", "timeaxis", "--reverse", "-o", out)
	require.NoError(t, err)
	requireFiles(t, tmp, "timeaxis.txt")
}

func TestRenderTreeInputs(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "tree.txt")
	require.NoError(t, os.WriteFile(input, []byte("main;load 10\nmain 5\nmain;save 7\n"), 0o644))

	out := filepath.Join(tmp, "collapsed")
	_, err := run(t, "render", input, "--input-format", "collapsed", "-o", out, "--pprof")
	require.NoError(t, err)
	requireFiles(t, out,
		"firestorm.html",
		"firestorm/merged.html",
		"firestorm/owntime.html",
		"firestorm/merged.pb.gz",
	)
	_, err = os.Stat(filepath.Join(out, "firestorm", "timeaxis.html"))
	require.ErrorIs(t, err, os.ErrNotExist)

	index, err := os.ReadFile(filepath.Join(out, "firestorm.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(index), "timeaxis")

	pprofOut := filepath.Join(tmp, "pprof")
	_, err = run(t, "render", filepath.Join(out, "firestorm", "merged.pb.gz"),
		"--input-format", "pprof", "-o", pprofOut, "--modes", "merged", "--collapsed")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(pprofOut, "firestorm", "merged.txt"))
	require.NoError(t, err)
	lines, err := collapsed.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	weights := map[string]uint64{}
	for _, line := range lines {
		weights[line.Path] += line.Weight
	}
	assert.Equal(t, map[string]uint64{"main": 5, "main;load": 10, "main;save": 7}, weights)

	_, err = run(t, "render", input, "--input-format", "yaml")
	require.Error(t, err)
}

func TestBadArguments(t *testing.T) {
	_, err := run(t, "collapse", "missing.fsd", "--mode", "flat")
	require.Error(t, err)

	_, err = run(t, "render", filepath.Join(t.TempDir(), "missing.fsd"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "render", "x.fsd", "--serve", ":0", "--pprof-ui", ":0")
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firestorm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: hello\nmodes: [merged]\n"), 0o644))

	out, err := run(t, "validate-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Title:"hello"`)

	require.NoError(t, os.WriteFile(path, []byte("titel: typo\n"), 0o644))
	_, err = run(t, "validate-config", "--config", path)
	require.Error(t, err)

	_, err = run(t, "validate-config")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: ")
}
