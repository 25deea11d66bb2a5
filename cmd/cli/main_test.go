package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/bricklog/internal/cli"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.blog")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_CompilesQuery(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `
stage("build") :- from("rust")::run("cargo build").
stage("final") :- from("alpine")::copy("build", "/bin/app", "/bin/app").
`)
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}

	err := run(out, logs, []string{"-query", `stage("final")`, path})
	require.NoError(t, err, "logs: %s", logs.String())

	var plan struct {
		Version int `json:"version"`
		Nodes   []struct {
			Kind string `json:"kind"`
		} `json:"nodes"`
		Outputs []struct {
			Target string `json:"target"`
		} `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	assert.Equal(t, 1, plan.Version)
	assert.Len(t, plan.Nodes, 4)
	require.Len(t, plan.Outputs, 1)
	assert.Equal(t, `stage("final")`, plan.Outputs[0].Target)
}

func TestRun_SyntaxErrorFails(t *testing.T) {
	t.Parallel()

	path := writeSource(t, `broken(`)
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}

	err := run(out, logs, []string{"-query", "x", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The help flag makes cli.Parse report a clean exit.
	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	err := run(out, logs, []string{"-h"})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Usage:")
}

func TestRun_FlagValidation(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	err := run(out, logs, []string{"somefile.blog"})
	require.Error(t, err)
	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}
