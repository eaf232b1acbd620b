package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tempEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_PATH", filepath.Join(dir, "pat_log.jsonl"))
	t.Setenv("KEYRING_PATH", filepath.Join(dir, "pat_keys.json"))
	t.Setenv("POLICY_PROFILE", "")
	t.Setenv("OTEL_ENABLED", "")
}

func TestRunNoArgsPrintsUsage(t *testing.T) {
	tempEnv(t)
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat"}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr.String(), "usage: pat")
}

func TestRunUnknownSubcommand(t *testing.T) {
	tempEnv(t)
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat", "bogus"}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr.String(), `unknown subcommand "bogus"`)
}

func TestRunKeysDemoCreatesApprover(t *testing.T) {
	tempEnv(t)
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat", "keys", "demo"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.NotEmpty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunNewThenListRoundTrips(t *testing.T) {
	tempEnv(t)
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat", "new", "-action", "NOTIFY", "-model-output", "confidence: 0.5"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)
	assert.Empty(t, stderr.String())

	stdout.Reset()
	exitCode = Run([]string{"pat", "list"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "NOTIFY")
}

func TestRunMirrorRebuildAndCount(t *testing.T) {
	tempEnv(t)
	dir := t.TempDir()
	t.Setenv("MIRROR_DB_PATH", filepath.Join(dir, "mirror.db"))
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat", "new", "-action", "NOTIFY", "-model-output", "confidence: 0.5"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)

	stdout.Reset()
	exitCode = Run([]string{"pat", "mirror", "rebuild"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "rebuilt mirror with 1 receipts")

	stdout.Reset()
	exitCode = Run([]string{"pat", "mirror", "count"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "1")
}

func TestRunExportWritesManifest(t *testing.T) {
	tempEnv(t)
	t.Setenv("ARCHIVE_DIR", filepath.Join(t.TempDir(), "archive"))
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"pat", "new", "-action", "NOTIFY", "-model-output", "confidence: 0.5"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)

	stdout.Reset()
	exitCode = Run([]string{"pat", "export"}, &stdout, &stderr)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "manifest_hash:")
	assert.Contains(t, stdout.String(), "merkle_root")
}
