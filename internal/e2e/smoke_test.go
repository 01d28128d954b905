package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	configPath := filepath.Join(home, "seedpool.toml")

	_, stderr, err := runSeedpool(t, binaryPath, home, "config", "init", "--path", configPath)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runSeedpool(t, binaryPath, home, "--config", configPath, "keys", "add", "smoke", "--key", "smoke-key-0001")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, `added key "smoke"`)

	stdout, stderr, err = runSeedpool(t, binaryPath, home, "--config", configPath, "keys", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "smoke")
	assert.Contains(t, stdout, "silent_client_dev")

	stdout, stderr, err = runSeedpool(t, binaryPath, home, "--config", configPath, "seed", "--json", "--key", "smoke-key-0001")
	require.NoError(t, err, "stderr: %s", stderr)

	var seed struct {
		Seed      string `json:"seed"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &seed))
	assert.Len(t, seed.Seed, 64)
	assert.Len(t, seed.Signature, 64)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "seedpool-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/seedpool")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build seedpool binary: %s", string(output))
	return binaryPath
}

func runSeedpool(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"SEEDPOOL_MEDIA_ENABLED=false",
		"SEEDPOOL_LOG_LEVEL=error",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
