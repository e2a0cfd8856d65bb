package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clodoo/internal/core"
	"github.com/JonMunkholm/clodoo/internal/crypt"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CLODOO_PROTOCOL", "memory")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestEncrypt_RoundTrip(t *testing.T) {
	t.Setenv("CLODOO_CRYPT_KEY", "secret")

	out, _, err := execute(t, "encrypt", "s3cr3t")
	require.NoError(t, err)

	sealed := strings.TrimSpace(out)
	assert.True(t, crypt.IsEncrypted(sealed))
	c, err := crypt.New("secret")
	require.NoError(t, err)
	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", plain)
}

func TestEncrypt_NoKey(t *testing.T) {
	t.Setenv("CLODOO_CRYPT_KEY", "")

	_, _, err := execute(t, "encrypt", "x")
	assert.ErrorContains(t, err, "CLODOO_CRYPT_KEY")
}

func TestImport_MissingFileFails(t *testing.T) {
	dir := t.TempDir()

	out, stderr, err := execute(t, "--data-path", dir, "import", "res.partner.csv")
	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, out, "res.partner.csv -> res.partner: FAILED")
	assert.Contains(t, stderr, "SRC001")
}

func TestImport_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res.partner.csv"), []byte("name\n"), 0o600))

	out, _, err := execute(t, "--format", "json", "--data-path", dir, "--dry-run", "import", "res.partner.csv")
	require.NoError(t, err)

	var results []core.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusSuccess, results[0].Status)
	assert.True(t, results[0].DryRun)
	assert.Zero(t, results[0].Rows)
}

func TestImport_ReadsVersionedSibling(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res.partner.csv"), []byte("name\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res.partner_12.0.csv"), []byte("name\nAlpha\n"), 0o600))

	out, _, err := execute(t, "--format", "json", "--data-path", dir, "--oe-version", "12.0", "--dry-run", "import", "res.partner.csv")
	require.NoError(t, err)

	var results []core.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Rows)

	help, _, err := execute(t, "import", "--help")
	require.NoError(t, err)
	assert.Contains(t, help, "res.partner_12.0.csv")
}

func TestEntities(t *testing.T) {
	out, _, err := execute(t, "entities")
	require.NoError(t, err)
	assert.Contains(t, strings.Fields(out), "res.partner")
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "entities")
	assert.ErrorContains(t, err, "invalid format")
}
