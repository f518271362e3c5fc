package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
businesses:
  - id: 1
    name: Studio
    timezone: UTC
    members: [100]
    menus:
      - id: 10
        name: Haircut
        duration_minutes: 60
        price_cents: 2500
        default_capacity: 2
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o644))

	cfg := `
logging:
  level: error
  format: json
database:
  path: ` + filepath.Join(dir, "data", "slotbook.db") + `
backup:
  path: ` + filepath.Join(dir, "backups") + `
  retention_days: 7
catalog:
  path: ` + catalogPath + `
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slotbook dev")
}

func TestGenerateAndExport(t *testing.T) {
	cfgPath := writeTestConfig(t)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	out, err := run(t, "--config", cfgPath, "generate", "--business", "1", "--menu", "10", "--from", tomorrow, "--days", "2")
	require.NoError(t, err)
	// Default hours are 09:00-18:00: nine one-hour slots a day.
	assert.Equal(t, "created 18 slots\n", out)

	_, err = run(t, "--config", cfgPath, "generate", "--business", "1", "--menu", "10", "--from", tomorrow, "--days", "1")
	require.Error(t, err, "regenerating the same day overlaps persisted slots")

	xlsx := filepath.Join(filepath.Dir(cfgPath), "out", "r.xlsx")
	out, err = run(t, "--config", cfgPath, "export", "--business", "1", "--out", xlsx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "exported 0 reservations"))
	assert.FileExists(t, xlsx)
}

func TestGenerateRejectsUnknownMenu(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := run(t, "--config", cfgPath, "generate", "--business", "1", "--menu", "99")
	require.Error(t, err)
}

func TestBackupCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := run(t, "--config", cfgPath, "backup")
	require.NoError(t, err)
	assert.Contains(t, out, "backup written to")

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(cfgPath), "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
