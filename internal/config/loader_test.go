package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileBindsDataset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "currencies.yaml", `
metadata:
  name: currencies
  version: "1.0.0"
  description: currency reference data
  type: dataset
  source: static
driver: inline
config:
  key-field: currency
data:
  - currency: USD
    decimalPlaces: 2
`)
	loader := NewLoader(dir)
	handle, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, TypeDataset, handle.Type)
	assert.NotEqual(t, uuid.Nil, handle.VersionInstance)

	ds, ok := handle.Doc.(*DatasetDoc)
	require.True(t, ok)
	assert.Equal(t, "inline", ds.Driver)
	require.Len(t, ds.Data, 1)
	assert.Equal(t, "USD", ds.Data[0]["currency"])
}

func TestLoadFileFailsOnMissingMandatoryMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", `
metadata:
  name: bad
  type: dataset
data: []
`)
	loader := NewLoader(dir)
	_, err := loader.LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileExpandsEnvVars(t *testing.T) {
	t.Setenv("APEX_TEST_HOST", "db.internal")
	dir := t.TempDir()
	path := writeFile(t, dir, "db.yaml", `
metadata:
  name: db
  version: "1.0.0"
  description: db dataset
  type: dataset
  source: mysql
driver: database
config:
  host: ${APEX_TEST_HOST}
  port: ${APEX_TEST_PORT:3306}
`)
	loader := NewLoader(dir)
	handle, err := loader.LoadFile(path)
	require.NoError(t, err)

	ds := handle.Doc.(*DatasetDoc)
	assert.Equal(t, "db.internal", ds.Config["host"])
	assert.Equal(t, "3306", ds.Config["port"])
}

func TestLoadFileDetectsDuplicateRuleIds(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", `
metadata:
  name: rules
  version: "1.0.0"
  description: rule config
  type: rule-config
  author: qa
rules:
  - id: r1
    name: one
    condition: "true"
    message: ok
    severity: Error
  - id: r1
    name: two
    condition: "true"
    message: ok
    severity: Error
`)
	loader := NewLoader(dir)
	_, err := loader.LoadFile(path)
	require.Error(t, err)
}
