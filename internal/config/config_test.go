package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "voltpipe.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "weather-data", c.Storage.Container)
	assert.Equal(t, 9030, c.Mirror.Port)
	assert.Equal(t, "llama3.2:1b", c.Oracle.Model)
	assert.Equal(t, 30*time.Second, c.Oracle.Timeout)
	assert.Equal(t, 9083, c.Metastore.Port)
	assert.Equal(t, "jdbc:postgresql://hive-postgres:5432/metastore", c.MetaDB.JDBCURI)
	assert.Equal(t, 1500, c.Samples)
}

func TestLoad(t *testing.T) {
	t.Run("overrides defaults with file values", func(t *testing.T) {
		path := writeConfig(t, `
storage:
  account: acct
  container: custom-container
  root: /tmp/lake
mirror:
  host: mirror.internal
samples: 5
`)
		c, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "custom-container", c.Storage.Container)
		assert.Equal(t, "mirror.internal", c.Mirror.Host)
		assert.Equal(t, 5, c.Samples)
		// Untouched options keep defaults.
		assert.Equal(t, 9030, c.Mirror.Port)
		assert.Equal(t, "ollama", c.Oracle.Host)
	})

	t.Run("rejects invalid samples", func(t *testing.T) {
		path := writeConfig(t, "samples: 0\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "samples must be >= 1")
	})

	t.Run("rejects malformed YAML", func(t *testing.T) {
		path := writeConfig(t, "storage: [not a map\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		assert.Error(t, err)
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		c, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yml"))
		require.NoError(t, err)
		assert.Equal(t, 1500, c.Samples)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := writeConfig(t, "samples: 9\n")
		c, err := LoadOrDefault(path)
		require.NoError(t, err)
		assert.Equal(t, 9, c.Samples)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOLTPIPE_STORAGE_KEY", "secret-key")
	t.Setenv("VOLTPIPE_MIRROR_PASSWORD", "secret-pass")

	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, "secret-key", c.Storage.Key)
	assert.Equal(t, "secret-pass", c.Mirror.Password)
}

func TestURLHelpers(t *testing.T) {
	c := Default()
	assert.Equal(t, "http://ollama:11434", c.OracleBaseURL())
	assert.Equal(t, "http://hive-metastore:9083", c.MetastoreBaseURL())
	assert.Equal(t, "thrift://hive-metastore:9083", c.MetastoreThriftURI())
}
