package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNamespace(t *testing.T) {
	assert.Equal(t, "default.must.change", DefaultNamespace("localhost"))
	assert.Equal(t, "default.must.change", DefaultNamespace("localhost:8080"))
	assert.Equal(t, "default.must.change", DefaultNamespace(""))
	assert.Equal(t, "archive.example.org", DefaultNamespace("Archive.Example.org:443"))
	assert.Equal(t, "myhost", DefaultNamespace("my_host"))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.PageLimit)
	assert.Equal(t, 10*time.Minute, cfg.TokenTTL())
	assert.True(t, cfg.ExposeFiles)
	assert.False(t, cfg.ExposeItemType)
	assert.True(t, cfg.ExposeEmptyCollections)
	assert.Equal(t, "/oai-pmh-repository/request", cfg.Route)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"empty namespace": func(c *Config) { c.NamespaceID = "" },
		"colon namespace": func(c *Config) { c.NamespaceID = "a:b" },
		"page limit":      func(c *Config) { c.PageLimit = 0 },
		"ttl":             func(c *Config) { c.TokenTTLMinutes = -1 },
		"route":           func(c *Config) { c.Route = "oai" },
		"backend":         func(c *Config) { c.KV.Backend = "redis" },
	} {
		cfg := Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oaipmh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repositoryName: Springfield Archive
namespaceId: archive.springfield.org
pageLimit: 20
exposeFiles: false
kv:
  backend: memory
`), 0o644))

	t.Chdir(dir)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Springfield Archive", cfg.RepositoryName)
	assert.Equal(t, "archive.springfield.org", cfg.NamespaceID)
	assert.Equal(t, 20, cfg.PageLimit)
	assert.False(t, cfg.ExposeFiles)
	assert.Equal(t, "memory", cfg.KV.Backend)
	// untouched fields keep their defaults
	assert.Equal(t, 10, cfg.TokenTTLMinutes)
}

func TestLoadDotEnvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OAIPMH_ADMIN_EMAIL=dotenv@example.org\nOAIPMH_PAGE_LIMIT=7\n"), 0o644))
	t.Chdir(dir)
	// godotenv sets variables for the whole process
	t.Cleanup(func() { os.Unsetenv("OAIPMH_ADMIN_EMAIL") })

	t.Setenv("OAIPMH_PAGE_LIMIT", "30")
	t.Setenv("OAIPMH_EXPOSE_ITEM_TYPE", "true")
	t.Setenv("OAIPMH_KV_PD_ENDPOINTS", "pd1:2379,pd2:2379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.org", cfg.AdminEmail)
	// the environment wins over .env
	assert.Equal(t, 30, cfg.PageLimit)
	assert.True(t, cfg.ExposeItemType)
	assert.Equal(t, []string{"pd1:2379", "pd2:2379"}, cfg.KV.PDEndpoints)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	cfg := Default()
	env := map[string]string{"OAIPMH_PAGE_LIMIT": "lots", "OAIPMH_EXPOSE_FILES": "maybe"}
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
