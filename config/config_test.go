package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server_name: TestRouter
data_dir: /tmp
couplers:
  - name: can0
    class: CANCoupler
    interface: can0
servers:
  - name: Main
    class: MainServer
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "navrouter.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "TestRouter", cfg.ServerName)
	assert.Equal(t, "/var/log", cfg.TraceDir) // default: sampleYAML sets no trace_dir
	require.Len(t, cfg.Couplers, 1)
	assert.Equal(t, "can0", cfg.Couplers[0].Name)
	assert.Equal(t, "CANCoupler", cfg.Couplers[0].Class)
	assert.Equal(t, "can0", cfg.Couplers[0].String("interface", ""))
}

func TestLoad_missingMainServer(t *testing.T) {
	path := writeTempConfig(t, "server_name: NoMain\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_defaultsServerName(t *testing.T) {
	path := writeTempConfig(t, "servers:\n  - name: Main\n    class: MainServer\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "MessageServer(Default)", cfg.ServerName)
}

func TestComponent_accessors(t *testing.T) {
	c := Component{Params: map[string]interface{}{
		"count":  5,
		"active": true,
		"tags":   []interface{}{"a", "b"},
	}}

	assert.Equal(t, 5, c.Int("count", 0))
	assert.True(t, c.Bool("active", false))
	assert.Equal(t, []string{"a", "b"}, c.StringList("tags", nil))
	assert.Equal(t, "fallback", c.String("missing", "fallback"))
}
