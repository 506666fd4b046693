package kouhai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
nickname ayu
casemapping ascii
cap sasl
cap account-tag
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ayu", cfg.Nick)
	assert.Equal(t, "ayu", cfg.User)
	assert.Equal(t, "ayu", cfg.Real)
	assert.Equal(t, "ascii", cfg.CaseMapping)
	assert.Equal(t, []string{"sasl", "account-tag"}, cfg.Caps)

	params := cfg.SessionParams()
	assert.Equal(t, "ayu", params.Nickname)
	assert.Equal(t, "ascii", params.CaseMapping)
	assert.Equal(t, []string{"sasl", "account-tag"}, params.WantedCaps)
}

func TestLoadConfigFileFull(t *testing.T) {
	path := writeConfig(t, `
nickname ayu
username ayu_
realname "Ayu A."
password hunter2
`)
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ayu_", cfg.User)
	assert.Equal(t, "Ayu A.", cfg.Real)
	assert.Equal(t, "hunter2", cfg.Password)
}

func TestLoadConfigFileErrors(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "username nonick\n"))
	assert.ErrorContains(t, err, "nickname")

	_, err = LoadConfigFile(writeConfig(t, "nickname ayu\ncasemapping utf8-only\n"))
	assert.ErrorContains(t, err, "casemapping")

	_, err = LoadConfigFile(writeConfig(t, "nickname ayu\nserver irc.example.org\n"))
	assert.ErrorContains(t, err, "unknown directive")
}
