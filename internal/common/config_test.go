package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	config := NewDefaultConfig()
	config.Instance.URL = "https://instance.test"
	config.Instance.ContentRecordPath = "/Content/12/34"
	config.Credentials.Username = "admin"
	config.Credentials.Password = "secret"
	return config
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, ".auth/sysAdmin.json", config.Paths.AuthState)
	assert.Equal(t, "testFiles", config.Paths.TestFiles)
	assert.Equal(t, "results", config.Paths.ResultsDir)
	assert.Equal(t, "timings.csv", config.Paths.ReportFile)
	assert.Equal(t, 1, config.Run.TimingsPerFile)
	assert.True(t, config.Browser.Headless)

	timeout, err := config.ActionTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[instance]
url = "https://base.test"
content_record_path = "/Content/1/2"

[run]
timings_per_file = 3
`), 0644))
	require.NoError(t, os.WriteFile(local, []byte(`
[instance]
url = "https://local.test"

[browser]
action_timeout = "45s"
`), 0644))

	config, err := LoadFromFiles(base, local)
	require.NoError(t, err)

	assert.Equal(t, "https://local.test", config.Instance.URL)
	assert.Equal(t, "/Content/1/2", config.Instance.ContentRecordPath)
	assert.Equal(t, 3, config.Run.TimingsPerFile)
	assert.Equal(t, "45s", config.Browser.ActionTimeout)
	assert.Equal(t, "testFiles", config.Paths.TestFiles, "defaults survive")
}

func TestLoadFromFiles_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INSTANCE_URL", "https://env.test")
	t.Setenv("CONTENT_RECORD_PATH", "/Content/9")
	t.Setenv("SYS_ADMIN_USERNAME", "sysadmin")
	t.Setenv("PASSWORD", "pw")
	t.Setenv("ATTACHTIMER_TIMINGS_PER_FILE", "5")
	t.Setenv("ATTACHTIMER_HEADLESS", "false")
	t.Setenv("ATTACHTIMER_LOG_OUTPUT", "stdout, file")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[instance]
url = "https://file.test"
`), 0644))

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.test", config.Instance.URL)
	assert.Equal(t, "/Content/9", config.Instance.ContentRecordPath)
	assert.Equal(t, "sysadmin", config.Credentials.Username)
	assert.Equal(t, "pw", config.Credentials.Password)
	assert.Equal(t, 5, config.Run.TimingsPerFile)
	assert.False(t, config.Browser.Headless)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[instance\nurl = "), 0644))
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := validConfig()

	ApplyFlagOverrides(config, 0, nil)
	assert.Equal(t, 1, config.Run.TimingsPerFile)
	assert.True(t, config.Browser.Headless)

	headless := false
	ApplyFlagOverrides(config, 4, &headless)
	assert.Equal(t, 4, config.Run.TimingsPerFile)
	assert.False(t, config.Browser.Headless)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing instance", func(c *Config) { c.Instance.URL = "" }},
		{"instance not a url", func(c *Config) { c.Instance.URL = "instance" }},
		{"missing record path", func(c *Config) { c.Instance.ContentRecordPath = "" }},
		{"zero timings", func(c *Config) { c.Run.TimingsPerFile = 0 }},
		{"bad timeout", func(c *Config) { c.Browser.ActionTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Browser.ActionTimeout = "-1s" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestValidate_CredentialsOnlyForLogin(t *testing.T) {
	config := validConfig()
	config.Credentials = CredentialsConfig{}

	assert.NoError(t, config.Validate(), "upload runs on the saved session")
	assert.Error(t, config.ValidateForLogin())

	config.Credentials.Username = "admin"
	assert.Error(t, config.ValidateForLogin(), "password still missing")

	config.Credentials.Password = "secret"
	assert.NoError(t, config.ValidateForLogin())
}

func TestRouteBuilders(t *testing.T) {
	config := validConfig()
	config.Instance.ContentRecordPath = "/Content/12/34/"

	assert.Equal(t, "/Content/12/34/Edit", config.RecordEditPath())
	assert.Equal(t, "/Content/12/34/SaveAttachments", config.SaveAttachmentsPath())

	resolved, err := config.ResolveURL(config.RecordEditPath())
	require.NoError(t, err)
	assert.Equal(t, "https://instance.test/Content/12/34/Edit", resolved)
}
