package feeders

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string   `yaml:"name" toml:"name" json:"name"`
	Port    int      `yaml:"port" toml:"port" json:"port"`
	Tags    []string `yaml:"tags" toml:"tags" json:"tags"`
	Logging struct {
		Level string `yaml:"level" toml:"level" json:"level"`
	} `yaml:"logging" toml:"logging" json:"logging"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileFeeders(t *testing.T) {
	cases := map[string]string{
		"config.yaml": "name: registry\nport: 8080\ntags: [a, b]\nlogging:\n  level: debug\n",
		"config.toml": "name = \"registry\"\nport = 8080\ntags = [\"a\", \"b\"]\n\n[logging]\nlevel = \"debug\"\n",
		"config.json": `{"name": "registry", "port": 8080, "tags": ["a", "b"], "logging": {"level": "debug"}}`,
		"config.jsonc": `{
			// service name
			"name": "registry",
			"port": 8080,
			"tags": ["a", "b",],
			"logging": {"level": "debug"},
		}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			feeder, err := ForFile(writeFile(t, name, content))
			require.NoError(t, err)

			var cfg testConfig
			require.NoError(t, feeder.Feed(&cfg))
			assert.Equal(t, "registry", cfg.Name)
			assert.Equal(t, 8080, cfg.Port)
			assert.Equal(t, []string{"a", "b"}, cfg.Tags)
			assert.Equal(t, "debug", cfg.Logging.Level)
		})
	}
}

func TestForFileRejectsUnknownExtensions(t *testing.T) {
	_, err := ForFile("config.ini")
	assert.ErrorIs(t, err, ErrFeederUnsupportedFile)
}

func TestFileFeederErrors(t *testing.T) {
	var cfg testConfig
	assert.ErrorIs(t, NewYamlFeeder("").Feed(&cfg), ErrFeederNoPath)
	assert.ErrorIs(t, NewTomlFeeder(filepath.Join(t.TempDir(), "absent.toml")).Feed(&cfg), os.ErrNotExist)
	assert.Error(t, NewJSONFeeder(writeFile(t, "bad.json", "{")).Feed(&cfg))
}

func TestAffixedEnvFeeder(t *testing.T) {
	type Config struct {
		Host     string        `env:"HOST"`
		Port     int           `env:"PORT"`
		Debug    bool          `env:"DEBUG"`
		Timeout  time.Duration `env:"TIMEOUT"`
		Plugins  []string      `env:"PLUGINS"`
		Untagged string
		Nested   struct {
			Setting bool `env:"SETTING"`
		}
	}

	t.Run("with prefix and suffix", func(t *testing.T) {
		t.Setenv("APP_HOST_TEST", "localhost")
		t.Setenv("APP_PORT_TEST", "8080")
		t.Setenv("APP_SETTING_TEST", "true")

		var cfg Config
		require.NoError(t, NewAffixedEnvFeeder("APP", "TEST").Feed(&cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
		assert.True(t, cfg.Nested.Setting)
	})

	t.Run("with prefix only", func(t *testing.T) {
		t.Setenv("APP_HOST", "example.com")
		t.Setenv("APP_DEBUG", "true")
		t.Setenv("APP_TIMEOUT", "1m30s")
		t.Setenv("APP_PLUGINS", "db, auth,,web")

		cfg := Config{Untagged: "kept", Port: 1}
		require.NoError(t, NewAffixedEnvFeeder("app_", "").Feed(&cfg))
		assert.Equal(t, "example.com", cfg.Host)
		assert.Equal(t, 1, cfg.Port)
		assert.True(t, cfg.Debug)
		assert.Equal(t, 90*time.Second, cfg.Timeout)
		assert.Equal(t, []string{"db", "auth", "web"}, cfg.Plugins)
		assert.Equal(t, "kept", cfg.Untagged)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("BAD_PORT", "eighty")
		var cfg Config
		err := NewAffixedEnvFeeder("BAD", "").Feed(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Port")

		t.Setenv("WORSE_TIMEOUT", "soon")
		assert.Error(t, NewAffixedEnvFeeder("WORSE", "").Feed(&cfg))
	})

	t.Run("invalid input", func(t *testing.T) {
		var cfg Config
		assert.ErrorIs(t, NewAffixedEnvFeeder("", "").Feed(&cfg), ErrEnvEmptyPrefixAndSuffix)
		assert.ErrorIs(t, NewAffixedEnvFeeder("APP", "").Feed(cfg), ErrFeederInvalidTarget)
		assert.ErrorIs(t, NewAffixedEnvFeeder("APP", "").Feed(nil), ErrFeederInvalidTarget)
	})
}
