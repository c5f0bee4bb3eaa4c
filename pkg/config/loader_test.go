package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/pkg/config"
)

type poolConfig struct {
	URL      string        `env:"URL,required"`
	MaxConns int32         `env:"MAX_CONNS" envDefault:"5"`
	Idle     time.Duration `env:"IDLE" envDefault:"15m"`
}

type serviceConfig struct {
	Port   string     `env:"PORT" envDefault:"8080"`
	Hosts  []string   `env:"HOSTS" envSeparator:","`
	Tenant poolConfig `envPrefix:"TENANT_"`
}

func TestLoad(t *testing.T) {
	t.Parallel()

	var cfg serviceConfig
	err := config.Load(&cfg, config.WithEnvironment(map[string]string{
		"HOSTS":            "a.example.com,b.example.com",
		"TENANT_URL":       "postgres://localhost/app",
		"TENANT_MAX_CONNS": "9",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Hosts)
	assert.Equal(t, "postgres://localhost/app", cfg.Tenant.URL)
	assert.Equal(t, int32(9), cfg.Tenant.MaxConns)
	assert.Equal(t, 15*time.Minute, cfg.Tenant.Idle)
}

func TestLoad_Prefix(t *testing.T) {
	t.Parallel()

	var cfg poolConfig
	err := config.Load(&cfg,
		config.WithPrefix("APP_"),
		config.WithEnvironment(map[string]string{"APP_URL": "postgres://x", "URL": "ignored"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", cfg.URL)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	var cfg poolConfig
	err := config.Load(&cfg, config.WithEnvironment(map[string]string{}))
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	err = config.Load(&cfg, config.WithEnvironment(map[string]string{"URL": "x", "IDLE": "soon"}))
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.ErrorIs(t, config.Load[poolConfig](nil), config.ErrNilPointer)
}

func TestMustLoad(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		config.MustLoad[poolConfig](config.WithEnvironment(map[string]string{}))
	})
	cfg := config.MustLoad[poolConfig](config.WithEnvironment(map[string]string{"URL": "x"}))
	assert.Equal(t, "x", cfg.URL)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("STOCKLINE_CONFIG_TEST=from_file\n"), 0o600))

	t.Setenv("STOCKLINE_CONFIG_PRESET", "from_env")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.preset"), []byte("STOCKLINE_CONFIG_PRESET=from_file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("STOCKLINE_CONFIG_TEST") })

	require.NoError(t, config.LoadEnv(path, filepath.Join(dir, ".env.preset")))
	assert.Equal(t, "from_file", os.Getenv("STOCKLINE_CONFIG_TEST"))
	assert.Equal(t, "from_env", os.Getenv("STOCKLINE_CONFIG_PRESET"))

	assert.ErrorIs(t, config.LoadEnv(filepath.Join(dir, "missing.env")), config.ErrLoadingEnvFile)
}
