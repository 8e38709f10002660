package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	oldFile, oldEnv := DefaultFile, EnvFile
	DefaultFile = filepath.Join(dir, "payments.toml")
	EnvFile = filepath.Join(dir, ".env")
	t.Cleanup(func() {
		DefaultFile, EnvFile = oldFile, oldEnv
	})
	return dir
}

func write(t *testing.T, name, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(data), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	write(t, path, `
log_level = "debug"
format = "table"
strict_tx_ids = true
warn_rate = 2.5

[kafka]
brokers = ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, FormatTable, cfg.Format)
	assert.True(t, cfg.StrictTxIDs)
	assert.False(t, cfg.AmountExpressions)
	assert.Equal(t, 2.5, cfg.WarnRate)
	assert.Equal(t, 20, cfg.WarnBurst, "absent keys keep defaults")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "account_balances", cfg.Kafka.Topic)
}

func TestLoadDefaultFile(t *testing.T) {
	isolate(t)
	write(t, DefaultFile, `format = "table"`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, cfg.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestLoadBadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.toml")
	write(t, path, `format = [`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	write(t, DefaultFile, `
format = "table"
sink = "postgres"

[postgres]
dsn = "postgres://file"
table = "from_file"
`)
	write(t, EnvFile, "PAYMENTS_POSTGRES_TABLE=from_dotenv\nPAYMENTS_FORMAT=csv\n")
	t.Setenv("PAYMENTS_FORMAT", "table")
	t.Setenv("PAYMENTS_POSTGRES_DSN", "postgres://env")
	// registers a restore for the variable .env is about to set
	t.Setenv("PAYMENTS_POSTGRES_TABLE", "")
	os.Unsetenv("PAYMENTS_POSTGRES_TABLE")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, FormatTable, cfg.Format, "environment beats .env")
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN, "environment beats file")
	assert.Equal(t, "from_dotenv", cfg.Postgres.Table, ".env beats file")
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvParseErrors(t *testing.T) {
	isolate(t)
	t.Setenv("PAYMENTS_STRICT_TX_IDS", "maybe")

	_, err := Load("")
	assert.ErrorContains(t, err, "PAYMENTS_STRICT_TX_IDS")
}

func TestLoadEnvBrokers(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"PAYMENTS_KAFKA_BROKERS":      " a:1, ,b:2 ",
		"PAYMENTS_AMOUNT_EXPRESSIONS": "true",
		"PAYMENTS_WARN_BURST":         "3",
	}
	err := cfg.loadEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.AmountExpressions)
	assert.Equal(t, 3, cfg.WarnBurst)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad format", func(c *Config) { c.Format = "xml" }, false},
		{"bad sink", func(c *Config) { c.Sink = "s3" }, false},
		{"postgres without dsn", func(c *Config) { c.Sink = SinkPostgres }, false},
		{"postgres without table", func(c *Config) {
			c.Sink = SinkPostgres
			c.Postgres.DSN = "postgres://x"
			c.Postgres.Table = ""
		}, false},
		{"postgres", func(c *Config) {
			c.Sink = SinkPostgres
			c.Postgres.DSN = "postgres://x"
		}, true},
		{"kafka without brokers", func(c *Config) { c.Sink = SinkKafka }, false},
		{"kafka", func(c *Config) {
			c.Sink = SinkKafka
			c.Kafka.Brokers = []string{"k:9092"}
		}, true},
		{"zero warn rate", func(c *Config) { c.WarnRate = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}
