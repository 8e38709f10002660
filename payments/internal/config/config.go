// Package config resolves the settings of the payments command from, in
// increasing precedence: built-in defaults, a TOML file, a .env file,
// PAYMENTS_* environment variables and finally command-line flags (applied
// by the caller).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
)

const (
	FormatCSV   = "csv"
	FormatTable = "table"

	SinkNone     = "none"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

var (
	// DefaultFile is read when no config path is given and it exists.
	DefaultFile = "payments.toml"
	// EnvFile is loaded into the environment when it exists. Variables
	// already set win.
	EnvFile = ".env"
)

var ErrInvalid = errors.New("invalid configuration")

type Postgres struct {
	DSN   string
	Table string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Config struct {
	LogLevel          string
	Format            string
	Sink              string
	StrictTxIDs       bool
	AmountExpressions bool
	LockedColor       string
	// WarnRate is the number of invalid-record warnings logged per second
	// after an initial burst of WarnBurst.
	WarnRate  float64
	WarnBurst int

	Postgres Postgres
	Kafka    Kafka
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:    "info",
		Format:      FormatCSV,
		Sink:        SinkNone,
		LockedColor: "#ff5555",
		WarnRate:    10,
		WarnBurst:   20,
		Postgres: Postgres{
			Table: "account_balances",
		},
		Kafka: Kafka{
			Topic: "account_balances",
		},
	}
}

// file mirrors Config with pointers so that keys absent from the TOML file
// keep their defaults.
type file struct {
	LogLevel          *string  `toml:"log_level"`
	Format            *string  `toml:"format"`
	Sink              *string  `toml:"sink"`
	StrictTxIDs       *bool    `toml:"strict_tx_ids"`
	AmountExpressions *bool    `toml:"amount_expressions"`
	LockedColor       *string  `toml:"locked_color"`
	WarnRate          *float64 `toml:"warn_rate"`
	WarnBurst         *int     `toml:"warn_burst"`
	Postgres          struct {
		DSN   *string `toml:"dsn"`
		Table *string `toml:"table"`
	} `toml:"postgres"`
	Kafka struct {
		Brokers []string `toml:"brokers"`
		Topic   *string  `toml:"topic"`
	} `toml:"kafka"`
}

// Load resolves defaults, the TOML file at path (or DefaultFile when path
// is empty), EnvFile and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config: %s: %w", EnvFile, err)
	}

	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	set(&c.LogLevel, f.LogLevel)
	set(&c.Format, f.Format)
	set(&c.Sink, f.Sink)
	set(&c.StrictTxIDs, f.StrictTxIDs)
	set(&c.AmountExpressions, f.AmountExpressions)
	set(&c.LockedColor, f.LockedColor)
	set(&c.WarnRate, f.WarnRate)
	set(&c.WarnBurst, f.WarnBurst)
	set(&c.Postgres.DSN, f.Postgres.DSN)
	set(&c.Postgres.Table, f.Postgres.Table)
	set(&c.Kafka.Topic, f.Kafka.Topic)
	if len(f.Kafka.Brokers) > 0 {
		c.Kafka.Brokers = f.Kafka.Brokers
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup("PAYMENTS_" + key); ok {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("FORMAT", &c.Format)
	str("SINK", &c.Sink)
	str("LOCKED_COLOR", &c.LockedColor)
	str("POSTGRES_DSN", &c.Postgres.DSN)
	str("POSTGRES_TABLE", &c.Postgres.Table)
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	if v, ok := lookup("PAYMENTS_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}

	var err error
	parse := func(key string, fn func(string) error) {
		if v, ok := lookup("PAYMENTS_" + key); ok && err == nil {
			if perr := fn(v); perr != nil {
				err = fmt.Errorf("config: PAYMENTS_%s: %w", key, perr)
			}
		}
	}
	parse("STRICT_TX_IDS", func(v string) (e error) {
		c.StrictTxIDs, e = strconv.ParseBool(v)
		return
	})
	parse("AMOUNT_EXPRESSIONS", func(v string) (e error) {
		c.AmountExpressions, e = strconv.ParseBool(v)
		return
	})
	parse("WARN_RATE", func(v string) (e error) {
		c.WarnRate, e = strconv.ParseFloat(v, 64)
		return
	})
	parse("WARN_BURST", func(v string) (e error) {
		c.WarnBurst, e = strconv.Atoi(v)
		return
	})
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the combination of settings.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatCSV, FormatTable:
	default:
		return fmt.Errorf("%w: format %q, want %s or %s", ErrInvalid, c.Format, FormatCSV, FormatTable)
	}

	switch c.Sink {
	case SinkNone:
	case SinkPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: postgres sink needs a dsn", ErrInvalid)
		}
		if c.Postgres.Table == "" {
			return fmt.Errorf("%w: postgres sink needs a table", ErrInvalid)
		}
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: kafka sink needs brokers", ErrInvalid)
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka sink needs a topic", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: sink %q", ErrInvalid, c.Sink)
	}

	if c.WarnRate <= 0 || c.WarnBurst < 1 {
		return fmt.Errorf("%w: warn_rate and warn_burst must be positive", ErrInvalid)
	}
	return nil
}
