package di

import (
	"io"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-record-query/cache"
	"github.com/goliatone/go-record-query/store/bunstore"
)

// DriverPgx selects the pgx backed store. The bun drivers are
// bunstore.DriverSQLite and bunstore.DriverPostgres.
const DriverPgx = "pgx"

// Config aggregates everything the Container wires.
type Config struct {
	Cache    cache.Config   `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Metadata MetadataConfig `yaml:"metadata"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects the store. An empty driver means the caller passes a
// store with WithStore.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MetadataConfig points at a YAML metadata document.
type MetadataConfig struct {
	File string `yaml:"file"`
}

// LogConfig sets the level of the default logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with the shared cache defaults, no store and
// info level logging.
func DefaultConfig() Config {
	return Config{
		Cache: cache.DefaultConfig(),
		Log:   LogConfig{Level: "info"},
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}

	err := validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.Driver, validation.In(bunstore.DriverSQLite, bunstore.DriverPostgres, DriverPgx)),
		validation.Field(&c.Store.DSN, validation.When(c.Store.Driver != "", validation.Required)),
	)
	if err == nil {
		err = validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		)
	}
	if err != nil {
		if verr := goerrors.FromOzzoValidation(err, "invalid configuration"); verr != nil {
			return verr
		}
		return err
	}
	return nil
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "decoding configuration").
			WithTextCode("CONFIG_DECODE")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "opening configuration "+path)
	}
	defer f.Close()
	return ParseConfig(f)
}

func (c LogConfig) slogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
