package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultWorkers   = 2
	DefaultChunkSize = 1024 * 1024
	DefaultProgress  = "auto"
	DefaultTimeout   = 0 * time.Second
)

// Config represents the ferry CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Login     LoginConfig `mapstructure:"login"`
	Workers   int         `mapstructure:"workers" validate:"gte=1,lte=64"`
	ChunkSize int         `mapstructure:"chunk-size" validate:"gte=1"`
	Progress  string      `mapstructure:"progress" validate:"oneof=auto tty plain"`
	Log       LogConfig   `mapstructure:"log"`
	API       APIConfig   `mapstructure:"api"`
}

// LoginConfig holds the account credentials.
type LoginConfig struct {
	ID  string `mapstructure:"id"`
	Key string `mapstructure:"key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	File string `mapstructure:"file"`
}

// APIConfig holds hosting API settings.
type APIConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// Keys lists every configuration key, in the order `config init` writes them.
var Keys = []string{
	"login.id",
	"login.key",
	"workers",
	"chunk-size",
	"progress",
	"log.file",
	"api.url",
	"api.timeout",
}

// SetDefaults registers the default value of every key on v. Every key
// needs a default so environment overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("login.id", "")
	v.SetDefault("login.key", "")
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("chunk-size", DefaultChunkSize)
	v.SetDefault("progress", DefaultProgress)
	v.SetDefault("log.file", "")
	v.SetDefault("api.url", "")
	v.SetDefault("api.timeout", DefaultTimeout)
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// fieldMessage renders a validation failure using the config key name.
func fieldMessage(fe validator.FieldError) string {
	// Namespace is "Config.api.url"; drop the struct name.
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}

	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", key)
	default:
		return fmt.Sprintf("%s is invalid (%s)", key, fe.Tag())
	}
}
