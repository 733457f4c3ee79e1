package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/atisu/evaluator/internal/sandbox"
)

type EvalConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkerConfig overrides the worker command. Both fields empty means
// "re-exec this binary in worker mode", which is the normal setup.
type WorkerConfig struct {
	Binary string   `mapstructure:"binary"`
	Args   []string `mapstructure:"args"`
}

type Config struct {
	Eval    EvalConfig     `mapstructure:"eval"`
	Sandbox sandbox.Policy `mapstructure:"sandbox"`
	Worker  WorkerConfig   `mapstructure:"worker"`
}

// Load reads evaluator.yaml from path (when given), the current
// directory, or $HOME/.evaluator. A missing config file is fine; the
// defaults describe a working setup.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("evaluator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.evaluator")
	}

	v.SetDefault("eval.timeout", "500ms")
	v.SetDefault("sandbox.allow_if", true)
	v.SetDefault("sandbox.allow_for", true)
	v.SetDefault("sandbox.allow_while", true)
	v.SetDefault("sandbox.allow_aug_assign", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Eval.Timeout <= 0 {
		return nil, fmt.Errorf("eval.timeout must be positive, got %s", cfg.Eval.Timeout)
	}

	return &cfg, nil
}
