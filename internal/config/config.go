// Package config loads the server configuration with viper.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the gateway address, e.g. ":5000".
	Listen string `mapstructure:"listen" validate:"required"`
	// DeploymentFile is the device roster.
	DeploymentFile string `mapstructure:"deployment_file" validate:"required"`
	// ResultsDir receives one file per finished job.
	ResultsDir string `mapstructure:"results_dir" validate:"required"`
	// LedgerFile is the signed result ledger. Empty disables it.
	LedgerFile string `mapstructure:"ledger_file"`
	// KeysDir holds the ledger signing keys.
	KeysDir string `mapstructure:"keys_dir"`

	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
}

// DispatchConfig tunes the dispatcher loops.
type DispatchConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MinRestartBackoff time.Duration `mapstructure:"min_restart_backoff" validate:"gt=0"`
	MaxRestartBackoff time.Duration `mapstructure:"max_restart_backoff" validate:"gtefield=MinRestartBackoff"`
}

// MailConfig configures result e-mails. Mail is sent only when both Sender
// and Password are set.
type MailConfig struct {
	Host     string `mapstructure:"host" validate:"required_with=Sender"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Sender   string `mapstructure:"sender"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether credentials were provided.
func (m MailConfig) Enabled() bool { return m.Sender != "" && m.Password != "" }

// LogConfig selects the log level and format ("text" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Validate checks the loaded configuration.
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":5000")
	v.SetDefault("deployment_file", "config/deployment.json")
	v.SetDefault("results_dir", "results")
	v.SetDefault("ledger_file", "results/ledger.jsonl")
	v.SetDefault("keys_dir", "keys")

	v.SetDefault("dispatch.poll_interval", 20*time.Second)
	v.SetDefault("dispatch.timeout", 5*time.Minute)
	v.SetDefault("dispatch.min_restart_backoff", time.Second)
	v.SetDefault("dispatch.max_restart_backoff", time.Minute)

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. With an empty path it looks for remoteq.yaml
// in ./config and the working directory and falls back to defaults when none
// exists. Every key can be overridden from the environment with the REMOTEQ_
// prefix, e.g. REMOTEQ_DISPATCH_TIMEOUT=2m. EMAIL and PASSW set the mail
// credentials.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REMOTEQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("mail.sender", "REMOTEQ_MAIL_SENDER", "EMAIL")
	_ = v.BindEnv("mail.password", "REMOTEQ_MAIL_PASSWORD", "PASSW")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("remoteq")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}
