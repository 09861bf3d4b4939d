package signin

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-config/cfgx"
)

// EnvPrefix prefixes every environment variable read by LoadConfigFromEnv.
const EnvPrefix = "SIGNIN_"

// Config holds the runtime settings of the sign in service.
type Config struct {
	SigningKey       string        `koanf:"signing_key" mapstructure:"signing_key"`
	Issuer           string        `koanf:"issuer" mapstructure:"issuer"`
	Audience         []string      `koanf:"audience" mapstructure:"audience"`
	StateTTL         time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
	ContentServerURL string        `koanf:"content_server_url" mapstructure:"content_server_url"`
	AuthServerURL    string        `koanf:"auth_server_url" mapstructure:"auth_server_url"`
	DSN              string        `koanf:"dsn" mapstructure:"dsn"`
	Driver           string        `koanf:"driver" mapstructure:"driver"`
	PingTimeout      time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
	ListenAddr       string        `koanf:"listen_addr" mapstructure:"listen_addr"`
	OtelEndpoint     string        `koanf:"otel_endpoint" mapstructure:"otel_endpoint"`
	SecureCookies    bool          `koanf:"secure_cookies" mapstructure:"secure_cookies"`
	Debug            bool          `koanf:"debug" mapstructure:"debug"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Issuer:           "go-signin",
		Audience:         []string{"go-signin"},
		StateTTL:         DefaultStateTTL,
		ContentServerURL: "http://localhost:3030",
		AuthServerURL:    "http://localhost:9000/graphql",
		DSN:              "file:signin.db?cache=shared",
		Driver:           "sqlite",
		PingTimeout:      5 * time.Second,
		ListenAddr:       ":8080",
	}
}

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.StateTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ContentServerURL, validation.Required, is.URL),
		validation.Field(&c.AuthServerURL, validation.Required, is.URL),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.Driver, validation.Required, validation.In("sqlite", "sqlite3")),
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.OtelEndpoint, is.URL),
	)
}

// BuildConfig resolves raw values on top of DefaultConfig.
func BuildConfig(raw map[string]any) (Config, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(DefaultConfig()),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// LoadConfigFromEnv reads SIGNIN_* variables with lookup and builds a Config.
// A nil lookup uses os.LookupEnv.
func LoadConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	raw := map[string]any{}
	setString := func(key string) {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok && v != "" {
			raw[key] = v
		}
	}
	setDuration := func(key string) error {
		v, ok := lookup(EnvPrefix + strings.ToUpper(key))
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return validation.Errors{key: err}
		}
		raw[key] = d
		return nil
	}
	setBool := func(key string) error {
		v, ok := lookup(EnvPrefix + strings.ToUpper(key))
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return validation.Errors{key: err}
		}
		raw[key] = b
		return nil
	}

	for _, key := range []string{"signing_key", "issuer", "content_server_url", "auth_server_url", "dsn", "driver", "listen_addr", "otel_endpoint"} {
		setString(key)
	}
	if v, ok := lookup(EnvPrefix + "AUDIENCE"); ok && v != "" {
		raw["audience"] = splitList(v)
	}
	for _, key := range []string{"state_ttl", "ping_timeout"} {
		if err := setDuration(key); err != nil {
			return Config{}, err
		}
	}
	for _, key := range []string{"secure_cookies", "debug"} {
		if err := setBool(key); err != nil {
			return Config{}, err
		}
	}

	return BuildConfig(raw)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetDebug implements the persistence config.
func (c Config) GetDebug() bool {
	return c.Debug
}

// GetDriver implements the persistence config.
func (c Config) GetDriver() string {
	return c.Driver
}

// GetServer implements the persistence config.
func (c Config) GetServer() string {
	return c.DSN
}

// GetPingTimeout implements the persistence config.
func (c Config) GetPingTimeout() time.Duration {
	return c.PingTimeout
}

// GetOtelIdentifier implements the persistence config.
func (c Config) GetOtelIdentifier() string {
	return "signin"
}

// NewStateSealerFromConfig builds a StateSealer from c.
func NewStateSealerFromConfig(c Config, opts ...StateSealerOption) *StateSealer {
	return NewStateSealer([]byte(c.SigningKey), c.Issuer, c.Audience, c.StateTTL, opts...)
}
