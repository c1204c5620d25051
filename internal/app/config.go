package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the PinkyPartner backend.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Referral      ReferralConfig     `mapstructure:"referral"`
	Billing       BillingConfig      `mapstructure:"billing"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Maintenance   MaintenanceConfig  `mapstructure:"maintenance"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig lists the browser origins allowed to call the API and open websockets.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig bounds requests per client and route. Zero requests disables limiting.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures session tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// ReferralConfig controls the cookies that carry invite hints across sign-in.
type ReferralConfig struct {
	CookieTTL    time.Duration `mapstructure:"cookie_ttl"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// BillingConfig holds the tier limits and the payment webhook secret.
type BillingConfig struct {
	FreeMemberLimit    int    `mapstructure:"free_member_limit"`
	PremiumMemberLimit int    `mapstructure:"premium_member_limit"`
	WebhookSecret      string `mapstructure:"webhook_secret"`
}

// ScheduleConfig defines the calendar used for obligation windows.
type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// NotificationConfig toggles notification delivery channels.
type NotificationConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	PubSub  PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig points push jobs at a Google Cloud Pub/Sub topic.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MaintenanceConfig schedules the in-process sweeps. Disabled deployments trigger sweeps
// externally through pinkyctl.
type MaintenanceConfig struct {
	Enabled                   bool   `mapstructure:"enabled"`
	ReminderSpec              string `mapstructure:"reminder_spec"`
	EndingSpec                string `mapstructure:"ending_spec"`
	RolloverSpec              string `mapstructure:"rollover_spec"`
	PurgeSpec                 string `mapstructure:"purge_spec"`
	NotificationRetentionDays int    `mapstructure:"notification_retention_days"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Location resolves the schedule timezone, falling back to UTC.
func (c ScheduleConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: schedule.timezone: %w", err)
	}
	return loc, nil
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PINKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override values without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/pinkypartner.sqlite")
	v.SetDefault("database.dsn", "")
	for _, driver := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+driver+".host", "")
		v.SetDefault("database."+driver+".port", 0)
		v.SetDefault("database."+driver+".database", "")
		v.SetDefault("database."+driver+".username", "")
		v.SetDefault("database."+driver+".password", "")
	}

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "pinkypartner")
	v.SetDefault("auth.jwt.access_token_ttl", "168h")

	v.SetDefault("referral.cookie_ttl", "168h")
	v.SetDefault("referral.cookie_domain", "")
	v.SetDefault("referral.cookie_secure", false)

	v.SetDefault("billing.free_member_limit", 1)
	v.SetDefault("billing.premium_member_limit", 999)
	v.SetDefault("billing.webhook_secret", "")

	v.SetDefault("schedule.timezone", "UTC")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.pubsub.enabled", false)
	v.SetDefault("notifications.pubsub.project_id", "")
	v.SetDefault("notifications.pubsub.topic", "push-notifications")

	v.SetDefault("maintenance.enabled", false)
	v.SetDefault("maintenance.reminder_spec", "0 18 * * *")
	v.SetDefault("maintenance.ending_spec", "0 9 * * *")
	v.SetDefault("maintenance.rollover_spec", "5 0 * * 0")
	v.SetDefault("maintenance.purge_spec", "@hourly")
	v.SetDefault("maintenance.notification_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
