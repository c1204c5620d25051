package app

import (
	"strings"
	"time"

	"github.com/pinkypartner/pinkypartner/internal/auth"
	"github.com/pinkypartner/pinkypartner/internal/database"
	"github.com/pinkypartner/pinkypartner/internal/middleware"
	"github.com/pinkypartner/pinkypartner/internal/services"
)

const defaultRateWindow = time.Minute

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// CapacityPolicy converts the billing limits. Non-positive limits fall back to the defaults.
func (c BillingConfig) CapacityPolicy() services.CapacityPolicy {
	return services.CapacityPolicy{
		FreeLimit:    c.FreeMemberLimit,
		PremiumLimit: c.PremiumMemberLimit,
	}
}

// CookieConfig converts ReferralConfig into the middleware cookie options.
func (c ReferralConfig) CookieConfig() middleware.ReferralCookieConfig {
	ttl := c.CookieTTL
	if ttl <= 0 {
		ttl = middleware.DefaultReferralCookieTTL
	}
	return middleware.ReferralCookieConfig{
		TTL:    ttl,
		Domain: strings.TrimSpace(c.CookieDomain),
		Secure: c.CookieSecure,
	}
}

// EffectiveWindow returns the limiter window, one minute when unset.
func (c RateLimitConfig) EffectiveWindow() time.Duration {
	if c.Window <= 0 {
		return defaultRateWindow
	}
	return c.Window
}

// Connection converts DatabaseConfig into the options understood by database.Open.
func (c DatabaseConfig) Connection() database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var hosted DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		hosted = c.Postgres
	case "mysql":
		hosted = c.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(hosted.Host)
	dbCfg.Port = hosted.Port
	dbCfg.Name = strings.TrimSpace(hosted.Database)
	dbCfg.User = strings.TrimSpace(hosted.Username)
	dbCfg.Password = strings.TrimSpace(hosted.Password)
	return dbCfg
}
