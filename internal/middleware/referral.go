package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/services"
)

// DefaultReferralCookieTTL keeps invite hints for a week.
const DefaultReferralCookieTTL = 7 * 24 * time.Hour

const maxReferralValueLength = 64

// Auth endpoints consume referral hints, so they never capture new ones.
const authPathPrefix = "/api/auth/"

// ReferralCookieConfig controls the cookies holding referral hints.
type ReferralCookieConfig struct {
	TTL    time.Duration
	Domain string
	Secure bool
}

// ReferralCapture stores ?referralCode= and ?contractId= query parameters in cookies so the
// hints survive until the visitor signs in.
func ReferralCapture(cfg ReferralCookieConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultReferralCookieTTL
	}
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, authPathPrefix) {
			c.Next()
			return
		}
		for _, key := range []string{services.ReferralCodeKey, services.ContractIDKey} {
			value := queryReferralValue(c, key)
			if value == "" {
				continue
			}
			setReferralCookie(c, cfg, key, value, int(cfg.TTL.Seconds()))
		}
		c.Next()
	}
}

// CookieReferralStore exposes the referral cookies of one request as a services.ReferralStore.
type CookieReferralStore struct {
	c   *gin.Context
	cfg ReferralCookieConfig
}

// NewCookieReferralStore binds the store to a request.
func NewCookieReferralStore(c *gin.Context, cfg ReferralCookieConfig) *CookieReferralStore {
	return &CookieReferralStore{c: c, cfg: cfg}
}

// Get returns the hint carried by the request query or, failing that, its cookie.
// It returns "" when neither holds one.
func (s *CookieReferralStore) Get(key string) string {
	if value := queryReferralValue(s.c, key); value != "" {
		return value
	}
	value, err := s.c.Cookie(key)
	if err != nil {
		return ""
	}
	return value
}

// Clear expires the cookie on the client.
func (s *CookieReferralStore) Clear(key string) {
	setReferralCookie(s.c, s.cfg, key, "", -1)
}

func queryReferralValue(c *gin.Context, key string) string {
	value := strings.TrimSpace(c.Query(key))
	if len(value) > maxReferralValueLength {
		return ""
	}
	return value
}

func setReferralCookie(c *gin.Context, cfg ReferralCookieConfig, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", cfg.Domain, cfg.Secure, true)
}

var _ services.ReferralStore = (*CookieReferralStore)(nil)
