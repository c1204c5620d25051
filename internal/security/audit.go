package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/app"
	"github.com/pinkypartner/pinkypartner/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretLength       = 32
	recommendedSecretSize = 48
	minWebhookSecret      = 24
	maxRecommendedTTL     = 30 * 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditService evaluates deployment configuration and data hygiene.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Both dependencies are optional; missing
// inputs degrade the affected checks to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkJWTSecret(),
		s.checkSessionTTL(),
		s.checkWebhookSecret(),
		s.checkReferralCookie(),
		s.checkCORS(),
		s.checkOrphanedContracts(ctx),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) missingConfig(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded.",
		Remediation: "Load configuration before running the security audit.",
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Set PINKY_AUTH_JWT_SECRET to a random value of at least 32 bytes.",
		}
	case length < minSecretLength:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < recommendedSecretSize:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48 or more.", length),
			Remediation: "Increase the length of PINKY_AUTH_JWT_SECRET.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	const id = "session_ttl"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	ttl := s.cfg.Auth.JWT.TTL
	if ttl <= 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Session TTL is not configured; the default applies.",
			Remediation: "Set PINKY_AUTH_JWT_ACCESS_TOKEN_TTL.",
		}
	}
	if ttl > maxRecommendedTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session TTL (%s) exceeds the recommended maximum (%s).", ttl, maxRecommendedTTL),
			Remediation: "Reduce the session TTL to 30 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Session TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkWebhookSecret() Check {
	const id = "billing_webhook_secret"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	length := len(strings.TrimSpace(s.cfg.Billing.WebhookSecret))
	switch {
	case length == 0:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Billing webhook secret is empty; every webhook will be rejected.",
			Remediation: "Set PINKY_BILLING_WEBHOOK_SECRET to the value shared with the payment provider.",
		}
	case length < minWebhookSecret:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("Billing webhook secret is too short (%d characters).", length),
			Remediation: "Use a webhook secret of at least 24 random characters.",
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: "Billing webhook secret configured."}
	}
}

func (s *AuditService) checkReferralCookie() Check {
	const id = "referral_cookie_secure"
	if s.cfg == nil {
		return s.missingConfig(id)
	}
	if !s.cfg.Referral.CookieSecure {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Referral cookies are sent over plain HTTP.",
			Remediation: "Enable referral.cookie_secure behind TLS.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Referral cookies require HTTPS."}
}

func (s *AuditService) checkCORS() Check {
	const id = "cors_origins"
	if s.cfg == nil {
		return s.missingConfig(id)
	}

	for _, origin := range s.cfg.Server.CORS.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          id,
				Status:      StatusFail,
				Message:     "Wildcard origin allows any site to open credentialed requests and websockets.",
				Remediation: "List the web client origins explicitly in server.cors.allowed_origins.",
			}
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "CORS origins are explicit.",
		Details: map[string]any{"origins": s.cfg.Server.CORS.AllowedOrigins},
	}
}

// Contracts are removed when their last member leaves, so any survivor without active
// members indicates an interrupted opt-out.
func (s *AuditService) checkOrphanedContracts(ctx context.Context) Check {
	const id = "orphaned_contracts"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable. Unable to inspect contracts.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("NOT EXISTS (SELECT 1 FROM contract_memberships m WHERE m.contract_id = contracts.id AND m.opt_out_on IS NULL)").
		Count(&count).Error
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not inspect contracts: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count > 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("%d contracts have no active members.", count),
			Remediation: "Delete contracts without active members.",
			Details:     map[string]any{"count": count},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Every contract has an active member."}
}
