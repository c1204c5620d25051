package security

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/app"
	testutil "github.com/pinkypartner/pinkypartner/internal/database/testutil"
	"github.com/pinkypartner/pinkypartner/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef0123456789abcdef"
	cfg.Auth.JWT.TTL = 7 * 24 * time.Hour
	cfg.Billing.WebhookSecret = "webhook-secret-with-enough-entropy"
	cfg.Referral.CookieSecure = true
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.pinkypartner.test"}

	svc := NewAuditService(db, cfg)
	fixed := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 6)
	require.Equal(t, 6, result.Summary[string(StatusPass)])
	require.False(t, result.Failed())
}

func TestAuditServiceFlagsWeakConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "short"
	cfg.Auth.JWT.TTL = 90 * 24 * time.Hour
	cfg.Billing.WebhookSecret = "tiny"
	cfg.Server.CORS.AllowedOrigins = []string{"*"}

	result := NewAuditService(nil, cfg).Run(context.Background())
	require.True(t, result.Failed())
	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_ttl").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "billing_webhook_secret").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "referral_cookie_secure").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "cors_origins").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "orphaned_contracts").Status)
}

func TestAuditServiceDetectsOrphanedContracts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	contract := &models.Contract{Title: "Stretch", Type: models.ContractTypeContract, CreatorID: uuid.NewString()}
	require.NoError(t, db.Create(contract).Error)

	result := NewAuditService(db, nil).Run(context.Background())
	check := findCheck(t, result, "orphaned_contracts")
	require.Equal(t, StatusWarn, check.Status)
	require.Equal(t, map[string]any{"count": int64(1)}, check.Details)
}
