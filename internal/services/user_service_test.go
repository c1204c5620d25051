package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
)

func TestUserSignUpAndAuthenticate(t *testing.T) {
	db := openServiceDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpInput{Email: " Alice@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "alice", user.DisplayName)
	require.Equal(t, models.TierFree, user.Tier)
	require.Len(t, user.ReferralCode, referralCodeLength)
	require.NotEqual(t, "correct horse", user.PasswordHash)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "alice@example.com", Password: "another pass"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "correct horse"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.SignUp(ctx, SignUpInput{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	authed, err := svc.Authenticate(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserTierAndPushTokens(t *testing.T) {
	db := openServiceDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()
	user := seedUser(t, db, "carol", models.TierFree)

	require.NoError(t, svc.SetTier(ctx, user.ID, models.TierPremium))
	require.NoError(t, svc.SetTier(ctx, user.ID, models.TierPremium))
	require.ErrorIs(t, svc.SetTier(ctx, "missing", models.TierPremium), ErrUserNotFound)

	web := "web-token"
	require.NoError(t, svc.UpdatePushTokens(ctx, user.ID, PushTokensInput{Web: &web}))
	require.ErrorIs(t, svc.UpdatePushTokens(ctx, "missing", PushTokensInput{Web: &web}), ErrUserNotFound)

	loaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, models.TierPremium, loaded.Tier)
	require.Equal(t, "web-token", loaded.WebPushToken)
	require.Empty(t, loaded.MobilePushToken)

	_, err = svc.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserReferrer(t *testing.T) {
	db := openServiceDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()
	referrer := seedUser(t, db, "carol", models.TierFree)
	newbie := seedUser(t, db, "nina", models.TierFree)
	other := seedUser(t, db, "otto", models.TierFree)

	found, err := svc.FindByReferralCode(ctx, "refcarol")
	require.NoError(t, err)
	require.Equal(t, referrer.ID, found.ID)

	require.NoError(t, svc.SetReferrer(ctx, newbie.ID, referrer.ID))
	require.NoError(t, svc.SetReferrer(ctx, newbie.ID, other.ID))

	loaded, err := svc.GetByID(ctx, newbie.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ReferredByID)
	require.Equal(t, referrer.ID, *loaded.ReferredByID)
}
