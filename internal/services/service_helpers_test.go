package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/database/testutil"
	"github.com/pinkypartner/pinkypartner/internal/models"
)

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedUser(t *testing.T, db *gorm.DB, name string, tier models.PaidTier) *models.User {
	t.Helper()
	user := &models.User{
		Email:        name + "@example.com",
		DisplayName:  name,
		Tier:         tier,
		ReferralCode: strings.ToUpper("REF" + name),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func creatorActor(user *models.User) Actor {
	return Actor{UserID: user.ID, Tier: user.Tier}
}

func gymContractInput() CreateContractInput {
	return CreateContractInput{
		Title: "Gym buddies",
		Type:  models.ContractTypeContract,
		Obligations: []ObligationInput{{
			Title:  "Lift",
			Emoji:  "🏋",
			Repeat: models.RepeatWeekly,
			Days:   []int{1, 3, 5},
		}},
	}
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
