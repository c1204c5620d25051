package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	preset := BaseModel{ID: "fixed"}
	require.NoError(t, preset.BeforeCreate(nil))
	require.Equal(t, "fixed", preset.ID)
}

func TestParsePaidTier(t *testing.T) {
	require.Equal(t, TierPremium, ParsePaidTier(" Premium "))
	require.Equal(t, TierFree, ParsePaidTier("free"))
	require.Equal(t, TierFree, ParsePaidTier(""))
	require.Equal(t, TierFree, ParsePaidTier("gold"))
	require.True(t, TierPremium.IsPremium())
	require.False(t, TierFree.IsPremium())
}

func TestMembershipState(t *testing.T) {
	now := time.Now()
	m := ContractMembership{}
	require.True(t, m.Active())
	require.False(t, m.Signed())

	m.SignedAt = &now
	m.OptOutOn = &now
	require.False(t, m.Active())
	require.True(t, m.Signed())
}

func TestObligationOnWeekday(t *testing.T) {
	o := Obligation{Days: []int{1, 3, 5}}
	require.True(t, o.OnWeekday(time.Monday))
	require.True(t, o.OnWeekday(time.Friday))
	require.False(t, o.OnWeekday(time.Sunday))
}

func TestInstanceKeyUsesCalendarDay(t *testing.T) {
	a := ObligationInstance{ObligationID: "o", UserID: "u", DueDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}
	b := ObligationInstance{ObligationID: "o", UserID: "u", DueDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}
	c := ObligationInstance{ObligationID: "o", UserID: "u", DueDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	require.Equal(t, a.KeyIn(time.UTC), b.KeyIn(time.UTC))
	require.NotEqual(t, a.KeyIn(time.UTC), c.KeyIn(time.UTC))

	berlin := time.FixedZone("CET", 3600)
	local := ObligationInstance{ObligationID: "o", UserID: "u", DueDate: time.Date(2024, 3, 4, 0, 0, 0, 0, berlin)}
	stored := local
	stored.DueDate = local.DueDate.UTC()
	require.Equal(t, local.KeyIn(berlin), stored.KeyIn(berlin))
	require.Equal(t, "2024-03-03", stored.KeyIn(time.UTC).Day)
	require.True(t, ContractTypeChallenge.Valid())
	require.False(t, ContractType("pact").Valid())
}
