package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

func TestCapacityPolicyFreeCreator(t *testing.T) {
	policy := DefaultCapacityPolicy()

	for _, ct := range []models.ContractType{models.ContractTypeContract, models.ContractTypeChallenge} {
		require.True(t, policy.CanAddUser(ct, 0, models.TierFree))
		require.False(t, policy.CanAddUser(ct, 1, models.TierFree))
		require.False(t, policy.CanAddUser(ct, 5, models.TierFree))
	}
}

func TestCapacityPolicyPremiumCreator(t *testing.T) {
	policy := DefaultCapacityPolicy()

	for _, count := range []int64{0, 1, 2, 100, 998} {
		require.True(t, policy.CanAddUser(models.ContractTypeContract, count, models.TierPremium), "count %d", count)
	}
	require.False(t, policy.CanAddUser(models.ContractTypeContract, 999, models.TierPremium))
}

func TestCapacityPolicyZeroValueUsesDefaults(t *testing.T) {
	var policy CapacityPolicy
	require.Equal(t, DefaultFreeMemberLimit, policy.LimitFor(models.TierFree))
	require.Equal(t, DefaultPremiumMemberLimit, policy.LimitFor(models.TierPremium))
	require.True(t, policy.CanAddUser(models.ContractTypeContract, -3, models.TierFree))
}

func TestCapacityPolicyRejectionError(t *testing.T) {
	policy := CapacityPolicy{FreeLimit: 2, PremiumLimit: 5}
	require.True(t, policy.CanAddUser(models.ContractTypeContract, 1, models.TierFree))
	require.False(t, policy.CanAddUser(models.ContractTypeContract, 5, models.TierPremium))

	require.True(t, errors.Is(policy.RejectionError(models.TierFree), ErrUserNotPremium))
	require.True(t, errors.Is(policy.RejectionError(models.TierPremium), ErrContractFull))
}
