package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

type mapReferralStore map[string]string

func (m mapReferralStore) Get(key string) string { return m[key] }
func (m mapReferralStore) Clear(key string)      { delete(m, key) }

func newReferralFixture(t *testing.T) (*ReferralService, *UserService, *ContractService) {
	t.Helper()
	db := openServiceDB(t)

	users, err := NewUserService(db)
	require.NoError(t, err)
	repo, err := NewGormRepository(db)
	require.NoError(t, err)
	membership, err := NewMembershipService(repo, DefaultCapacityPolicy(), nil, WithMembershipClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	contracts, err := NewContractService(db, nil, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)

	svc, err := NewReferralService(users, membership)
	require.NoError(t, err)
	return svc, users, contracts
}

func TestReferralResolve(t *testing.T) {
	svc, _, _ := newReferralFixture(t)

	require.True(t, svc.Resolve(nil).Empty())
	require.True(t, svc.Resolve(mapReferralStore{}).Empty())

	hints := svc.Resolve(mapReferralStore{ReferralCodeKey: " abc123 ", ContractIDKey: "k-1"})
	require.Equal(t, "ABC123", hints.ReferralCode)
	require.Equal(t, "k-1", hints.ContractID)
}

func TestReferralConsumeJoinsAndClears(t *testing.T) {
	svc, users, contracts := newReferralFixture(t)
	ctx := context.Background()

	creator := seedUser(t, users.db, "carol", models.TierFree)
	contract, err := contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	newbie := seedUser(t, users.db, "nina", models.TierFree)

	store := mapReferralStore{ReferralCodeKey: creator.ReferralCode, ContractIDKey: contract.ID}
	hints := svc.Consume(ctx, creatorActor(newbie), store, true)
	require.Equal(t, contract.ID, hints.ContractID)
	require.Empty(t, store, "referral hints are consumed once")

	require.EqualValues(t, 1, countRows(t, users.db, &models.ContractMembership{}, "contract_id = ? AND user_id = ?", contract.ID, newbie.ID))

	loaded, err := users.GetByID(ctx, newbie.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ReferredByID)
	require.Equal(t, creator.ID, *loaded.ReferredByID)

	// Replaying the same hints fails inside Join; the error is swallowed.
	replay := mapReferralStore{ContractIDKey: contract.ID}
	require.NotPanics(t, func() { svc.Consume(ctx, creatorActor(newbie), replay, false) })
	require.Empty(t, replay)
}

func TestReferralConsumeSwallowsCapacityErrors(t *testing.T) {
	svc, users, contracts := newReferralFixture(t)
	ctx := context.Background()

	creator := seedUser(t, users.db, "carol", models.TierFree)
	contract, err := contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	first := seedUser(t, users.db, "fay", models.TierFree)
	second := seedUser(t, users.db, "sid", models.TierFree)

	svc.Consume(ctx, creatorActor(first), mapReferralStore{ContractIDKey: contract.ID}, false)
	svc.Consume(ctx, creatorActor(second), mapReferralStore{ContractIDKey: contract.ID}, false)

	require.EqualValues(t, 0, countRows(t, users.db, &models.ContractMembership{}, "user_id = ?", second.ID))

	// Existing users do not get a referrer.
	svc.Consume(ctx, creatorActor(second), mapReferralStore{ReferralCodeKey: creator.ReferralCode}, false)
	loaded, err := users.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.ReferredByID)
}
