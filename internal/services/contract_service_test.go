package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

func newContractService(t *testing.T) (*ContractService, *recordingNotifier) {
	t.Helper()
	db := openServiceDB(t)
	notifier := &recordingNotifier{}
	svc, err := NewContractService(db, notifier, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	return svc, notifier
}

func TestContractCreateGivesCreatorSignedMembershipAndInstances(t *testing.T) {
	svc, _ := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)

	contract, err := svc.Create(context.Background(), creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	require.Equal(t, creator.ID, contract.CreatorID)
	require.Len(t, contract.Obligations, 1)
	require.Equal(t, creator.ID, contract.Obligations[0].UserID)

	var membership models.ContractMembership
	require.NoError(t, svc.db.First(&membership, "contract_id = ? AND user_id = ?", contract.ID, creator.ID).Error)
	require.NotNil(t, membership.SignedAt)
	require.Nil(t, membership.OptOutOn)

	require.EqualValues(t, 3, countRows(t, svc.db, &models.ObligationInstance{}, "user_id = ?", creator.ID))
}

func TestContractCreateValidation(t *testing.T) {
	svc, _ := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)
	ctx := context.Background()

	_, err := svc.Create(ctx, creatorActor(creator), CreateContractInput{})
	require.ErrorContains(t, err, "title")

	input := gymContractInput()
	input.Type = "pact"
	_, err = svc.Create(ctx, creatorActor(creator), input)
	require.ErrorContains(t, err, "contract type")

	input = gymContractInput()
	input.Obligations[0].Days = nil
	_, err = svc.Create(ctx, creatorActor(creator), input)
	require.ErrorContains(t, err, "at least one day")

	input = gymContractInput()
	input.Obligations[0].Days = []int{7}
	_, err = svc.Create(ctx, creatorActor(creator), input)
	require.ErrorContains(t, err, "out of range")

	bad := 9
	input = gymContractInput()
	input.Obligations[0].Repeat = models.RepeatDaily
	input.Obligations[0].TimesAWeek = &bad
	_, err = svc.Create(ctx, creatorActor(creator), input)
	require.ErrorContains(t, err, "times a week")

	require.EqualValues(t, 0, countRows(t, svc.db, &models.Contract{}, "1 = 1"))
}

func TestContractGetIsLimitedToParties(t *testing.T) {
	svc, _ := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)
	stranger := seedUser(t, svc.db, "sam", models.TierFree)
	ctx := context.Background()

	contract, err := svc.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)

	loaded, err := svc.Get(ctx, creatorActor(creator), contract.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Memberships, 1)
	require.NotNil(t, loaded.Memberships[0].User)

	_, err = svc.Get(ctx, creatorActor(stranger), contract.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Get(ctx, creatorActor(creator), "missing")
	require.ErrorIs(t, err, ErrContractNotFound)

	mine, err := svc.ListForUser(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	theirs, err := svc.ListForUser(ctx, stranger.ID)
	require.NoError(t, err)
	require.Empty(t, theirs)
}

func TestContractDeleteCascades(t *testing.T) {
	svc, notifier := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)
	partner := seedUser(t, svc.db, "pat", models.TierFree)
	ctx := context.Background()

	contract, err := svc.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	require.NoError(t, svc.db.Create(&models.ContractMembership{UserID: partner.ID, ContractID: contract.ID}).Error)

	require.ErrorIs(t, svc.Delete(ctx, creatorActor(partner), contract.ID), ErrUnauthorized)
	require.NoError(t, svc.Delete(ctx, creatorActor(creator), contract.ID))

	for _, model := range []any{&models.Contract{}, &models.Obligation{}, &models.ContractMembership{}, &models.ObligationInstance{}} {
		require.EqualValues(t, 0, countRows(t, svc.db, model, "1 = 1"), "%T", model)
	}

	deleted := notifier.ofType(NoticeContractDeleted)
	require.Len(t, deleted, 1)
	require.Equal(t, []string{partner.ID}, deleted[0].RecipientIDs)

	require.ErrorIs(t, svc.Delete(ctx, creatorActor(creator), contract.ID), ErrContractNotFound)
}

func TestContractUpdateObligationText(t *testing.T) {
	svc, _ := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)
	stranger := seedUser(t, svc.db, "sam", models.TierFree)
	ctx := context.Background()

	contract, err := svc.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	obligationID := contract.Obligations[0].ID

	title := "Lift heavy"
	updated, err := svc.UpdateObligation(ctx, creatorActor(creator), contract.ID, obligationID, UpdateObligationInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Lift heavy", updated.Title)
	require.Equal(t, models.RepeatWeekly, updated.Repeat)

	_, err = svc.UpdateObligation(ctx, creatorActor(stranger), contract.ID, obligationID, UpdateObligationInput{Title: &title})
	require.ErrorIs(t, err, ErrUnauthorized)

	empty := " "
	_, err = svc.UpdateObligation(ctx, creatorActor(creator), contract.ID, obligationID, UpdateObligationInput{Title: &empty})
	require.Error(t, err)
}

func TestContractNudgeAndView(t *testing.T) {
	svc, notifier := newContractService(t)
	creator := seedUser(t, svc.db, "carol", models.TierFree)
	partner := seedUser(t, svc.db, "pat", models.TierFree)
	stranger := seedUser(t, svc.db, "sam", models.TierFree)
	ctx := context.Background()

	contract, err := svc.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	require.NoError(t, svc.db.Create(&models.ContractMembership{UserID: partner.ID, ContractID: contract.ID}).Error)

	require.NoError(t, svc.Nudge(ctx, creatorActor(creator), contract.ID, partner.ID))
	nudges := notifier.ofType(NoticeNudge)
	require.Len(t, nudges, 1)
	require.Equal(t, []string{partner.ID}, nudges[0].RecipientIDs)
	require.Contains(t, nudges[0].Body, "carol")

	require.ErrorIs(t, svc.Nudge(ctx, creatorActor(creator), contract.ID, stranger.ID), ErrUnauthorized)
	require.Error(t, svc.Nudge(ctx, creatorActor(creator), contract.ID, creator.ID))

	require.NoError(t, svc.MarkViewed(ctx, creatorActor(partner), contract.ID))
	require.ErrorIs(t, svc.MarkViewed(ctx, creatorActor(stranger), contract.ID), ErrUnauthorized)
	require.ErrorIs(t, svc.MarkViewed(ctx, creatorActor(stranger), "missing"), ErrContractNotFound)
}
