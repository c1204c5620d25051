package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

func TestInstanceCompleteAndView(t *testing.T) {
	db := openServiceDB(t)
	ctx := context.Background()
	creator := seedUser(t, db, "carol", models.TierFree)
	partner := seedUser(t, db, "pat", models.TierFree)

	contracts, err := NewContractService(db, nil, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	contract, err := contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ContractMembership{UserID: partner.ID, ContractID: contract.ID}).Error)

	notifier := &recordingNotifier{}
	svc, err := NewInstanceService(db, notifier, WithInstanceClock(fixedClock(workflowNow)))
	require.NoError(t, err)

	week, err := svc.ListCurrentWeek(ctx, creatorActor(creator), "")
	require.NoError(t, err)
	require.Len(t, week, 3)
	require.NotNil(t, week[0].Obligation)
	target := week[0]

	_, err = svc.Complete(ctx, creatorActor(partner), target.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	done, err := svc.Complete(ctx, creatorActor(creator), target.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	responses := notifier.ofType(NoticePartnerResponse)
	require.Len(t, responses, 1)
	require.Equal(t, []string{partner.ID}, responses[0].RecipientIDs)

	again, err := svc.Complete(ctx, creatorActor(creator), target.ID)
	require.NoError(t, err)
	require.True(t, again.CompletedAt.Equal(*done.CompletedAt))
	require.Len(t, notifier.ofType(NoticePartnerResponse), 1)

	_, err = svc.MarkViewed(ctx, creatorActor(creator), target.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	viewed, err := svc.MarkViewed(ctx, creatorActor(partner), target.ID)
	require.NoError(t, err)
	require.NotNil(t, viewed.ViewedAt)

	_, err = svc.Complete(ctx, creatorActor(creator), "missing")
	require.ErrorIs(t, err, ErrInstanceNotFound)

	shared, err := svc.ListCurrentWeek(ctx, creatorActor(partner), contract.ID)
	require.NoError(t, err)
	require.Len(t, shared, 3)

	stranger := seedUser(t, db, "sam", models.TierFree)
	_, err = svc.ListCurrentWeek(ctx, creatorActor(stranger), contract.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
}
