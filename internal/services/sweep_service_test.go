package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

func TestSweepDailyReminders(t *testing.T) {
	db := openServiceDB(t)
	ctx := context.Background()
	creator := seedUser(t, db, "carol", models.TierFree)

	contracts, err := NewContractService(db, nil, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	_, err = contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc, err := NewSweepService(db, notifier, time.UTC)
	require.NoError(t, err)

	// Wednesday has one open instance.
	result, err := svc.DailyReminders(ctx, workflowNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Users)
	reminders := notifier.ofType(NoticeDailyReminder)
	require.Len(t, reminders, 1)
	require.Equal(t, []string{creator.ID}, reminders[0].RecipientIDs)
	require.Contains(t, reminders[0].Body, "1 obligation left")

	// Thursday has none.
	result, err = svc.DailyReminders(ctx, workflowNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Zero(t, result.Users)
}

func TestSweepContractsEnding(t *testing.T) {
	db := openServiceDB(t)
	ctx := context.Background()
	creator := seedUser(t, db, "carol", models.TierFree)

	contracts, err := NewContractService(db, nil, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	due := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	input := gymContractInput()
	input.DueDate = &due
	contract, err := contracts.Create(ctx, creatorActor(creator), input)
	require.NoError(t, err)
	_, err = contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc, err := NewSweepService(db, notifier, nil)
	require.NoError(t, err)

	result, err := svc.Run(ctx, SweepContractsEnding, workflowNow)
	require.NoError(t, err)
	require.Equal(t, 1, result.Contracts)
	ending := notifier.ofType(NoticeContractEnding)
	require.Len(t, ending, 1)
	require.Equal(t, contract.ID, ending[0].ContractID)

	_, err = svc.Run(ctx, "nope", workflowNow)
	require.Error(t, err)
}

func TestSweepWeeklyRolloverIsIdempotent(t *testing.T) {
	db := openServiceDB(t)
	ctx := context.Background()
	creator := seedUser(t, db, "carol", models.TierFree)
	partner := seedUser(t, db, "pat", models.TierFree)
	leaver := seedUser(t, db, "lee", models.TierFree)

	contracts, err := NewContractService(db, nil, WithContractClock(fixedClock(workflowNow)))
	require.NoError(t, err)
	contract, err := contracts.Create(ctx, creatorActor(creator), gymContractInput())
	require.NoError(t, err)
	optedOut := workflowNow
	require.NoError(t, db.Create(&models.ContractMembership{UserID: partner.ID, ContractID: contract.ID}).Error)
	require.NoError(t, db.Create(&models.ContractMembership{UserID: leaver.ID, ContractID: contract.ID, OptOutOn: &optedOut}).Error)

	past := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ended := gymContractInput()
	ended.DueDate = &past
	_, err = contracts.Create(ctx, creatorActor(creator), ended)
	require.NoError(t, err)

	svc, err := NewSweepService(db, nil, time.UTC)
	require.NoError(t, err)

	nextWeek := workflowNow.AddDate(0, 0, 7)
	result, err := svc.WeeklyRollover(ctx, nextWeek)
	require.NoError(t, err)
	require.Equal(t, 1, result.Contracts)
	require.Equal(t, 6, result.Generated)

	again, err := svc.WeeklyRollover(ctx, nextWeek)
	require.NoError(t, err)
	require.Zero(t, again.Generated)

	require.EqualValues(t, 3+3, countRows(t, db, &models.ObligationInstance{}, "user_id = ?", creator.ID))
	require.EqualValues(t, 3, countRows(t, db, &models.ObligationInstance{}, "user_id = ?", partner.ID))
	require.EqualValues(t, 0, countRows(t, db, &models.ObligationInstance{}, "user_id = ?", leaver.ID))

	// The current week only fills the gaps of the partner.
	current, err := svc.WeeklyRollover(ctx, workflowNow)
	require.NoError(t, err)
	require.Equal(t, 3, current.Generated)
}
