package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/pinkypartner/pinkypartner/internal/database/testutil"
	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/monitoring"
	"github.com/pinkypartner/pinkypartner/internal/services"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return 0, p.err
}

func TestPruneNotifications(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -120)

	rows := []models.Notification{
		{UserID: "u1", Type: "nudge", Title: "old read", IsRead: true},
		{UserID: "u1", Type: "nudge", Title: "old unread", IsRead: false},
		{UserID: "u1", Type: "nudge", Title: "fresh read", IsRead: true},
	}
	rows[0].CreatedAt = old
	rows[1].CreatedAt = old
	rows[2].CreatedAt = now
	require.NoError(t, db.Create(&rows).Error)

	removed, err := PruneNotifications(context.Background(), db, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining []models.Notification
	require.NoError(t, db.Order("title").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	require.Equal(t, "fresh read", remaining[0].Title)
	require.Equal(t, "old unread", remaining[1].Title)

	_, err = PruneNotifications(context.Background(), nil, now)
	require.Error(t, err)
}

func TestSchedulerRunOnceAggregatesErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	purger := &countingPurger{err: errors.New("purge failed")}

	s := NewScheduler(db, nil, purger, WithNow(func() time.Time { return time.Now().UTC() }))
	err := s.RunOnce(context.Background())
	require.ErrorContains(t, err, "purge failed")
	require.Equal(t, 1, purger.calls)

	purger.err = nil
	require.NoError(t, s.RunOnce(context.Background()))
	require.Equal(t, 2, purger.calls)
}

func TestSchedulerRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sweeps, err := services.NewSweepService(db, nil, time.UTC)
	require.NoError(t, err)

	c := cron.New()
	s := NewScheduler(db, sweeps, &countingPurger{}, WithCron(c))
	require.NoError(t, s.Start())
	ctx := s.Stop()
	<-ctx.Done()

	require.Len(t, c.Entries(), 4)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sweeps, err := services.NewSweepService(db, nil, time.UTC)
	require.NoError(t, err)

	s := NewScheduler(db, sweeps, nil, WithCron(cron.New()), WithSchedules("not a spec", "", "", ""))
	require.Error(t, s.Start())
}

func TestSchedulerRunSweep(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sweeps, err := services.NewSweepService(db, nil, time.UTC)
	require.NoError(t, err)

	tracker := monitoring.NewJobTracker()
	s := NewScheduler(db, sweeps, nil, WithCron(cron.New()), WithTracker(tracker))
	s.runSweep(context.Background(), services.SweepWeeklyRollover)
	s.runSweep(context.Background(), "unknown")

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, "unknown", jobs[0].Job)
	require.Equal(t, 1, jobs[0].ConsecutiveFailures)
	require.Equal(t, services.SweepWeeklyRollover, jobs[1].Job)
	require.Zero(t, jobs[1].ConsecutiveFailures)
	require.EqualValues(t, 1, jobs[1].TotalRuns)
}

func TestSchedulerStartRegistersTrackedJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sweeps, err := services.NewSweepService(db, nil, time.UTC)
	require.NoError(t, err)

	tracker := monitoring.NewJobTracker()
	s := NewScheduler(db, sweeps, &countingPurger{}, WithCron(cron.New()), WithTracker(tracker))
	require.NoError(t, s.Start())
	<-s.Stop().Done()

	require.Len(t, tracker.Snapshot(), 4)
}
