package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/pkg/metrics"
)

// Sweep job names.
const (
	SweepDailyReminders  = "daily_reminders"
	SweepContractsEnding = "contracts_ending"
	SweepWeeklyRollover  = "weekly_rollover"
)

// SweepResult summarises one batch run.
type SweepResult struct {
	Contracts int `json:"contracts"`
	Users     int `json:"users"`
	Generated int `json:"generated"`
}

// SweepService runs the externally triggered batch jobs.
type SweepService struct {
	db       *gorm.DB
	repo     *GormRepository
	notifier Notifier
	loc      *time.Location
}

// NewSweepService constructs a SweepService. loc defines calendar days and weeks.
func NewSweepService(db *gorm.DB, notifier Notifier, loc *time.Location) (*SweepService, error) {
	if db == nil {
		return nil, errors.New("sweep service: db is required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SweepService{db: db, repo: &GormRepository{db: db}, notifier: notifier, loc: loc}, nil
}

// Run dispatches a sweep by job name.
func (s *SweepService) Run(ctx context.Context, job string, now time.Time) (SweepResult, error) {
	switch job {
	case SweepDailyReminders:
		return s.DailyReminders(ctx, now)
	case SweepContractsEnding:
		return s.ContractsEnding(ctx, now)
	case SweepWeeklyRollover:
		return s.WeeklyRollover(ctx, now)
	default:
		return SweepResult{}, fmt.Errorf("sweep service: unknown job %q", job)
	}
}

// DailyReminders notifies every active member with open instances due today.
func (s *SweepService) DailyReminders(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx = ensureContext(ctx)
	day := midnight(now.In(s.loc))

	type openCount struct {
		UserID    string
		OpenCount int
	}
	var rows []openCount
	err := s.db.WithContext(ctx).
		Model(&models.ObligationInstance{}).
		Select("obligation_instances.user_id AS user_id, COUNT(*) AS open_count").
		Joins("JOIN contract_memberships cm ON cm.contract_id = obligation_instances.contract_id AND cm.user_id = obligation_instances.user_id").
		Where("cm.opt_out_on IS NULL AND obligation_instances.completed_at IS NULL").
		Where("obligation_instances.due_date >= ? AND obligation_instances.due_date < ?", day.UTC(), day.AddDate(0, 0, 1).UTC()).
		Group("obligation_instances.user_id").
		Scan(&rows).Error
	s.record(SweepDailyReminders, err)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep service: open instances: %w", err)
	}

	for _, row := range rows {
		s.notifier.Notify(ctx, Notice{
			Type:         NoticeDailyReminder,
			RecipientIDs: []string{row.UserID},
			Title:        "Keep your promises",
			Body:         fmt.Sprintf("You have %d obligation%s left today", row.OpenCount, plural(row.OpenCount)),
		})
	}
	return SweepResult{Users: len(rows)}, nil
}

// ContractsEnding notifies members of contracts whose due date is tomorrow.
func (s *SweepService) ContractsEnding(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx = ensureContext(ctx)
	tomorrow := midnight(now.In(s.loc)).AddDate(0, 0, 1)

	var contracts []models.Contract
	err := s.db.WithContext(ctx).
		Preload("Memberships", "opt_out_on IS NULL").
		Where("due_date >= ? AND due_date < ?", tomorrow.UTC(), tomorrow.AddDate(0, 0, 1).UTC()).
		Find(&contracts).Error
	s.record(SweepContractsEnding, err)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep service: ending contracts: %w", err)
	}

	result := SweepResult{Contracts: len(contracts)}
	for _, contract := range contracts {
		recipients := make([]string, 0, len(contract.Memberships))
		for _, m := range contract.Memberships {
			recipients = append(recipients, m.UserID)
		}
		result.Users += len(recipients)
		s.notifier.Notify(ctx, Notice{
			Type:         NoticeContractEnding,
			ContractID:   contract.ID,
			RecipientIDs: recipients,
			Title:        contract.Title,
			Body:         "This contract ends tomorrow",
		})
	}
	return result, nil
}

// WeeklyRollover generates the instances of the week containing now for every active member
// of every running contract. Already present instances are left alone, so reruns are safe.
func (s *SweepService) WeeklyRollover(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx = ensureContext(ctx)
	start := WeekStart(now, s.loc)

	var contracts []models.Contract
	err := s.db.WithContext(ctx).
		Preload("Memberships", "opt_out_on IS NULL").
		Where("due_date IS NULL OR due_date >= ?", start.UTC()).
		Find(&contracts).Error
	if err != nil {
		s.record(SweepWeeklyRollover, err)
		return SweepResult{}, fmt.Errorf("sweep service: running contracts: %w", err)
	}

	var (
		result SweepResult
		errs   error
	)
	for i := range contracts {
		contract := &contracts[i]
		userIDs := make([]string, 0, len(contract.Memberships))
		for _, m := range contract.Memberships {
			userIDs = append(userIDs, m.UserID)
		}
		if len(userIDs) == 0 {
			continue
		}

		var generated int
		err := s.repo.WithTx(ctx, func(repo Repository) error {
			var err error
			generated, err = fillWindow(ctx, repo, s.loc, contract, userIDs, start)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("contract %s: %w", contract.ID, err))
			continue
		}
		result.Contracts++
		result.Users += len(userIDs)
		result.Generated += generated
	}

	metrics.InstancesGenerated.WithLabelValues("rollover").Add(float64(result.Generated))
	s.record(SweepWeeklyRollover, errs)
	if errs != nil {
		return result, fmt.Errorf("sweep service: rollover: %w", errs)
	}
	return result, nil
}

func (s *SweepService) record(job string, err error) {
	metrics.SweepRuns.WithLabelValues(job, resultLabel(err)).Inc()
}
