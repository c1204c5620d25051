package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// InstanceOption customises an InstanceService.
type InstanceOption func(*InstanceService)

// WithInstanceClock overrides the time source.
func WithInstanceClock(clock func() time.Time) InstanceOption {
	return func(s *InstanceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInstanceLocation sets the location used to compute week windows.
func WithInstanceLocation(loc *time.Location) InstanceOption {
	return func(s *InstanceService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// InstanceService tracks completion of obligation instances.
type InstanceService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
}

// NewInstanceService constructs an InstanceService.
func NewInstanceService(db *gorm.DB, notifier Notifier, opts ...InstanceOption) (*InstanceService, error) {
	if db == nil {
		return nil, errors.New("instance service: db is required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	svc := &InstanceService{db: db, notifier: notifier, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// ListCurrentWeek returns the instances of the current week for the active contracts of
// the user. An empty contractID lists across contracts; otherwise the actor must be an
// active member and every member's instances of that contract are returned.
func (s *InstanceService) ListCurrentWeek(ctx context.Context, actor Actor, contractID string) ([]models.ObligationInstance, error) {
	ctx = ensureContext(ctx)
	start := WeekStart(s.now(), s.loc)
	end := start.AddDate(0, 0, WindowDays)

	query := s.db.WithContext(ctx).
		Preload("Obligation").
		Where("due_date >= ? AND due_date < ?", start.UTC(), end.UTC())

	contractID = strings.TrimSpace(contractID)
	if contractID != "" {
		if err := s.requireActiveMember(ctx, contractID, actor.UserID); err != nil {
			return nil, err
		}
		query = query.Where("contract_id = ?", contractID)
	} else {
		active := s.db.Model(&models.ContractMembership{}).
			Select("contract_id").
			Where("user_id = ? AND opt_out_on IS NULL", actor.UserID)
		query = query.Where("user_id = ? AND contract_id IN (?)", actor.UserID, active)
	}

	var instances []models.ObligationInstance
	if err := query.Order("due_date ASC").Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("instance service: list instances: %w", err)
	}
	return instances, nil
}

// Complete marks the actor's own instance as done and tells the partners. Completing twice
// keeps the first completion time.
func (s *InstanceService) Complete(ctx context.Context, actor Actor, instanceID string) (*models.ObligationInstance, error) {
	ctx = ensureContext(ctx)

	instance, err := s.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.UserID != actor.UserID {
		return nil, ErrUnauthorized
	}
	if err := s.requireActiveMember(ctx, instance.ContractID, actor.UserID); err != nil {
		return nil, err
	}
	if instance.CompletedAt != nil {
		return instance, nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(instance).Update("completed_at", now).Error; err != nil {
		return nil, fmt.Errorf("instance service: complete: %w", err)
	}
	instance.CompletedAt = &now

	s.notifyPartners(ctx, instance)
	return instance, nil
}

// MarkViewed records that a partner saw an instance. Owners cannot mark their own
// instances as viewed.
func (s *InstanceService) MarkViewed(ctx context.Context, actor Actor, instanceID string) (*models.ObligationInstance, error) {
	ctx = ensureContext(ctx)

	instance, err := s.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.UserID == actor.UserID {
		return nil, ErrUnauthorized
	}
	if err := s.requireActiveMember(ctx, instance.ContractID, actor.UserID); err != nil {
		return nil, err
	}
	if instance.ViewedAt != nil {
		return instance, nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(instance).Update("viewed_at", now).Error; err != nil {
		return nil, fmt.Errorf("instance service: mark viewed: %w", err)
	}
	instance.ViewedAt = &now
	return instance, nil
}

func (s *InstanceService) load(ctx context.Context, instanceID string) (*models.ObligationInstance, error) {
	var instance models.ObligationInstance
	if err := s.db.WithContext(ctx).
		Preload("Obligation").
		First(&instance, "id = ?", strings.TrimSpace(instanceID)).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("instance service: load instance: %w", err)
	}
	return &instance, nil
}

func (s *InstanceService) requireActiveMember(ctx context.Context, contractID, userID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ContractMembership{}).
		Where("contract_id = ? AND user_id = ? AND opt_out_on IS NULL", contractID, userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("instance service: check membership: %w", err)
	}
	if count == 0 {
		return ErrUnauthorized
	}
	return nil
}

func (s *InstanceService) notifyPartners(ctx context.Context, instance *models.ObligationInstance) {
	var partners []string
	if err := s.db.WithContext(ctx).
		Model(&models.ContractMembership{}).
		Where("contract_id = ? AND opt_out_on IS NULL AND user_id <> ?", instance.ContractID, instance.UserID).
		Pluck("user_id", &partners).Error; err != nil || len(partners) == 0 {
		return
	}

	var owner models.User
	name := "Your partner"
	if err := s.db.WithContext(ctx).Select("id", "display_name").First(&owner, "id = ?", instance.UserID).Error; err == nil && owner.DisplayName != "" {
		name = owner.DisplayName
	}

	title, emoji := "an obligation", ""
	if instance.Obligation != nil {
		title, emoji = instance.Obligation.Title, instance.Obligation.Emoji
	}

	s.notifier.Notify(ctx, Notice{
		Type:         NoticePartnerResponse,
		ContractID:   instance.ContractID,
		RecipientIDs: partners,
		Title:        strings.TrimSpace(emoji + " " + title),
		Body:         fmt.Sprintf("%s completed %s", name, title),
		Metadata:     map[string]any{"instance_id": instance.ID},
	})
}
