package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/metrics"
)

// ObligationInput describes one obligation template supplied at contract creation.
type ObligationInput struct {
	Title       string
	Description string
	Emoji       string
	Repeat      models.Repeat
	Days        []int
	TimesAWeek  *int
}

// CreateContractInput describes a new contract.
type CreateContractInput struct {
	Title       string
	Description string
	Type        models.ContractType
	DueDate     *time.Time
	Obligations []ObligationInput
}

// UpdateObligationInput carries the editable template fields. Nil fields are left untouched.
type UpdateObligationInput struct {
	Title       *string
	Description *string
	Emoji       *string
}

// ContractOption customises a ContractService.
type ContractOption func(*ContractService)

// WithContractClock overrides the time source.
func WithContractClock(clock func() time.Time) ContractOption {
	return func(s *ContractService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithContractLocation sets the location used to compute week windows.
func WithContractLocation(loc *time.Location) ContractOption {
	return func(s *ContractService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// ContractService manages contracts and their obligation templates.
type ContractService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
}

// NewContractService constructs a ContractService.
func NewContractService(db *gorm.DB, notifier Notifier, opts ...ContractOption) (*ContractService, error) {
	if db == nil {
		return nil, errors.New("contract service: db is required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	svc := &ContractService{
		db:       db,
		notifier: notifier,
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Create stores the contract with its obligations, gives the creator a signed membership
// and generates the creator's instances for the current week.
func (s *ContractService) Create(ctx context.Context, actor Actor, input CreateContractInput) (*models.Contract, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	contract, obligations, err := buildContract(actor.UserID, input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var generated int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Obligations", "Memberships").Create(contract).Error; err != nil {
			return fmt.Errorf("contract service: create contract: %w", err)
		}

		for i := range obligations {
			obligations[i].ContractID = contract.ID
		}
		if len(obligations) > 0 {
			if err := tx.Create(&obligations).Error; err != nil {
				return fmt.Errorf("contract service: create obligations: %w", err)
			}
		}

		membership := models.ContractMembership{
			UserID:     actor.UserID,
			ContractID: contract.ID,
			SignedAt:   &now,
			ViewedAt:   &now,
		}
		if err := tx.Omit("User").Create(&membership).Error; err != nil {
			return fmt.Errorf("contract service: create creator membership: %w", err)
		}

		var err error
		generated, err = fillWindow(ctx, &GormRepository{db: tx}, s.loc, contract, []string{actor.UserID}, WeekStart(now, s.loc))
		if err != nil {
			return fmt.Errorf("contract service: %w", err)
		}

		contract.Obligations = obligations
		contract.Memberships = []models.ContractMembership{membership}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InstancesGenerated.WithLabelValues("create").Add(float64(generated))
	return contract, nil
}

// Get returns the contract with obligations and memberships. Only users who hold a
// membership, active or not, may read it.
func (s *ContractService) Get(ctx context.Context, actor Actor, contractID string) (*models.Contract, error) {
	ctx = ensureContext(ctx)

	var contract models.Contract
	err := s.db.WithContext(ctx).
		Preload("Obligations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Memberships.User").
		First(&contract, "id = ?", strings.TrimSpace(contractID)).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract service: load contract: %w", err)
	}

	for _, m := range contract.Memberships {
		if m.UserID == actor.UserID {
			return &contract, nil
		}
	}
	return nil, ErrUnauthorized
}

// ListForUser returns the contracts in which the user is an active member, newest first.
func (s *ContractService) ListForUser(ctx context.Context, userID string) ([]models.Contract, error) {
	ctx = ensureContext(ctx)

	var contracts []models.Contract
	err := s.db.WithContext(ctx).
		Joins("JOIN contract_memberships cm ON cm.contract_id = contracts.id").
		Where("cm.user_id = ? AND cm.opt_out_on IS NULL", userID).
		Preload("Obligations").
		Preload("Memberships", "opt_out_on IS NULL").
		Order("contracts.created_at DESC").
		Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("contract service: list contracts: %w", err)
	}
	return contracts, nil
}

// Delete removes a contract with all of its obligations, memberships and instances.
// Only the creator may delete.
func (s *ContractService) Delete(ctx context.Context, actor Actor, contractID string) error {
	ctx = ensureContext(ctx)

	var (
		contract   models.Contract
		recipients []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&contract, "id = ?", strings.TrimSpace(contractID)).Error; err != nil {
			if isNotFound(err) {
				return ErrContractNotFound
			}
			return fmt.Errorf("contract service: load contract: %w", err)
		}
		if contract.CreatorID != actor.UserID {
			return ErrUnauthorized
		}

		if err := tx.Model(&models.ContractMembership{}).
			Where("contract_id = ? AND opt_out_on IS NULL AND user_id <> ?", contract.ID, actor.UserID).
			Pluck("user_id", &recipients).Error; err != nil {
			return fmt.Errorf("contract service: list members: %w", err)
		}

		for _, model := range []any{&models.ObligationInstance{}, &models.ContractMembership{}, &models.Obligation{}} {
			if err := tx.Where("contract_id = ?", contract.ID).Delete(model).Error; err != nil {
				return fmt.Errorf("contract service: delete %T: %w", model, err)
			}
		}
		if err := tx.Delete(&contract).Error; err != nil {
			return fmt.Errorf("contract service: delete contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(ctx, Notice{
		Type:         NoticeContractDeleted,
		RecipientIDs: recipients,
		Title:        contract.Title,
		Body:         "This contract was deleted by its creator",
	})
	return nil
}

// UpdateObligation edits the text fields of a template. The contract creator and the
// template author may edit.
func (s *ContractService) UpdateObligation(ctx context.Context, actor Actor, contractID, obligationID string, input UpdateObligationInput) (*models.Obligation, error) {
	ctx = ensureContext(ctx)

	contract, err := s.findContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var obligation models.Obligation
	if err := s.db.WithContext(ctx).
		First(&obligation, "id = ? AND contract_id = ?", strings.TrimSpace(obligationID), contract.ID).Error; err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("contract service: load obligation: %w", err)
	}
	if actor.UserID != contract.CreatorID && actor.UserID != obligation.UserID {
		return nil, ErrUnauthorized
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("obligation title is required")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Emoji != nil {
		updates["emoji"] = strings.TrimSpace(*input.Emoji)
	}
	if len(updates) == 0 {
		return &obligation, nil
	}

	if err := s.db.WithContext(ctx).Model(&obligation).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("contract service: update obligation: %w", err)
	}
	return &obligation, nil
}

// MarkViewed records that the actor opened the contract.
func (s *ContractService) MarkViewed(ctx context.Context, actor Actor, contractID string) error {
	ctx = ensureContext(ctx)
	now := s.now()

	result := s.db.WithContext(ctx).
		Model(&models.ContractMembership{}).
		Where("contract_id = ? AND user_id = ? AND opt_out_on IS NULL", strings.TrimSpace(contractID), actor.UserID).
		Update("viewed_at", now)
	if result.Error != nil {
		return fmt.Errorf("contract service: mark viewed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.findContract(ctx, contractID); err != nil {
			return err
		}
		return ErrUnauthorized
	}
	return nil
}

// Nudge sends a reminder from the actor to another active member of the contract.
func (s *ContractService) Nudge(ctx context.Context, actor Actor, contractID, targetUserID string) error {
	ctx = ensureContext(ctx)

	contract, err := s.findContract(ctx, contractID)
	if err != nil {
		return err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" || targetUserID == actor.UserID {
		return apperrors.NewBadRequest("nudge target must be another member")
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ContractMembership{}).
		Where("contract_id = ? AND user_id IN ? AND opt_out_on IS NULL", contract.ID, []string{actor.UserID, targetUserID}).
		Count(&count).Error; err != nil {
		return fmt.Errorf("contract service: check members: %w", err)
	}
	if count != 2 {
		return ErrUnauthorized
	}

	var sender models.User
	name := "Your partner"
	if err := s.db.WithContext(ctx).Select("id", "display_name").First(&sender, "id = ?", actor.UserID).Error; err == nil && sender.DisplayName != "" {
		name = sender.DisplayName
	}

	s.notifier.Notify(ctx, Notice{
		Type:         NoticeNudge,
		ContractID:   contract.ID,
		RecipientIDs: []string{targetUserID},
		Title:        contract.Title,
		Body:         fmt.Sprintf("%s nudged you to keep your promise", name),
	})
	return nil
}

func (s *ContractService) findContract(ctx context.Context, contractID string) (*models.Contract, error) {
	var contract models.Contract
	if err := s.db.WithContext(ctx).First(&contract, "id = ?", strings.TrimSpace(contractID)).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract service: load contract: %w", err)
	}
	return &contract, nil
}

func buildContract(creatorID string, input CreateContractInput) (*models.Contract, []models.Obligation, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, nil, apperrors.NewBadRequest("contract title is required")
	}

	contractType := input.Type
	if contractType == "" {
		contractType = models.ContractTypeContract
	}
	if !contractType.Valid() {
		return nil, nil, apperrors.NewBadRequest("unknown contract type")
	}

	obligations := make([]models.Obligation, 0, len(input.Obligations))
	for i, in := range input.Obligations {
		obligation, err := buildObligation(creatorID, in)
		if err != nil {
			return nil, nil, apperrors.NewBadRequest(fmt.Sprintf("obligation %d: %s", i+1, err.Error()))
		}
		obligations = append(obligations, obligation)
	}

	contract := &models.Contract{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Type:        contractType,
		CreatorID:   creatorID,
		DueDate:     input.DueDate,
	}
	return contract, obligations, nil
}

func buildObligation(authorID string, in ObligationInput) (models.Obligation, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Obligation{}, errors.New("title is required")
	}

	days, err := normaliseWeekdays(in.Days)
	if err != nil {
		return models.Obligation{}, err
	}

	switch in.Repeat {
	case models.RepeatWeekly:
		if len(days) == 0 {
			return models.Obligation{}, errors.New("weekly obligations need at least one day")
		}
	case models.RepeatDaily:
	default:
		return models.Obligation{}, fmt.Errorf("unknown repeat %q", in.Repeat)
	}

	if in.TimesAWeek != nil && (*in.TimesAWeek < 1 || *in.TimesAWeek > WindowDays) {
		return models.Obligation{}, errors.New("times a week must be between 1 and 7")
	}

	return models.Obligation{
		UserID:      authorID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Emoji:       strings.TrimSpace(in.Emoji),
		Repeat:      in.Repeat,
		Days:        datatypes.JSONSlice[int](days),
		TimesAWeek:  in.TimesAWeek,
	}, nil
}

func normaliseWeekdays(days []int) ([]int, error) {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, day := range days {
		if day < int(time.Sunday) || day > int(time.Saturday) {
			return nil, fmt.Errorf("weekday %d out of range", day)
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	return out, nil
}
