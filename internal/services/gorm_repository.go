package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

const instanceBatchSize = 200

// GormRepository implements Repository on top of gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a gorm backed Repository.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if db == nil {
		return nil, errors.New("repository: db is required")
	}
	return &GormRepository{db: db}, nil
}

// WithTx implements Repository.
func (r *GormRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ensureContext(ctx)).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func (r *GormRepository) FindContract(ctx context.Context, contractID string) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, "id = ?", contractID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *GormRepository) FindUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepository) UpdateContractCreator(ctx context.Context, contractID, creatorID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ?", contractID).
		Update("creator_id", creatorID).Error
}

func (r *GormRepository) FindMembership(ctx context.Context, contractID, userID string) (*models.ContractMembership, error) {
	var membership models.ContractMembership
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND user_id = ?", contractID, userID).
		First(&membership).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *GormRepository) ListMemberships(ctx context.Context, contractID string, activeOnly bool) ([]models.ContractMembership, error) {
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	if activeOnly {
		query = query.Where("opt_out_on IS NULL")
	}

	var memberships []models.ContractMembership
	if err := query.Order("created_at ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *GormRepository) CountActiveMembers(ctx context.Context, contractID, excludeUserID string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ContractMembership{}).
		Where("contract_id = ? AND opt_out_on IS NULL", contractID)
	if excludeUserID != "" {
		query = query.Where("user_id <> ?", excludeUserID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormRepository) CreateMembership(ctx context.Context, membership *models.ContractMembership) error {
	return r.db.WithContext(ctx).Omit("User").Create(membership).Error
}

func (r *GormRepository) SaveMembership(ctx context.Context, membership *models.ContractMembership) error {
	return r.db.WithContext(ctx).Omit("User").Save(membership).Error
}

func (r *GormRepository) ListObligations(ctx context.Context, contractID string) ([]models.Obligation, error) {
	var obligations []models.Obligation
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&obligations).Error; err != nil {
		return nil, err
	}
	return obligations, nil
}

func (r *GormRepository) ListInstances(ctx context.Context, filter InstanceFilter) ([]models.ObligationInstance, error) {
	query := r.db.WithContext(ctx).Model(&models.ObligationInstance{})
	if filter.ContractID != "" {
		query = query.Where("contract_id = ?", filter.ContractID)
	}
	if len(filter.UserIDs) > 0 {
		query = query.Where("user_id IN ?", filter.UserIDs)
	}
	if !filter.From.IsZero() {
		query = query.Where("due_date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query = query.Where("due_date < ?", filter.To.UTC())
	}

	var instances []models.ObligationInstance
	if err := query.Order("due_date ASC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// CreateInstances stores DueDate in UTC so range filters compare consistently on every driver.
func (r *GormRepository) CreateInstances(ctx context.Context, instances []models.ObligationInstance) error {
	if len(instances) == 0 {
		return nil
	}
	for i := range instances {
		instances[i].DueDate = instances[i].DueDate.UTC()
	}
	return r.db.WithContext(ctx).Omit("Obligation").CreateInBatches(instances, instanceBatchSize).Error
}
