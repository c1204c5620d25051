package services

import (
	"context"
	"time"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// InstanceFilter narrows obligation instance queries. Zero values are ignored.
type InstanceFilter struct {
	ContractID string
	UserIDs    []string
	From       time.Time // inclusive
	To         time.Time // exclusive
}

// Repository is the persistence surface of the membership workflow. Lookups that find
// nothing return gorm.ErrRecordNotFound.
type Repository interface {
	// WithTx runs fn against a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error

	FindContract(ctx context.Context, contractID string) (*models.Contract, error)
	FindUser(ctx context.Context, userID string) (*models.User, error)
	UpdateContractCreator(ctx context.Context, contractID, creatorID string) error

	FindMembership(ctx context.Context, contractID, userID string) (*models.ContractMembership, error)
	ListMemberships(ctx context.Context, contractID string, activeOnly bool) ([]models.ContractMembership, error)
	CountActiveMembers(ctx context.Context, contractID, excludeUserID string) (int64, error)
	CreateMembership(ctx context.Context, membership *models.ContractMembership) error
	SaveMembership(ctx context.Context, membership *models.ContractMembership) error

	ListObligations(ctx context.Context, contractID string) ([]models.Obligation, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]models.ObligationInstance, error)
	CreateInstances(ctx context.Context, instances []models.ObligationInstance) error
}
