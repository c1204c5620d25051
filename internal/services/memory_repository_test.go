package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// memoryRepository is an in-process Repository used by workflow unit tests. WithTx restores
// the previous state when fn fails.
type memoryRepository struct {
	mu          sync.Mutex
	contracts   map[string]models.Contract
	users       map[string]models.User
	memberships []models.ContractMembership
	obligations []models.Obligation
	instances   []models.ObligationInstance

	createInstancesErr error
	clock              time.Time
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		contracts: make(map[string]models.Contract),
		users:     make(map[string]models.User),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryRepository) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryRepository) addUser(id string, tier models.PaidTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = models.User{BaseModel: models.BaseModel{ID: id}, DisplayName: id, Tier: tier}
}

func (r *memoryRepository) setTier(id string, tier models.PaidTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.Tier = tier
	r.users[id] = u
}

func (r *memoryRepository) addContract(contract models.Contract, obligations ...models.Obligation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[contract.ID] = contract
	for _, o := range obligations {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		o.ContractID = contract.ID
		o.CreatedAt = r.tick()
		r.obligations = append(r.obligations, o)
	}
	signed := r.clock
	r.memberships = append(r.memberships, models.ContractMembership{
		BaseModel:  models.BaseModel{ID: uuid.NewString(), CreatedAt: r.tick()},
		UserID:     contract.CreatorID,
		ContractID: contract.ID,
		SignedAt:   &signed,
	})
}

func (r *memoryRepository) membershipRows(contractID string) []models.ContractMembership {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ContractMembership
	for _, m := range r.memberships {
		if m.ContractID == contractID {
			out = append(out, m)
		}
	}
	return out
}

func (r *memoryRepository) instancesFor(userID string) []models.ObligationInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ObligationInstance
	for _, i := range r.instances {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DueDate.Before(out[b].DueDate) })
	return out
}

func (r *memoryRepository) WithTx(_ context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	contracts := make(map[string]models.Contract, len(r.contracts))
	for k, v := range r.contracts {
		contracts[k] = v
	}
	memberships := append([]models.ContractMembership(nil), r.memberships...)
	instances := append([]models.ObligationInstance(nil), r.instances...)
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.contracts, r.memberships, r.instances = contracts, memberships, instances
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepository) FindContract(_ context.Context, contractID string) (*models.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *memoryRepository) FindUser(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memoryRepository) UpdateContractCreator(_ context.Context, contractID, creatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.contracts[contractID]
	c.CreatorID = creatorID
	r.contracts[contractID] = c
	return nil
}

func (r *memoryRepository) FindMembership(_ context.Context, contractID, userID string) (*models.ContractMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.ContractID == contractID && m.UserID == userID {
			copied := m
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryRepository) ListMemberships(_ context.Context, contractID string, activeOnly bool) ([]models.ContractMembership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ContractMembership
	for _, m := range r.memberships {
		if m.ContractID != contractID || (activeOnly && !m.Active()) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepository) CountActiveMembers(_ context.Context, contractID, excludeUserID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.memberships {
		if m.ContractID == contractID && m.Active() && m.UserID != excludeUserID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CreateMembership(_ context.Context, membership *models.ContractMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.ContractID == membership.ContractID && m.UserID == membership.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	membership.ID = uuid.NewString()
	membership.CreatedAt = r.tick()
	r.memberships = append(r.memberships, *membership)
	return nil
}

func (r *memoryRepository) SaveMembership(_ context.Context, membership *models.ContractMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.memberships {
		if m.ID == membership.ID {
			r.memberships[i] = *membership
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memoryRepository) ListObligations(_ context.Context, contractID string) ([]models.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Obligation
	for _, o := range r.obligations {
		if o.ContractID == contractID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepository) ListInstances(_ context.Context, filter InstanceFilter) ([]models.ObligationInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make(map[string]struct{}, len(filter.UserIDs))
	for _, id := range filter.UserIDs {
		users[id] = struct{}{}
	}
	var out []models.ObligationInstance
	for _, i := range r.instances {
		if filter.ContractID != "" && i.ContractID != filter.ContractID {
			continue
		}
		if _, ok := users[i.UserID]; len(users) > 0 && !ok {
			continue
		}
		if !filter.From.IsZero() && i.DueDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !i.DueDate.Before(filter.To) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (r *memoryRepository) CreateInstances(_ context.Context, instances []models.ObligationInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createInstancesErr != nil {
		return r.createInstancesErr
	}
	for _, i := range instances {
		i.ID = uuid.NewString()
		r.instances = append(r.instances, i)
	}
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) ofType(noticeType string) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notice
	for _, notice := range n.notices {
		if notice.Type == noticeType {
			out = append(out, notice)
		}
	}
	return out
}

var _ Repository = (*memoryRepository)(nil)
