package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinkypartner/pinkypartner/internal/models"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
	"github.com/pinkypartner/pinkypartner/pkg/metrics"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID string
	Tier   models.PaidTier
}

// MembershipOption customises a MembershipService.
type MembershipOption func(*MembershipService)

// WithMembershipClock overrides the time source.
func WithMembershipClock(clock func() time.Time) MembershipOption {
	return func(s *MembershipService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMembershipLocation sets the location used to compute week windows.
func WithMembershipLocation(loc *time.Location) MembershipOption {
	return func(s *MembershipService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// MembershipService runs the join, sign and opt-out transitions of contract memberships.
type MembershipService struct {
	repo     Repository
	policy   CapacityPolicy
	notifier Notifier
	now      func() time.Time
	loc      *time.Location
	log      *zap.Logger
}

// NewMembershipService constructs a MembershipService. A nil notifier disables notifications.
func NewMembershipService(repo Repository, policy CapacityPolicy, notifier Notifier, opts ...MembershipOption) (*MembershipService, error) {
	if repo == nil {
		return nil, errors.New("membership service: repository is required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	svc := &MembershipService{
		repo:     repo,
		policy:   policy,
		notifier: notifier,
		now:      time.Now,
		loc:      time.UTC,
		log:      logger.WithModule("membership"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Join makes the actor an active, unsigned member of the contract and generates their
// instances for the current week. An opted-out membership is reactivated in place.
func (s *MembershipService) Join(ctx context.Context, actor Actor, contractID string) (*models.ContractMembership, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(actor.UserID)
	contractID = strings.TrimSpace(contractID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var (
		membership *models.ContractMembership
		contract   *models.Contract
		generated  int
	)

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		var err error
		contract, err = loadContract(ctx, repo, contractID)
		if err != nil {
			return err
		}

		existing, err := repo.FindMembership(ctx, contract.ID, userID)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("membership service: load membership: %w", err)
		}
		if existing != nil && existing.Active() {
			return ErrContractExistsForUser
		}

		if userID != contract.CreatorID {
			tier, err := s.creatorTier(ctx, repo, contract)
			if err != nil {
				return err
			}
			count, err := repo.CountActiveMembers(ctx, contract.ID, contract.CreatorID)
			if err != nil {
				return fmt.Errorf("membership service: count members: %w", err)
			}
			if !s.policy.CanAddUser(contract.Type, count, tier) {
				return s.policy.RejectionError(tier)
			}
		}

		now := s.now()
		if existing != nil {
			existing.OptOutOn = nil
			existing.SignedAt = nil
			if userID == contract.CreatorID {
				existing.SignedAt = &now
			}
			if err := repo.SaveMembership(ctx, existing); err != nil {
				return fmt.Errorf("membership service: reactivate membership: %w", err)
			}
			membership = existing
		} else {
			membership = &models.ContractMembership{UserID: userID, ContractID: contract.ID}
			if err := repo.CreateMembership(ctx, membership); err != nil {
				if isUniqueConstraintError(err) {
					return ErrContractExistsForUser
				}
				return fmt.Errorf("membership service: create membership: %w", err)
			}
		}

		generated, err = fillWindow(ctx, repo, s.loc, contract, []string{userID}, WeekStart(now, s.loc))
		if err != nil {
			return fmt.Errorf("membership service: %w", err)
		}
		return nil
	})
	metrics.MembershipTransitions.WithLabelValues("join", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.InstancesGenerated.WithLabelValues("join").Add(float64(generated))

	if contract.CreatorID != userID {
		name := s.displayName(ctx, userID)
		s.notifier.Notify(ctx, Notice{
			Type:         NoticeMemberJoined,
			ContractID:   contract.ID,
			RecipientIDs: []string{contract.CreatorID},
			Title:        contract.Title,
			Body:         fmt.Sprintf("%s joined your contract", name),
		})
	}

	return membership, nil
}

// Sign records the actor's signature. Signing an already signed membership is a no-op.
func (s *MembershipService) Sign(ctx context.Context, actor Actor, contractID string) (*models.ContractMembership, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	contract, err := loadContract(ctx, s.repo, strings.TrimSpace(contractID))
	if err != nil {
		metrics.MembershipTransitions.WithLabelValues("sign", resultLabel(err)).Inc()
		return nil, err
	}

	membership, err := s.activeMembership(ctx, s.repo, contract.ID, userID)
	if err != nil {
		metrics.MembershipTransitions.WithLabelValues("sign", resultLabel(err)).Inc()
		return nil, err
	}
	if membership.Signed() {
		return membership, nil
	}

	now := s.now()
	membership.SignedAt = &now
	if err := s.repo.SaveMembership(ctx, membership); err != nil {
		err = fmt.Errorf("membership service: sign membership: %w", err)
		metrics.MembershipTransitions.WithLabelValues("sign", resultLabel(err)).Inc()
		return nil, err
	}
	metrics.MembershipTransitions.WithLabelValues("sign", "ok").Inc()

	s.notifyMembers(ctx, contract, userID, NoticeMemberSigned, "%s signed the contract")
	return membership, nil
}

// OptOut deactivates the actor's membership. Instances are kept. When the creator leaves,
// ownership moves to the longest-signed remaining member, if any.
func (s *MembershipService) OptOut(ctx context.Context, actor Actor, contractID string) (*models.ContractMembership, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var (
		membership *models.ContractMembership
		contract   *models.Contract
	)
	err := s.repo.WithTx(ctx, func(repo Repository) error {
		var err error
		contract, err = loadContract(ctx, repo, strings.TrimSpace(contractID))
		if err != nil {
			return err
		}

		membership, err = s.activeMembership(ctx, repo, contract.ID, userID)
		if err != nil {
			return err
		}

		now := s.now()
		membership.OptOutOn = &now
		if err := repo.SaveMembership(ctx, membership); err != nil {
			return fmt.Errorf("membership service: opt out: %w", err)
		}

		if contract.CreatorID != userID {
			return nil
		}

		remaining, err := repo.ListMemberships(ctx, contract.ID, true)
		if err != nil {
			return fmt.Errorf("membership service: list members: %w", err)
		}
		if successor := nextCreator(remaining, userID); successor != nil {
			if err := repo.UpdateContractCreator(ctx, contract.ID, successor.UserID); err != nil {
				return fmt.Errorf("membership service: transfer ownership: %w", err)
			}
			contract.CreatorID = successor.UserID
		}
		return nil
	})
	metrics.MembershipTransitions.WithLabelValues("opt_out", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.notifyMembers(ctx, contract, userID, NoticeMemberOptedOut, "%s left the contract")
	return membership, nil
}

func (s *MembershipService) creatorTier(ctx context.Context, repo Repository, contract *models.Contract) (models.PaidTier, error) {
	creator, err := repo.FindUser(ctx, contract.CreatorID)
	if err != nil {
		if isNotFound(err) {
			return models.TierFree, nil
		}
		return "", fmt.Errorf("membership service: load creator: %w", err)
	}
	return models.ParsePaidTier(string(creator.Tier)), nil
}

func (s *MembershipService) activeMembership(ctx context.Context, repo Repository, contractID, userID string) (*models.ContractMembership, error) {
	membership, err := repo.FindMembership(ctx, contractID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("membership service: load membership: %w", err)
	}
	if !membership.Active() {
		return nil, ErrUnauthorized
	}
	return membership, nil
}

func (s *MembershipService) notifyMembers(ctx context.Context, contract *models.Contract, actorID, noticeType, format string) {
	members, err := s.repo.ListMemberships(ctx, contract.ID, true)
	if err != nil {
		s.log.Warn("list members for notification failed",
			zap.String("contract_id", contract.ID),
			zap.Error(err),
		)
		return
	}

	recipients := make([]string, 0, len(members))
	for _, member := range members {
		if member.UserID != actorID {
			recipients = append(recipients, member.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	s.notifier.Notify(ctx, Notice{
		Type:         noticeType,
		ContractID:   contract.ID,
		RecipientIDs: recipients,
		Title:        contract.Title,
		Body:         fmt.Sprintf(format, s.displayName(ctx, actorID)),
	})
}

func (s *MembershipService) displayName(ctx context.Context, userID string) string {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil || strings.TrimSpace(user.DisplayName) == "" {
		return "Your partner"
	}
	return user.DisplayName
}

func loadContract(ctx context.Context, repo Repository, contractID string) (*models.Contract, error) {
	if contractID == "" {
		return nil, ErrContractNotFound
	}
	contract, err := repo.FindContract(ctx, contractID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("load contract: %w", err)
	}
	return contract, nil
}

// nextCreator picks the active signed member who signed first. Ties fall back to membership
// age, then user id.
func nextCreator(memberships []models.ContractMembership, leavingUserID string) *models.ContractMembership {
	candidates := make([]models.ContractMembership, 0, len(memberships))
	for _, m := range memberships {
		if m.UserID == leavingUserID || !m.Active() || !m.Signed() {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.SignedAt.Equal(*b.SignedAt) {
			return a.SignedAt.Before(*b.SignedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})
	return &candidates[0]
}
