package api

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/app"
	"github.com/pinkypartner/pinkypartner/internal/notifications"
	"github.com/pinkypartner/pinkypartner/internal/services"
)

// Services bundles the domain services shared by the router, the scheduler and the CLI.
type Services struct {
	Users         *services.UserService
	Contracts     *services.ContractService
	Membership    *services.MembershipService
	Instances     *services.InstanceService
	Notifications *services.NotificationService
	Referrals     *services.ReferralService
	Billing       *services.BillingService
	Sweeps        *services.SweepService
}

// NewServices wires every domain service against db. dispatcher delivers notifications
// outside the database and may be nil.
func NewServices(db *gorm.DB, cfg *app.Config, dispatcher notifications.Dispatcher) (*Services, error) {
	if db == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("api: config must be provided")
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	out := &Services{}

	if out.Notifications, err = services.NewNotificationService(db, dispatcher); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	var notifier services.Notifier = out.Notifications
	if !cfg.Notifications.Enabled {
		notifier = nil
	}

	if out.Users, err = services.NewUserService(db); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	repo, err := services.NewGormRepository(db)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	if out.Membership, err = services.NewMembershipService(repo, cfg.Billing.CapacityPolicy(), notifier,
		services.WithMembershipLocation(loc)); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	if out.Contracts, err = services.NewContractService(db, notifier, services.WithContractLocation(loc)); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	if out.Instances, err = services.NewInstanceService(db, notifier, services.WithInstanceLocation(loc)); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	if out.Referrals, err = services.NewReferralService(out.Users, out.Membership); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	if out.Billing, err = services.NewBillingService(out.Users, strings.TrimSpace(cfg.Billing.WebhookSecret)); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	if out.Sweeps, err = services.NewSweepService(db, notifier, loc); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	return out, nil
}
