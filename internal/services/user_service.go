package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/pkg/crypto"
	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
)

const (
	referralCodeLength   = 8
	referralCodeAttempts = 5
	minPasswordLength    = 8
)

// SignUpInput describes a credentials sign-up.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// PushTokensInput carries push destinations. Nil fields are left untouched, empty strings clear.
type PushTokensInput struct {
	Web    *string
	Mobile *string
}

// UserService manages accounts, credentials, tiers and push tokens.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// SignUp creates a free account with a hashed password and a unique referral code.
func (s *UserService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("user service: check email: %w", err)
	}
	if exists > 0 {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hashed,
		Tier:         models.TierFree,
	}

	// Referral codes are short; retry on the rare collision.
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := crypto.GenerateReferralCode(referralCodeLength)
		if err != nil {
			return nil, fmt.Errorf("user service: referral code: %w", err)
		}
		user.ID = ""
		user.ReferralCode = code

		err = s.db.WithContext(ctx).Create(user).Error
		if err == nil {
			return user, nil
		}
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("user service: create user: %w", err)
		}
		if strings.Contains(strings.ToLower(err.Error()), "email") {
			return nil, ErrEmailTaken
		}
	}
	return nil, errors.New("user service: could not allocate a referral code")
}

// Authenticate verifies credentials and returns the account.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	if !crypto.VerifyPassword(user.PasswordHash, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return &user, nil
}

// GetByID fetches a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// FindByReferralCode resolves a referral code to its owner.
func (s *UserService) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrUserNotFound
	}
	var user models.User
	if err := s.db.WithContext(ensureContext(ctx)).First(&user, "referral_code = ?", code).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: find referral code: %w", err)
	}
	return &user, nil
}

// SetReferrer records who referred the user. An existing referrer is kept.
func (s *UserService) SetReferrer(ctx context.Context, userID, referrerID string) error {
	if userID == referrerID {
		return nil
	}
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.User{}).
		Where("id = ? AND referred_by_id IS NULL", userID).
		Update("referred_by_id", referrerID).Error; err != nil {
		return fmt.Errorf("user service: set referrer: %w", err)
	}
	return nil
}

// SetTier changes the paid tier of a user.
func (s *UserService) SetTier(ctx context.Context, userID string, tier models.PaidTier) error {
	ctx = ensureContext(ctx)
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("tier", models.ParsePaidTier(string(tier))).Error; err != nil {
		return fmt.Errorf("user service: set tier: %w", err)
	}
	return nil
}

// UpdatePushTokens stores the browser and mobile push tokens of a user.
func (s *UserService) UpdatePushTokens(ctx context.Context, userID string, input PushTokensInput) error {
	updates := map[string]any{}
	if input.Web != nil {
		updates["web_push_token"] = strings.TrimSpace(*input.Web)
	}
	if input.Mobile != nil {
		updates["mobile_push_token"] = strings.TrimSpace(*input.Mobile)
	}
	if len(updates) == 0 {
		return nil
	}

	ctx = ensureContext(ctx)
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("user service: update push tokens: %w", err)
	}
	return nil
}

func (s *UserService) requireUser(ctx context.Context, userID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("user service: check user: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
