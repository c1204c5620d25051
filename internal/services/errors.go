package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/pinkypartner/pinkypartner/pkg/errors"
)

var (
	// ErrContractNotFound indicates the referenced contract does not exist.
	ErrContractNotFound = apperrors.New("CONTRACT_NOT_FOUND", "Contract not found", http.StatusNotFound)
	// ErrContractExistsForUser is returned when a user joins a contract they are already active in.
	ErrContractExistsForUser = apperrors.New("CONTRACT_EXISTS_FOR_USER", "You are already a member of this contract", http.StatusConflict)
	// ErrContractFull is returned when a premium creator's contract reached its hard member cap.
	ErrContractFull = apperrors.New("CONTRACT_FULL", "Contract has reached its member limit", http.StatusConflict)
	// ErrUserNotPremium is returned when a free creator's contract has no free seat left.
	ErrUserNotPremium = apperrors.New("USER_NOT_PREMIUM", "The contract creator needs a premium plan to add more partners", http.StatusPaymentRequired)
	// ErrUnauthorized is returned when the caller is not an active party of the contract or instance.
	ErrUnauthorized = apperrors.New("UNAUTHORIZED_PARTY", "You are not a party to this contract", http.StatusForbidden)
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrInstanceNotFound indicates the requested obligation instance does not exist.
	ErrInstanceNotFound = apperrors.New("INSTANCE_NOT_FOUND", "Obligation instance not found", http.StatusNotFound)
	// ErrEmailTaken is returned when signing up with an email that already has an account.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "An account with this email already exists", http.StatusConflict)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// resultLabel maps an outcome onto a low-cardinality metric label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
