package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithInternalKeepsIdentity(t *testing.T) {
	cause := stdErrors.New("db down")
	wrapped := ErrNotFound.WithInternal(cause)

	require.ErrorIs(t, wrapped, ErrNotFound)
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "Resource not found: db down", wrapped.Error())
	require.Nil(t, ErrNotFound.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	domain := New("CONTRACT_FULL", "Contract is full", http.StatusConflict)
	got := FromError(fmt.Errorf("membership: %w", domain))
	require.Equal(t, "CONTRACT_FULL", got.Code)
	require.Equal(t, http.StatusConflict, got.StatusCode)

	generic := FromError(stdErrors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.EqualError(t, generic.Unwrap(), "boom")
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("title is required")
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.ErrorIs(t, err, ErrBadRequest)
	require.NotErrorIs(t, err, ErrConflict)
}

func TestNewValidationCarriesFields(t *testing.T) {
	err := NewValidation("title is required", map[string]string{"title": "title is required"})
	require.ErrorIs(t, err, ErrBadRequest)
	require.Equal(t, "title is required", err.Fields["title"])

	require.Nil(t, NewValidation("bad", nil).Fields)
}
