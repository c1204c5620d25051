package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/pinkypartner/pinkypartner/pkg/errors"
)

func TestErrorRendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.New("USER_NOT_PREMIUM", "Contract creator is not premium", http.StatusPaymentRequired))

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var payload Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "USER_NOT_PREMIUM", payload.Error.Code)
}

func TestErrorHidesInternalCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, errors.New("pq: relation does not exist"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "relation")
}

func TestSuccessWithMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessWithMeta(c, http.StatusOK, []string{"a"}, &Meta{Page: 1, PerPage: 10, Total: 1, TotalPages: 1})

	var payload Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Equal(t, 1, payload.Meta.Total)
}

func TestErrorRendersValidationFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.NewValidation("email is required", map[string]string{"email": "email is required"}))

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"success":false,"error":{"code":"BAD_REQUEST","message":"email is required","fields":{"email":"email is required"}}}`, w.Body.String())
}
