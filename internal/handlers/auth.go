package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/pinkypartner/pinkypartner/internal/auth"
	"github.com/pinkypartner/pinkypartner/internal/middleware"
	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/metrics"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// AuthHandler manages credentials sign-up, sign-in and the current account.
type AuthHandler struct {
	users     *services.UserService
	referrals *services.ReferralService
	jwt       *iauth.JWTService
	cookies   middleware.ReferralCookieConfig
}

// NewAuthHandler wires the account endpoints. referrals may be nil to skip invite handling.
func NewAuthHandler(users *services.UserService, referrals *services.ReferralService, jwt *iauth.JWTService, cookies middleware.ReferralCookieConfig) *AuthHandler {
	return &AuthHandler{users: users, referrals: referrals, jwt: jwt, cookies: cookies}
}

type signUpRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"omitempty,max=80"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	AccessToken string                   `json:"access_token"`
	ExpiresAt   time.Time                `json:"expires_at"`
	User        *models.User             `json:"user"`
	Referral    services.ReferralContext `json:"referral"`
}

// POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.SignUp(requestContext(c), services.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(flowSignUp, "failure").Inc()
		response.Error(c, err)
		return
	}

	h.startSession(c, http.StatusCreated, user, true)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(flowLogin, "failure").Inc()
		response.Error(c, err)
		return
	}

	h.startSession(c, http.StatusOK, user, false)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(requestContext(c), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

const (
	flowSignUp = "signup"
	flowLogin  = "login"
)

func (h *AuthHandler) startSession(c *gin.Context, status int, user *models.User, newUser bool) {
	flow := flowLogin
	if newUser {
		flow = flowSignUp
	}

	token, expiresAt, err := h.jwt.Issue(iauth.SubjectFor(user))
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(flow, "failure").Inc()
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	metrics.AuthAttempts.WithLabelValues(flow, "success").Inc()

	var hints services.ReferralContext
	if h.referrals != nil {
		store := middleware.NewCookieReferralStore(c, h.cookies)
		hints = h.referrals.Consume(requestContext(c), services.Actor{UserID: user.ID, Tier: user.Tier}, store, newUser)
	}

	response.Success(c, status, sessionResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user,
		Referral:    hints,
	})
}
