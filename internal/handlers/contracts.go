package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/models"
	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// ContractHandler exposes contract CRUD and the membership transitions.
type ContractHandler struct {
	contracts  *services.ContractService
	membership *services.MembershipService
}

// NewContractHandler constructs a contract handler.
func NewContractHandler(contracts *services.ContractService, membership *services.MembershipService) *ContractHandler {
	return &ContractHandler{contracts: contracts, membership: membership}
}

type obligationRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Emoji       string `json:"emoji" validate:"max=16"`
	Repeat      string `json:"repeat" validate:"required,oneof=daily weekly"`
	Days        []int  `json:"days" validate:"omitempty,weekdays"`
	TimesAWeek  *int   `json:"times_a_week" validate:"omitempty,min=1,max=7"`
}

type createContractRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=4000"`
	Type        string              `json:"type" validate:"omitempty,oneof=contract challenge"`
	DueDate     *time.Time          `json:"due_date"`
	Obligations []obligationRequest `json:"obligations" validate:"required,min=1,dive"`
}

type updateObligationRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Emoji       *string `json:"emoji" validate:"omitempty,max=16"`
}

type nudgeRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// POST /api/contracts
func (h *ContractHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createContractRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.CreateContractInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.ContractType(req.Type),
		DueDate:     req.DueDate,
		Obligations: make([]services.ObligationInput, 0, len(req.Obligations)),
	}
	for _, item := range req.Obligations {
		input.Obligations = append(input.Obligations, services.ObligationInput{
			Title:       item.Title,
			Description: item.Description,
			Emoji:       item.Emoji,
			Repeat:      models.Repeat(item.Repeat),
			Days:        item.Days,
			TimesAWeek:  item.TimesAWeek,
		})
	}

	contract, err := h.contracts.Create(requestContext(c), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, contract)
}

// GET /api/contracts
func (h *ContractHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	contracts, err := h.contracts.ListForUser(requestContext(c), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contracts)
}

// GET /api/contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Get(requestContext(c), actor, contractID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, contract)
}

// DELETE /api/contracts/:id
func (h *ContractHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.contracts.Delete(requestContext(c), actor, contractID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PATCH /api/contracts/:id/obligations/:obligationID
func (h *ContractHandler) UpdateObligation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req updateObligationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	obligation, err := h.contracts.UpdateObligation(requestContext(c), actor, contractID(c), c.Param("obligationID"), services.UpdateObligationInput{
		Title:       req.Title,
		Description: req.Description,
		Emoji:       req.Emoji,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, obligation)
}

// POST /api/contracts/:id/join
func (h *ContractHandler) Join(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	membership, err := h.membership.Join(requestContext(c), actor, contractID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, membership)
}

// POST /api/contracts/:id/sign
func (h *ContractHandler) Sign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	membership, err := h.membership.Sign(requestContext(c), actor, contractID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, membership)
}

// POST /api/contracts/:id/opt-out
func (h *ContractHandler) OptOut(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	membership, err := h.membership.OptOut(requestContext(c), actor, contractID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, membership)
}

// POST /api/contracts/:id/view
func (h *ContractHandler) View(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.contracts.MarkViewed(requestContext(c), actor, contractID(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"viewed": true})
}

// POST /api/contracts/:id/nudge
func (h *ContractHandler) Nudge(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req nudgeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.contracts.Nudge(requestContext(c), actor, contractID(c), req.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"nudged": true})
}

func contractID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
