package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// InstanceHandler exposes the per-day obligation instances.
type InstanceHandler struct {
	instances *services.InstanceService
}

// NewInstanceHandler constructs an instance handler.
func NewInstanceHandler(instances *services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instances: instances}
}

// GET /api/contracts/:id/instances
func (h *InstanceHandler) ListCurrentWeek(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	items, err := h.instances.ListCurrentWeek(requestContext(c), actor, contractID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// POST /api/instances/:id/complete
func (h *InstanceHandler) Complete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	instance, err := h.instances.Complete(requestContext(c), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, instance)
}

// POST /api/instances/:id/view
func (h *InstanceHandler) View(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	instance, err := h.instances.MarkViewed(requestContext(c), actor, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, instance)
}
