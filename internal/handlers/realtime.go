package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pinkypartner/pinkypartner/internal/realtime"
	"github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// RealtimeHandler upgrades authenticated HTTP connections into WebSocket streams.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream subscribes the caller to the requested streams, realtime.DefaultStreams when none.
// Streams come from ?stream= (repeatable) or a comma separated ?streams= list.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	h.hub.Serve(actor.UserID, gatherStreams(c), c.Writer, c.Request)
}

func gatherStreams(c *gin.Context) []string {
	var streams []string
	for _, value := range c.QueryArray("stream") {
		if value = strings.TrimSpace(value); value != "" {
			streams = append(streams, value)
		}
	}
	if raw := c.Query("streams"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				streams = append(streams, part)
			}
		}
	}
	return streams
}
