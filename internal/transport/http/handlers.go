package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reberkhan12-ai/live-azan/internal/domain"
	"github.com/reberkhan12-ai/live-azan/internal/hub"
)

// Control-plane handlers consumed by the imam dashboard. The hub core
// only exposes Broadcast/BroadcastNow and Status; everything else about
// venue management lives outside this service.

type azanMessage struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func handleStartAzan(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := domain.ChannelID(c.Param("id"))
		msg := azanMessage{
			Type:      "azan",
			ChannelID: string(ch),
			Status:    "started",
			Timestamp: time.Now().Unix(),
		}
		// Begin-broadcast is latency sensitive; skip the queue.
		if err := h.BroadcastNow(ch, msg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "broadcast failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Azan started and broadcast sent"})
	}
}

func handleStopAzan(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := domain.ChannelID(c.Param("id"))
		msg := azanMessage{
			Type:      "azan",
			ChannelID: string(ch),
			Status:    "stopped",
			Timestamp: time.Now().Unix(),
		}
		if err := h.Broadcast(ch, msg); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "broadcast failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Azan stopped for all devices"})
	}
}

func handleStatus(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch := domain.ChannelID(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"devices": h.Status(ch)})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
