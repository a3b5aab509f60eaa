package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ericfitz/whiteboard/auth"
	"github.com/ericfitz/whiteboard/internal/collab"
	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// RoomEventsResponse is the replay log of one room
type RoomEventsResponse struct {
	RoomID string           `json:"roomId"`
	Events []eventlog.Event `json:"events"`
}

// SessionsResponse lists the caller's open sessions
type SessionsResponse struct {
	UserID   string               `json:"userId"`
	Sessions []collab.SessionInfo `json:"sessions"`
}

// HandleRoomEvents returns every persisted event of a room in insertion
// order, which is the order a client replays them in
func (s *Server) HandleRoomEvents(c *gin.Context) {
	logger := slogging.Get().WithContext(c)
	roomID := strings.TrimSpace(c.Param("room_id"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	events, err := s.events.ListEvents(c.Request.Context(), roomID)
	if err != nil {
		logger.Error("Failed to list events for room %s: %v", roomID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room events"})
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}

	logger.Debug("Returning %d events for room %s", len(events), roomID)
	c.JSON(http.StatusOK, RoomEventsResponse{RoomID: roomID, Events: events})
}

// HandleRoomParticipants returns the room's current presence view
func (s *Server) HandleRoomParticipants(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("room_id"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}
	c.JSON(http.StatusOK, s.dispatcher.Presence().Snapshot(roomID))
}

// HandleMySessions lists the open sessions that belong to the caller
func (s *Server) HandleMySessions(c *gin.Context) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	mine := []collab.SessionInfo{}
	for _, info := range s.dispatcher.Registry().Sessions() {
		if info.UserID == identity.UserID {
			mine = append(mine, info)
		}
	}
	c.JSON(http.StatusOK, SessionsResponse{UserID: identity.UserID, Sessions: mine})
}

// HandleRevoke revokes the bearer token the request was made with
func (s *Server) HandleRevoke(c *gin.Context) {
	logger := slogging.Get().WithContext(c)
	if s.revoke == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "token revocation is not enabled"})
		return
	}

	token := c.GetString(auth.TokenContextKey)
	if err := s.revoke(c.Request.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to revoke token: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to revoke token"})
		return
	}

	logger.Info("Token revoked for user %s", c.GetString(slogging.ContextKeyUserID))
	c.Status(http.StatusNoContent)
}
