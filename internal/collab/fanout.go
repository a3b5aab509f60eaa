package collab

import (
	"encoding/json"
	"fmt"

	"github.com/ericfitz/whiteboard/internal/slogging"
)

// Fanout sends JSON payloads to the active members of a room
type Fanout struct {
	registry *Registry
	metrics  Metrics
}

// NewFanout creates a fanout over registry. metrics may be nil.
func NewFanout(registry *Registry, metrics Metrics) *Fanout {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Fanout{registry: registry, metrics: metrics}
}

// Broadcast marshals payload once and sends it to every active member of
// roomID except excludeConnID. A recipient whose send fails is logged and
// skipped; the rest still receive the frame. Returns the number delivered.
func (f *Fanout) Broadcast(roomID, msgType string, payload any, excludeConnID string) int {
	data, err := json.Marshal(payload)
	if err != nil {
		slogging.Get().Error("Failed to marshal %s broadcast for room %s: %v", msgType, roomID, err)
		return 0
	}

	members := f.registry.ActiveMembers(roomID, excludeConnID)
	delivered, failed := 0, 0
	for _, member := range members {
		if err := member.conn.Send(data); err != nil {
			failed++
			slogging.Get().Warn("Failed to send %s to connection %s (user %s) in room %s: %v",
				msgType, member.ConnID(), member.UserID(), roomID, err)
			continue
		}
		delivered++
	}

	f.metrics.Broadcast(msgType, delivered, failed)
	slogging.Get().Debug("Broadcast %s to room %s: delivered=%d failed=%d excluded=%q",
		msgType, roomID, delivered, failed, excludeConnID)
	return delivered
}

// Unicast sends payload to a single session
func (f *Fanout) Unicast(s *Session, msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	if err := s.conn.Send(data); err != nil {
		return fmt.Errorf("failed to send %s to connection %s: %w", msgType, s.ConnID(), err)
	}
	f.metrics.Broadcast(msgType, 1, 0)
	return nil
}
