package collab

// Presence computes and announces who is in a room
type Presence struct {
	registry *Registry
	fanout   *Fanout
}

// NewPresence creates a presence broadcaster
func NewPresence(registry *Registry, fanout *Fanout) *Presence {
	return &Presence{registry: registry, fanout: fanout}
}

// Snapshot builds the participant count message for roomID
func (p *Presence) Snapshot(roomID string) ParticipantCountUpdate {
	participants := p.registry.Participants(roomID)
	return ParticipantCountUpdate{
		Type:         TypeParticipantCountUpdate,
		RoomID:       roomID,
		Count:        len(participants),
		Participants: participants,
	}
}

// Announce sends the current snapshot to every active member of roomID
// except excludeConnID
func (p *Presence) Announce(roomID, excludeConnID string) ParticipantCountUpdate {
	update := p.Snapshot(roomID)
	p.fanout.Broadcast(roomID, TypeParticipantCountUpdate, update, excludeConnID)
	return update
}
