package collab

import "encoding/json"

// Message types
const (
	TypeJoinRoom            = "join_room"
	TypeLeaveRoom           = "leave_room"
	TypeGetParticipantCount = "get_participant_count"
	TypeUserActivity        = "user_activity"
	TypeChat                = "chat"
	TypeDraw                = "draw"
	TypeEditShape           = "edit_shape"
	TypeErase               = "erase"

	TypeParticipantCountUpdate = "participant_count_update"
	TypeUserActivityUpdate     = "user_activity_update"
)

// Activity values carried by user_activity frames
const (
	ActivityStartedDrawing = "started_drawing"
	ActivityStoppedDrawing = "stopped_drawing"
)

// ParticipantCountUpdate reports who is present in a room
type ParticipantCountUpdate struct {
	Type         string   `json:"type"`
	RoomID       string   `json:"roomId"`
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
}

// UserActivityUpdate relays a member's drawing activity
type UserActivityUpdate struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Activity  string `json:"activity"`
	Timestamp int64  `json:"timestamp"`
}

// ChatBroadcast relays a chat message verbatim
type ChatBroadcast struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

// DrawingUser identifies the author of a new shape
type DrawingUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// DrawBroadcast relays a newly created shape
type DrawBroadcast struct {
	Type        string          `json:"type"`
	RoomID      string          `json:"roomId"`
	Shape       json.RawMessage `json:"shape"`
	DrawingUser DrawingUser     `json:"drawingUser"`
}

// EditShapeBroadcast relays a shape replacement
type EditShapeBroadcast struct {
	Type       string          `json:"type"`
	RoomID     string          `json:"roomId"`
	Shape      json.RawMessage `json:"shape"`
	IsDragging bool            `json:"isDragging"`
}

// EraseBroadcast relays a shape removal
type EraseBroadcast struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	ShapeID string `json:"shapeId"`
}
