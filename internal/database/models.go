package database

import (
	"time"

	"github.com/ericfitz/whiteboard/internal/uuidgen"
	"gorm.io/gorm"
)

// RoomEvent is one durable entry in a room's history. Seq is assigned by the
// database and gives the replay order.
type RoomEvent struct {
	Seq       uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	ID        string    `gorm:"column:id;type:varchar(36);not null;uniqueIndex"`
	RoomID    string    `gorm:"column:room_id;type:varchar(255);not null;index:idx_room_events_room_created,priority:1"`
	Kind      string    `gorm:"column:kind;type:varchar(32);not null"`
	UserID    string    `gorm:"column:user_id;type:varchar(255);not null"`
	ShapeID   *string   `gorm:"column:shape_id;type:varchar(255)"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_room_events_room_created,priority:2"`
}

// TableName specifies the table name for RoomEvent
func (RoomEvent) TableName() string {
	return "room_events"
}

// BeforeCreate generates a UUID if not set
func (e *RoomEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuidgen.NewString(uuidgen.KindEvent)
	}
	return nil
}

// User is a directory entry used to resolve display names
type User struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(255)"`
	DisplayName string    `gorm:"column:display_name;type:varchar(255);not null"`
	Email       string    `gorm:"column:email;type:varchar(255)"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	ModifiedAt  time.Time `gorm:"column:modified_at;not null;autoUpdateTime"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// AllModels lists every model migrated at startup
func AllModels() []interface{} {
	return []interface{}{
		&RoomEvent{},
		&User{},
	}
}
