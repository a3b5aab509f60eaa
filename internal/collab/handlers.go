package collab

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/profile"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

func (d *Dispatcher) handleJoinRoom(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	if !s.Join(roomID) {
		slogging.Get().Debug("Connection %s already in room %s", s.ConnID(), roomID)
		return nil
	}
	slogging.Get().Info("User %s joined room %s on connection %s", s.UserID(), roomID, s.ConnID())
	d.presence.Announce(roomID, "")
	return nil
}

func (d *Dispatcher) handleLeaveRoom(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	if !s.Leave(roomID) {
		slogging.Get().Debug("Connection %s not in room %s, ignoring leave", s.ConnID(), roomID)
		return nil
	}
	slogging.Get().Info("User %s left room %s on connection %s", s.UserID(), roomID, s.ConnID())
	d.presence.Announce(roomID, "")
	return nil
}

func (d *Dispatcher) handleGetParticipantCount(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	if s.Join(roomID) {
		slogging.Get().Info("Connection %s asked for room %s without joining; joined it", s.ConnID(), roomID)
	}

	update := d.presence.Snapshot(roomID)
	if err := d.fanout.Unicast(s, TypeParticipantCountUpdate, update); err != nil {
		slogging.Get().Warn("Failed to reply with participant count to connection %s in room %s: %v",
			s.ConnID(), roomID, err)
	}
	d.presence.Announce(roomID, s.ConnID())
	return nil
}

func (d *Dispatcher) handleUserActivity(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	activity, _ := f.String("activity")
	switch activity {
	case ActivityStartedDrawing:
		s.SetDrawing(true)
	case ActivityStoppedDrawing:
		d.drawing.Cancel(s.ConnID())
		s.SetDrawing(false)
	default:
		return fmt.Errorf("%w: unknown activity %q", ErrMalformedMessage, activity)
	}

	if supplied, ok := f.String("userName"); ok {
		if cleaned := profile.SanitizeDisplayName(supplied); !profile.IsGeneric(cleaned) {
			s.SetDisplayName(cleaned)
		}
	}

	now := d.now()
	s.Touch(now)
	d.fanout.Broadcast(roomID, TypeUserActivityUpdate, UserActivityUpdate{
		Type:      TypeUserActivityUpdate,
		RoomID:    roomID,
		UserID:    s.UserID(),
		UserName:  displayName(s),
		Activity:  activity,
		Timestamp: now.UnixMilli(),
	}, s.ConnID())
	return nil
}

func (d *Dispatcher) handleChat(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	message := f.Field("message")
	if message == nil {
		return fmt.Errorf("%w: chat requires message", ErrMalformedMessage)
	}

	d.sink.persist(eventlog.Event{
		RoomID:  roomID,
		UserID:  s.UserID(),
		Kind:    eventlog.KindChat,
		Payload: message,
	})
	d.fanout.Broadcast(roomID, TypeChat, ChatBroadcast{
		Type:    TypeChat,
		RoomID:  roomID,
		Message: message,
	}, "")
	return nil
}

func (d *Dispatcher) handleDraw(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	shape, shapeID, err := f.Shape()
	if err != nil {
		return err
	}

	d.drag.Replace(eventlog.Event{
		RoomID:  roomID,
		UserID:  s.UserID(),
		Kind:    eventlog.KindShapeCreate,
		ShapeID: shapeID,
		Payload: shape,
	})

	s.Touch(d.now())
	d.markDrawing(s)
	d.fanout.Broadcast(roomID, TypeDraw, DrawBroadcast{
		Type:   TypeDraw,
		RoomID: roomID,
		Shape:  shape,
		DrawingUser: DrawingUser{
			UserID:   s.UserID(),
			UserName: displayName(s),
		},
	}, s.ConnID())
	return nil
}

func (d *Dispatcher) handleEditShape(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	shape, shapeID, err := f.Shape()
	if err != nil {
		return err
	}
	dragging := f.Bool("isDragging")

	if dragging {
		d.drag.Update(roomID, shapeID, s.UserID(), shape)
	} else {
		d.drag.Replace(eventlog.Event{
			RoomID:  roomID,
			UserID:  s.UserID(),
			Kind:    eventlog.KindShapeUpdate,
			ShapeID: shapeID,
			Payload: shape,
		})
	}

	d.fanout.Broadcast(roomID, TypeEditShape, EditShapeBroadcast{
		Type:       TypeEditShape,
		RoomID:     roomID,
		Shape:      shape,
		IsDragging: dragging,
	}, s.ConnID())
	return nil
}

func (d *Dispatcher) handleErase(_ context.Context, s *Session, f Frame) error {
	roomID, err := f.RoomID()
	if err != nil {
		return err
	}
	shapeID, err := f.ShapeID()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		ShapeID string `json:"shapeId"`
	}{ShapeID: shapeID})
	if err != nil {
		return fmt.Errorf("failed to encode erase of shape %s: %w", shapeID, err)
	}

	d.drag.Replace(eventlog.Event{
		RoomID:  roomID,
		UserID:  s.UserID(),
		Kind:    eventlog.KindShapeDelete,
		ShapeID: shapeID,
		Payload: payload,
	})
	d.fanout.Broadcast(roomID, TypeErase, EraseBroadcast{
		Type:    TypeErase,
		RoomID:  roomID,
		ShapeID: shapeID,
	}, s.ConnID())
	return nil
}
