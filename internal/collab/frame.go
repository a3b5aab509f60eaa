package collab

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Frame is one inbound client message
type Frame struct {
	Type string
	Raw  []byte
}

// ParseFrame checks that raw is a JSON object with a string type field
func ParseFrame(raw []byte) (Frame, error) {
	if !gjson.ValidBytes(raw) {
		return Frame{}, fmt.Errorf("%w: invalid json", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Frame{}, fmt.Errorf("%w: frame is not an object", ErrMalformedMessage)
	}
	msgType := root.Get("type")
	if msgType.Type != gjson.String || msgType.Str == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return Frame{Type: msgType.Str, Raw: raw}, nil
}

// identifier reads a string or numeric id field. Numbers keep their literal
// text, so a roomId of 42 and "42" name the same room.
func (f Frame) identifier(field string) (string, bool) {
	res := gjson.GetBytes(f.Raw, field)
	switch res.Type {
	case gjson.String:
		if strings.TrimSpace(res.Str) == "" {
			return "", false
		}
		return res.Str, true
	case gjson.Number:
		return res.Raw, true
	default:
		return "", false
	}
}

// RoomID returns the frame's roomId
func (f Frame) RoomID() (string, error) {
	room, ok := f.identifier("roomId")
	if !ok {
		return "", fmt.Errorf("%w: %s requires roomId", ErrMalformedMessage, f.Type)
	}
	return room, nil
}

// ShapeID returns the frame's top-level shapeId
func (f Frame) ShapeID() (string, error) {
	id, ok := f.identifier("shapeId")
	if !ok {
		return "", fmt.Errorf("%w: %s requires shapeId", ErrMalformedMessage, f.Type)
	}
	return id, nil
}

// Shape returns the shape object verbatim along with its id
func (f Frame) Shape() (json.RawMessage, string, error) {
	res := gjson.GetBytes(f.Raw, "shape")
	if !res.IsObject() {
		return nil, "", fmt.Errorf("%w: %s requires a shape object", ErrMalformedMessage, f.Type)
	}
	var id string
	switch idRes := res.Get("id"); idRes.Type {
	case gjson.String:
		id = idRes.Str
	case gjson.Number:
		id = idRes.Raw
	}
	if strings.TrimSpace(id) == "" {
		return nil, "", fmt.Errorf("%w: %s shape has no id", ErrMalformedMessage, f.Type)
	}
	return json.RawMessage(res.Raw), id, nil
}

// Field returns an optional value verbatim, or nil when it is absent
func (f Frame) Field(field string) json.RawMessage {
	res := gjson.GetBytes(f.Raw, field)
	if !res.Exists() {
		return nil
	}
	return json.RawMessage(res.Raw)
}

// String returns an optional string field
func (f Frame) String(field string) (string, bool) {
	res := gjson.GetBytes(f.Raw, field)
	if res.Type != gjson.String {
		return "", false
	}
	return res.Str, true
}

// Bool returns an optional boolean field, false when absent
func (f Frame) Bool(field string) bool {
	return gjson.GetBytes(f.Raw, field).Bool()
}
