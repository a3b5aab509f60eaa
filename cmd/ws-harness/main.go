// Command ws-harness connects to a running whiteboard server as one
// participant, joins a room, optionally draws or drags shapes, and logs every
// message the server sends back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ericfitz/whiteboard/internal/collab"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// Config holds the harness flags
type Config struct {
	ServerURL string
	Token     string
	RoomID    string
	UserName  string
	Mode      string
	Count     int
	Interval  time.Duration
}

func main() {
	config := parseArgs()
	log := slogging.Get().GetSlogger()
	log.Info("WebSocket harness starting", "server", config.ServerURL, "room", config.RoomID, "mode", config.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		log.Error("Harness failed", "error", err)
		os.Exit(1)
	}
}

func parseArgs() Config {
	var config Config
	flag.StringVar(&config.ServerURL, "server", "http://localhost:8080", "Server base URL")
	flag.StringVar(&config.Token, "token", "", "Identity token (see the issue-token command)")
	flag.StringVar(&config.RoomID, "room", "ABCXYZ", "Room to join")
	flag.StringVar(&config.UserName, "name", "", "Display name to announce with user_activity")
	flag.StringVar(&config.Mode, "mode", "watch", "watch, draw or drag")
	flag.IntVar(&config.Count, "count", 10, "Shapes to draw or drag steps to send")
	flag.DurationVar(&config.Interval, "interval", 50*time.Millisecond, "Delay between sent frames")
	flag.Parse()

	if config.Token == "" {
		fmt.Fprintln(os.Stderr, "ws-harness: -token is required")
		os.Exit(2)
	}
	switch config.Mode {
	case "watch", "draw", "drag":
	default:
		fmt.Fprintf(os.Stderr, "ws-harness: unknown mode %q\n", config.Mode)
		os.Exit(2)
	}
	return config
}

func websocketURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func run(ctx context.Context, config Config) error {
	log := slogging.Get().GetSlogger()
	wsURL, err := websocketURL(config.ServerURL, config.Token)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			log.Error("WebSocket connection failed", "status_code", resp.StatusCode, "body", string(body))
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	log.Info("WebSocket connected")

	connectionLost := make(chan error, 1)
	go readLoop(conn, connectionLost)

	send := func(v map[string]any) error {
		v["roomId"] = config.RoomID
		return conn.WriteJSON(v)
	}

	if err := send(map[string]any{"type": collab.TypeJoinRoom}); err != nil {
		return err
	}
	if config.UserName != "" {
		if err := send(map[string]any{"type": collab.TypeUserActivity, "activity": collab.ActivityStoppedDrawing, "userName": config.UserName}); err != nil {
			return err
		}
	}

	go func() {
		if err := drive(ctx, config, send); err != nil {
			connectionLost <- err
		}
	}()

	select {
	case <-ctx.Done():
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Warn("Error sending close message", "error", err)
		}
		return nil
	case err := <-connectionLost:
		return fmt.Errorf("websocket connection lost: %w", err)
	}
}

// drive sends the frames for the selected mode
func drive(ctx context.Context, config Config, send func(map[string]any) error) error {
	if config.Mode == "watch" {
		return nil
	}

	shapeID := fmt.Sprintf("harness-%d", time.Now().UnixNano())
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for i := 0; i < config.Count; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var frame map[string]any
		switch config.Mode {
		case "draw":
			frame = map[string]any{
				"type":  collab.TypeDraw,
				"shape": map[string]any{"id": fmt.Sprintf("%s-%d", shapeID, i), "type": "rect", "x": i * 15, "y": 0, "w": 10, "h": 10},
			}
		case "drag":
			if i == 0 {
				if err := send(map[string]any{
					"type":  collab.TypeDraw,
					"shape": map[string]any{"id": shapeID, "type": "rect", "x": 0, "y": 0, "w": 10, "h": 10},
				}); err != nil {
					return err
				}
			}
			frame = map[string]any{
				"type":       collab.TypeEditShape,
				"isDragging": i < config.Count-1,
				"shape":      map[string]any{"id": shapeID, "type": "rect", "x": i * 5, "y": i * 5, "w": 10, "h": 10},
			}
		}
		if err := send(frame); err != nil {
			return err
		}
	}
	slogging.Get().GetSlogger().Info("Finished sending", "mode", config.Mode, "count", config.Count)
	return nil
}

func readLoop(conn *websocket.Conn, connectionLost chan<- error) {
	log := slogging.Get().GetSlogger()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				log.Error("Server rejected the token")
			}
			connectionLost <- err
			return
		}

		var base struct {
			Type   string `json:"type"`
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			log.Warn("Failed to parse message", "error", err, "raw_message", string(message))
			continue
		}

		switch base.Type {
		case collab.TypeParticipantCountUpdate:
			var msg collab.ParticipantCountUpdate
			if err := json.Unmarshal(message, &msg); err == nil {
				log.Info("Participants", "room", msg.RoomID, "count", msg.Count, "participants", msg.Participants)
			}
		case collab.TypeUserActivityUpdate:
			var msg collab.UserActivityUpdate
			if err := json.Unmarshal(message, &msg); err == nil {
				log.Info("Activity", "user", msg.UserID, "name", msg.UserName, "activity", msg.Activity)
			}
		case collab.TypeDraw:
			var msg collab.DrawBroadcast
			if err := json.Unmarshal(message, &msg); err == nil {
				log.Info("Draw", "user", msg.DrawingUser.UserID, "name", msg.DrawingUser.UserName)
			}
		case collab.TypeEditShape, collab.TypeErase, collab.TypeChat:
			log.Info("Room update", "type", base.Type, "room", base.RoomID)
		default:
			log.Debug("Unknown message type", "type", base.Type)
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, message, "", "  "); err == nil {
			log.Debug("Full message JSON", "json", pretty.String())
		}
	}
}
