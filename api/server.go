package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ericfitz/whiteboard/auth"
	"github.com/ericfitz/whiteboard/internal/collab"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/ericfitz/whiteboard/internal/uuidgen"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// RevokeFunc adds a token to the revoked list
type RevokeFunc func(ctx context.Context, token string) error

// Options wires the server to the collaboration engine and its collaborators.
// Revoke, Metrics and Health may be left empty.
type Options struct {
	Hub         *collab.Hub
	Verifier    auth.Verifier
	Events      eventlog.Store
	Revoke      RevokeFunc
	Metrics     http.Handler
	Health      map[string]HealthCheck
	WebSocket   config.WebSocketConfig
	Logging     slogging.WebSocketLoggingConfig
	ServiceName string
}

// Server is the HTTP and websocket front end of the whiteboard
type Server struct {
	hub        *collab.Hub
	dispatcher *collab.Dispatcher
	verifier   auth.Verifier
	events     eventlog.Store
	revoke     RevokeFunc
	metrics    http.Handler
	health     map[string]HealthCheck
	ws         config.WebSocketConfig
	wsLogging  slogging.WebSocketLoggingConfig
	upgrader   websocket.Upgrader
	service    string

	newConnID func() string
}

// NewServer creates a server from opts
func NewServer(opts Options) *Server {
	ws := opts.WebSocket
	if ws.MaxMessageBytes <= 0 {
		ws.MaxMessageBytes = 64 * 1024
	}
	if ws.SendBufferSize <= 0 {
		ws.SendBufferSize = 256
	}
	if ws.PongWait <= 0 {
		ws.PongWait = 60 * time.Second
	}
	if ws.PingInterval <= 0 || ws.PingInterval >= ws.PongWait {
		ws.PingInterval = ws.PongWait * 9 / 10
	}
	if ws.WriteWait <= 0 {
		ws.WriteWait = 10 * time.Second
	}
	service := opts.ServiceName
	if service == "" {
		service = "whiteboard"
	}

	return &Server{
		hub:        opts.Hub,
		dispatcher: opts.Hub.Dispatcher(),
		verifier:   opts.Verifier,
		events:     opts.Events,
		revoke:     opts.Revoke,
		metrics:    opts.Metrics,
		health:     opts.Health,
		ws:         ws,
		wsLogging:  opts.Logging,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(ws.AllowedOrigins),
		},
		service:   service,
		newConnID: func() string { return uuidgen.NewString(uuidgen.KindConnection) },
	}
}

// Router builds the gin engine with every route installed
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(slogging.LoggerMiddleware())
	r.Use(slogging.Recoverer())
	r.Use(otelgin.Middleware(s.service))

	r.GET("/health", s.HandleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	// The websocket handshake authenticates from the query string, so it
	// sits outside the bearer-token group.
	r.GET("/ws", s.HandleWebSocket)

	apiGroup := r.Group("/api", auth.Required(s.verifier))
	apiGroup.GET("/rooms/:room_id/events", s.HandleRoomEvents)
	apiGroup.GET("/rooms/:room_id/participants", s.HandleRoomParticipants)
	apiGroup.GET("/sessions", s.HandleMySessions)
	apiGroup.POST("/auth/revoke", s.HandleRevoke)

	return r
}
