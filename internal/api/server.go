package api

import (
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"ytgrab/backend"
)

// Server represents the HTTP API server
type Server struct {
	app        *fiber.App
	config     *backend.Config
	queue      *backend.Queue
	history    *backend.History
	analyzer   *backend.Analyzer
	classifier *backend.Classifier
	status     *backend.StatusChecker
	wsHub      *WebSocketHub
	logger     *slog.Logger

	unsubscribe func()
}

// Services groups the backend components the API exposes
type Services struct {
	Config     *backend.Config
	Queue      *backend.Queue
	History    *backend.History
	Analyzer   *backend.Analyzer
	Classifier *backend.Classifier
	Status     *backend.StatusChecker
	Logger     *slog.Logger
}

// NewServer creates a new API server instance and starts forwarding queue
// events to WebSocket clients
func NewServer(svc Services) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "ytgrab Server",
		ServerHeader: "ytgrab",
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	if svc.Config == nil {
		svc.Config = backend.GetDefaultConfig()
	}

	wsHub := NewWebSocketHub(svc.Logger)
	go wsHub.Run()

	server := &Server{
		app:        app,
		config:     svc.Config,
		queue:      svc.Queue,
		history:    svc.History,
		analyzer:   svc.Analyzer,
		classifier: svc.Classifier,
		status:     svc.Status,
		wsHub:      wsHub,
		logger:     svc.Logger,
	}

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	server.setupRoutes()

	if server.queue != nil {
		events, unsubscribe := server.queue.Subscribe()
		server.unsubscribe = unsubscribe
		go func() {
			for event := range events {
				wsHub.Broadcast(event)
			}
		}()
	}

	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.app.Get("/api/health", s.handleHealth)

	api := s.app.Group("/api")

	api.Get("/status", s.handleStatus)

	// URL routes
	api.Post("/classify", s.handleClassify)
	api.Post("/analyze", s.handleAnalyze)

	// Queue routes
	api.Get("/queue", s.handleGetQueue)
	api.Post("/queue", s.handleAddToQueue)
	api.Get("/queue/stats", s.handleGetQueueStats)
	api.Post("/queue/clear", s.handleClearFinished)
	api.Post("/queue/retry", s.handleRetryFailed)
	api.Get("/queue/:id", s.handleGetQueueEntry)
	api.Delete("/queue/:id", s.handleRemoveFromQueue)
	api.Put("/queue/:id/move", s.handleMoveQueueEntry)
	api.Post("/queue/:id/up", s.handleMoveUp)
	api.Post("/queue/:id/down", s.handleMoveDown)

	// History routes
	api.Get("/history", s.handleGetHistory)
	api.Get("/history/stats", s.handleGetHistoryStats)

	// WebSocket endpoint
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

// Listen starts the HTTP server
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.wsHub.Close()
	return s.app.Shutdown()
}

// BroadcastQueueEvent sends a queue event to all connected WebSocket clients
func (s *Server) BroadcastQueueEvent(event backend.QueueEvent) {
	s.wsHub.Broadcast(event)
}

// WebSocketHub manages WebSocket connections
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the WebSocket hub
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", "total", total)
		case conn := <-h.unregister:
			h.drop(conn)
		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				if err := conn.WriteJSON(message); err != nil {
					h.logger.Warn("websocket write error", "err", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range failed {
				h.drop(conn)
			}
		}
	}
}

func (h *WebSocketHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", "total", total)
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("websocket broadcast channel full, dropping message")
	}
}

// Close shuts down the hub
func (h *WebSocketHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.mu.Unlock()
	})
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *websocket.Conn) {
	select {
	case s.wsHub.register <- c:
	case <-s.wsHub.done:
		return
	}
	defer func() {
		select {
		case s.wsHub.unregister <- c:
		case <-s.wsHub.done:
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
		// Incoming messages are ignored, reading keeps the connection alive
	}
}
