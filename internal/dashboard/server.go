// Package dashboard serves the live mining dashboard: a REST snapshot
// endpoint and a websocket feed pushing fresh snapshots to clients.
package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tari-project/graxil/internal/config"
	"github.com/tari-project/graxil/internal/stats"
	"github.com/tari-project/graxil/internal/util"
)

// Server exposes the statistics core to dashboard clients. It is a pure
// reader: producing a snapshot has no effect on mining.
type Server struct {
	cfg    *config.DashboardConfig
	stats  *stats.MinerStats
	router *gin.Engine
	server *http.Server

	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	quit chan struct{}
}

// NewServer creates a dashboard server over the given statistics core
func NewServer(cfg *config.DashboardConfig, minerStats *stats.MinerStats) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		stats:  minerStats,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		quit:    make(chan struct{}),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures dashboard endpoints
func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/snapshot", s.handleSnapshot)
		api.GET("/health", s.handleHealth)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start begins serving and pushing snapshots
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Bind,
		Handler: s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("Dashboard server error: %v", err)
		}
	}()
	go s.pushLoop()

	util.Infof("Dashboard listening on %s", s.cfg.Bind)
	return nil
}

// Stop shuts down the server and disconnects clients
func (s *Server) Stop() {
	close(s.quit)

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	if s.server != nil {
		s.server.Close()
	}
	util.Info("Dashboard stopped")
}

// handleSnapshot serves the current statistics snapshot
func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

// handleHealth is a trivial liveness endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebSocket upgrades a client and registers it for snapshot pushes
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.Debugf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()
	util.Debugf("Dashboard client connected (%d total)", count)

	// Send an immediate snapshot so the client does not wait a full tick
	s.send(conn, s.stats.Snapshot())

	// Drain reads to observe client disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// pushLoop broadcasts a fresh snapshot to every client on each tick
func (s *Server) pushLoop() {
	interval := s.cfg.UpdateInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}

		s.clientsMu.Lock()
		conns := make([]*websocket.Conn, 0, len(s.clients))
		for conn := range s.clients {
			conns = append(conns, conn)
		}
		s.clientsMu.Unlock()

		if len(conns) == 0 {
			continue
		}

		snapshot := s.stats.Snapshot()
		for _, conn := range conns {
			s.send(conn, snapshot)
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snapshot stats.Snapshot) {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(snapshot); err != nil {
		s.drop(conn)
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}
