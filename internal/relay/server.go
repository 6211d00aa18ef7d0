// Package relay is the signaling relay: a WebSocket endpoint pairing two
// clients and forwarding their envelopes verbatim.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/1ureka/duocall/internal/config"
	"github.com/1ureka/duocall/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the relay's HTTP surface around a Hub.
type Server struct {
	cfg    config.RelayConfig
	hub    *Hub
	stats  *util.Stats
	router *gin.Engine
}

// NewServer builds the router. The hub is started by Start or ListenAndServe.
func NewServer(cfg config.RelayConfig) *Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	stats := util.NewStats()
	s := &Server{
		cfg:    cfg,
		hub:    NewHub(cfg, stats),
		stats:  stats,
		router: gin.New(),
	}

	s.router.Use(gin.Recovery(), requestLogger())
	s.router.GET("/ws", s.handleWS)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/stats", s.handleStats)

	if cfg.StaticDir != "" {
		// http.FileServer maps "/" to index.html.
		files := http.FileServer(http.Dir(cfg.StaticDir))
		s.router.NoRoute(gin.WrapH(files))
	}
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the hub and the stats reporter until ctx is cancelled. Use it
// when serving Handler from an externally managed listener.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	s.stats.StartReporter(ctx, s.cfg.StatsInterval)
}

// Stats returns the relay's traffic counters.
func (s *Server) Stats() *util.Stats { return s.stats }

// ListenAndServe runs the hub and the HTTP server until ctx is cancelled,
// then shuts both down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		util.LogSuccess("relay listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		util.LogInfo("relay shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogWarning("failed to upgrade connection: %v", err)
		return
	}

	client := newClient(s.hub, conn, s.cfg.SendBuffer)
	if !s.hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump(s.cfg)
	go client.readPump(s.cfg)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.Count()})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clients": s.hub.Count(), "stats": s.stats.Snapshot()})
}

// requestLogger logs plain HTTP requests at debug level. WebSocket upgrades
// are logged by the hub instead.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		util.LogDebug("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
