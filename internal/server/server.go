// Package server provides the diagnostics HTTP server of the camera bridge.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/ayusman/camerabridge/internal/journal"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultStreamFPS caps the MJPEG stream rate.
const DefaultStreamFPS = 15

// Bridge is the capture surface the server drives. Start and Stop only
// request a transition; the outcome arrives as a lifecycle message.
type Bridge interface {
	Start(t capture.CameraType, q capture.CaptureQuality) bool
	Stop() bool
	Frame() *capture.FrameBuffer
	Info() (extension.Info, bool)
	Capturing() bool
	Stats() capture.Stats
	Observe(fn extension.Observer) (cancel func())
}

// Config holds the server configuration.
type Config struct {
	Bridge    Bridge
	Journal   *journal.Journal
	Logger    *zap.Logger
	StreamFPS int
}

// Server is the HTTP front of the camera bridge.
type Server struct {
	config     Config
	logger     *zap.Logger
	engine     *gin.Engine
	hub        *Hub
	cancelObs  func()
	httpServer *http.Server
	start      time.Time
}

// New creates a Server and registers its routes. Routes that need a bridge
// or a journal are only registered when one is configured.
func New(config Config) *Server {
	if config.StreamFPS <= 0 {
		config.StreamFPS = DefaultStreamFPS
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.HandleMethodNotAllowed = true

	s := &Server{
		config: config,
		logger: logger.Named("server"),
		engine: engine,
		start:  time.Now(),
	}
	if config.Bridge != nil {
		s.hub = NewHub(s.logger)
		s.cancelObs = config.Bridge.Observe(s.hub.Publish)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)

	if s.config.Bridge != nil {
		api.GET("/info", s.handleInfo)
		api.GET("/stats", s.handleStats)
		api.POST("/capture/start", s.handleStart)
		api.POST("/capture/stop", s.handleStop)
		api.GET("/frame.jpg", s.handleFrame)
		api.GET("/stream", s.handleStream)
		api.GET("/events", s.handleEvents)
	}

	if s.config.Journal != nil {
		api.GET("/sessions", s.handleSessions)
		api.GET("/sessions/:id", s.handleSession)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes event subscribers and waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelObs != nil {
		s.cancelObs()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: message})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	info, ok := s.config.Bridge.Info()
	if !ok {
		abortWithError(c, http.StatusNotFound, "no_capture", "no capture has started")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"width":           info.Width,
		"height":          info.Height,
		"bytes_per_pixel": info.BytesPerPixel,
		"type":            info.Type.String(),
		"capturing":       s.config.Bridge.Capturing(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.config.Bridge.Stats()
	var eventsDropped uint64
	if s.hub != nil {
		eventsDropped = s.hub.Dropped()
	}
	c.JSON(http.StatusOK, gin.H{
		"state":          st.State.String(),
		"delivered":      st.Delivered,
		"dropped":        st.Dropped,
		"converted":      st.Converted,
		"faults":         st.Faults,
		"dispatched":     st.Dispatched,
		"pending":        st.Pending,
		"events_dropped": eventsDropped,
	})
}

type startRequest struct {
	Type    string `json:"type"`
	Quality string `json:"quality"`
}

func (s *Server) handleStart(c *gin.Context) {
	req := startRequest{Type: "front", Quality: "medium"}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	t, err := capture.ParseCameraType(req.Type)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_type", err.Error())
		return
	}
	q, err := capture.ParseCaptureQuality(req.Quality)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_quality", err.Error())
		return
	}

	if s.config.Bridge.Start(t, q) {
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
		return
	}
	if s.config.Bridge.Capturing() {
		abortWithError(c, http.StatusConflict, "already_capturing", capture.ErrAlreadyCapturing.Error())
		return
	}
	abortWithError(c, http.StatusServiceUnavailable, "start_failed", "camera could not be started")
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.config.Bridge.Stop() {
		abortWithError(c, http.StatusConflict, "not_capturing", capture.ErrNotCapturing.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (s *Server) handleFrame(c *gin.Context) {
	buf := s.config.Bridge.Frame()
	if buf == nil {
		abortWithError(c, http.StatusNotFound, "no_frame", "no capture is running")
		return
	}

	jpg, err := EncodeJPEG(buf)
	if err != nil {
		s.logger.Warn("frame encode failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", jpg)
}

func (s *Server) handleSessions(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithError(c, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.config.Journal.Sessions().List(limit)
	if err != nil {
		s.logger.Error("list sessions", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "journal_error", err.Error())
		return
	}
	if sessions == nil {
		sessions = []*journal.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.config.Journal.Sessions().Get(id)
	if errors.Is(err, journal.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "session_not_found", "no session with id "+id)
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "journal_error", err.Error())
		return
	}

	events, err := s.config.Journal.Events().ListBySession(id)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "journal_error", err.Error())
		return
	}
	if events == nil {
		events = []*journal.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "events": events})
}
