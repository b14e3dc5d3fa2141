// Package server exposes the resolution pipeline over HTTP for the
// web frontend.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shortsget/shortsget/internal/audit"
	"github.com/shortsget/shortsget/internal/request"
	"github.com/shortsget/shortsget/internal/resolver"
	"github.com/shortsget/shortsget/internal/version"
)

// Server wires the resolver and the audit trail behind a gin engine.
type Server struct {
	engine   *gin.Engine
	resolver *resolver.Resolver
	recorder *audit.Recorder
}

// New builds the HTTP server. recorder may be nil; auditing is then
// disabled without any behavioral difference for clients.
func New(res *resolver.Resolver, recorder *audit.Recorder) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), cors())

	s := &Server{
		engine:   engine,
		resolver: res,
		recorder: recorder,
	}

	api := engine.Group("/api")
	api.POST("/resolve", s.handleResolve)
	api.GET("/health", s.handleHealth)
	api.GET("/history", s.handleHistory)
	api.GET("/history/stats", s.handleStats)

	return s
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	logrus.WithField("addr", addr).Info("listening")
	return s.engine.Run(addr)
}

type resolveRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

type resolveResponse struct {
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	Duration    int    `json:"duration"`
	Author      string `json:"author"`
	DownloadURL string `json:"downloadUrl"`
	Quality     string `json:"quality"`
	Format      string `json:"format"`
	IsAudio     bool   `json:"isAudio"`
	Provider    string `json:"provider"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var body resolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := request.Normalize(body.URL, body.Format, body.Quality)
	if err != nil {
		// Bad input never reaches the pipeline.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, err := s.resolver.Resolve(c.Request.Context(), req)
	if err != nil {
		s.record(c, req, "", "error", err.Error())

		var exhausted *resolver.ExhaustedError
		if errors.As(err, &exhausted) {
			details := make([]string, len(exhausted.Failures))
			for i, f := range exhausted.Failures {
				details[i] = f.Provider + ": " + f.Err.Error()
			}
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "download unavailable, try again",
				"details": details,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolution failed"})
		return
	}

	s.recorder.Record(audit.Record{
		SourceURL: req.SourceURL,
		Outcome:   "success",
		Format:    string(req.Format),
		Quality:   resolved.Quality,
		Provider:  resolved.Provider,
		ClientIP:  clientIP(c),
	})

	c.JSON(http.StatusOK, resolveResponse{
		Title:       resolved.Title,
		Thumbnail:   resolved.Thumbnail,
		Duration:    resolved.DurationSeconds,
		Author:      resolved.Author,
		DownloadURL: resolved.MediaURL,
		Quality:     resolved.Quality,
		Format:      string(resolved.Format),
		IsAudio:     resolved.Format == request.FormatAudio,
		Provider:    resolved.Provider,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   version.Version,
		"providers": s.resolver.Providers(),
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	records, total, err := s.recorder.Recent(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	succeeded, failed, byProvider, err := s.recorder.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"succeeded":   succeeded,
		"failed":      failed,
		"by_provider": byProvider,
	})
}

func (s *Server) record(c *gin.Context, req request.Request, provider, outcome, errMsg string) {
	s.recorder.Record(audit.Record{
		SourceURL: req.SourceURL,
		Outcome:   outcome,
		Format:    string(req.Format),
		Quality:   string(req.Quality),
		Provider:  provider,
		Error:     errMsg,
		ClientIP:  clientIP(c),
	})
}

func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return c.ClientIP()
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
