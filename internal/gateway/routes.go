package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/boatlink/internal/auth"
	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/protocol/session"
	"github.com/danmuck/boatlink/internal/registry"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/danmuck/boatlink/internal/tiles"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	maxPathBody = 4 << 20
	// defaultPathName is used when a request names no saved path.
	defaultPathName = "default"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		var dropped uint64
		if s.bus != nil {
			dropped = s.bus.Dropped()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.opts.Name,
			"links":   len(s.links.Names()),
			"dropped": dropped,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.GET("/links", s.listLinks)

	control := api.Group("")
	if s.opts.Token != "" {
		control.Use(auth.Require(auth.SharedToken(s.opts.Token)))
	}
	control.POST("/links/discover", s.discover)
	control.POST("/links/:name/path", s.sendPath)
	control.PUT("/path", s.savePath)

	api.GET("/telemetry", s.telemetry)
	api.GET("/history", s.linkHistory)
	api.GET("/uploads", s.uploads)
	api.GET("/path", s.loadPath)
	api.GET("/events", s.eventStream)
	api.GET("/tiles/:z/:x/:y", s.tile)
}

func (s *Server) listLinks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"links": s.links.Names()})
}

func (s *Server) discover(c *gin.Context) {
	names, err := s.links.Discover(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": names})
}

func (s *Server) sendPath(c *gin.Context) {
	name := c.Param("name")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPathBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	path, err := geo.ParsePath(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := path.PathData()
	checksum := payload.Checksum(data)
	attempts, err := s.links.SendPath(c.Request.Context(), name, data)
	s.recordUpload(c.Request.Context(), name, data, checksum, attempts, err)
	if err != nil {
		c.JSON(sendPathStatus(err), gin.H{"error": err.Error(), "attempts": attempts})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "acknowledged",
		"link":     name,
		"points":   len(data.Points),
		"attempts": attempts,
		"checksum": checksum,
	})
}

func sendPathStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoAcknowledgement):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrTransport), errors.Is(err, session.ErrNotConnected):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) recordUpload(ctx context.Context, name string, data payload.PathData, checksum uint16, attempts int, err error) {
	if s.history == nil || errors.Is(err, registry.ErrNotFound) {
		return
	}
	u := store.PathUpload{
		Link:       name,
		Points:     len(data.Points),
		Checksum:   checksum,
		Attempts:   attempts,
		Outcome:    "acknowledged",
		UploadedAt: time.Now(),
	}
	if err != nil {
		u.Outcome = "failed"
		u.Error = err.Error()
	}
	if rerr := s.history.RecordPathUpload(context.WithoutCancel(ctx), u); rerr != nil {
		log.Warn().Str("link", name).Err(rerr).Msg("path upload not recorded")
	}
}

func (s *Server) telemetry(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telemetry store disabled"})
		return
	}
	filter := store.TelemetryFilter{Link: c.Query("link"), Limit: 500}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		filter.Since = ts
	}

	readings, err := s.history.ListTelemetry(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	features := make([]payload.Feature, 0, len(readings))
	for _, r := range readings {
		features = append(features, r.Feature)
	}
	c.JSON(http.StatusOK, geo.TelemetryCollection("", features))
}

func (s *Server) linkHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store disabled"})
		return
	}
	evts, err := s.history.ListLinkEvents(c.Request.Context(), c.Query("link"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

func (s *Server) uploads(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store disabled"})
		return
	}
	ups, err := s.history.ListPathUploads(c.Request.Context(), c.Query("link"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": ups})
}

// savePath validates a path document and stores it under ?name=.
func (s *Server) savePath(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "path store disabled"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPathBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	path, err := geo.ParsePath(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := path.Document()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	saved := store.SavedPath{
		Name:     c.DefaultQuery("name", defaultPathName),
		Version:  path.Version,
		Points:   len(path.Points),
		Document: doc,
		SavedAt:  time.Now().UTC(),
	}
	if err := s.history.SavePath(c.Request.Context(), saved); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// loadPath returns the saved path document. A name with nothing saved yields
// an empty path so an editor can start from scratch.
func (s *Server) loadPath(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "path store disabled"})
		return
	}
	saved, err := s.history.LoadPath(c.Request.Context(), c.DefaultQuery("name", defaultPathName))
	switch {
	case errors.Is(err, store.ErrPathNotFound):
		c.JSON(http.StatusOK, geo.Path{}.FeatureCollection())
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/geo+json", saved.Document)
}

func (s *Server) tile(c *gin.Context) {
	if s.opts.Tiles == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tile source configured"})
		return
	}
	var zxy [3]int
	for i, key := range []string{"z", "x", "y"} {
		raw := c.Param(key)
		if key == "y" {
			// Clients commonly request /z/x/y.pbf.
			if dot := strings.IndexByte(raw, '.'); dot >= 0 {
				raw = raw[:dot]
			}
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
			return
		}
		zxy[i] = n
	}

	data, err := s.opts.Tiles.Tile(c.Request.Context(), zxy[0], zxy[1], zxy[2])
	switch {
	case errors.Is(err, tiles.ErrTileNotFound):
		c.Status(http.StatusNoContent)
		return
	case errors.Is(err, tiles.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, s.opts.Tiles.ContentType(), data)
}
