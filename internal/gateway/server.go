// Package gateway exposes the link registry to local UIs over HTTP and a
// websocket event stream.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/boatlink/internal/events"
	"github.com/danmuck/boatlink/internal/observability"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Links is the subset of the registry the gateway drives.
type Links interface {
	Names() []string
	Discover(ctx context.Context) ([]string, error)
	SendPath(ctx context.Context, name string, path payload.PathData) (int, error)
}

// History is the subset of the store the gateway reads and writes.
type History interface {
	ListTelemetry(ctx context.Context, f store.TelemetryFilter) ([]store.Reading, error)
	ListLinkEvents(ctx context.Context, link string, limit int) ([]store.LinkEvent, error)
	RecordPathUpload(ctx context.Context, u store.PathUpload) error
	ListPathUploads(ctx context.Context, link string, limit int) ([]store.PathUpload, error)
	SavePath(ctx context.Context, p store.SavedPath) error
	LoadPath(ctx context.Context, name string) (store.SavedPath, error)
}

// TileSource serves base map tiles by XYZ coordinates.
type TileSource interface {
	Tile(ctx context.Context, z, x, y int) ([]byte, error)
	ContentType() string
}

type Subscriber interface {
	Subscribe() (<-chan events.Event, func())
	// Dropped counts deliveries skipped for slow subscribers.
	Dropped() uint64
}

type Options struct {
	Name        string
	Addr        string
	CorsOrigins []string
	// Token, when set, is required as a bearer token on POST and PUT routes.
	Token string
	Tiles TileSource
}

type Server struct {
	opts     Options
	router   *gin.Engine
	links    Links
	history  History
	bus      Subscriber
	appeared time.Time
}

func New(opts Options, links Links, history History, bus Subscriber) *Server {
	if opts.Name == "" {
		opts.Name = "boatlink"
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger("gateway")))
	r.Use(observability.RequestMetricsMiddleware(opts.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:     opts,
		router:   r,
		links:    links,
		history:  history,
		bus:      bus,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down within five seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:1420"}
	}
	return origins
}
