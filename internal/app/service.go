// Package app wires the link registry, event bus, store and gateway into one
// process lifecycle.
package app

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/boatlink/internal/config"
	"github.com/danmuck/boatlink/internal/events"
	"github.com/danmuck/boatlink/internal/gateway"
	"github.com/danmuck/boatlink/internal/protocol/session"
	"github.com/danmuck/boatlink/internal/registry"
	"github.com/danmuck/boatlink/internal/serial"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/danmuck/boatlink/internal/tiles"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ingestBuffer sizes the store's bus subscription; telemetry bursts must not
// push out link_lost.
const ingestBuffer = 1024

type Option func(*Service)

// WithPorts replaces the serial port source.
func WithPorts(p registry.Ports) Option {
	return func(s *Service) { s.ports = p }
}

// WithStore uses db instead of opening cfg.Store.Path. The service does not
// close a store it did not open.
func WithStore(db *store.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithoutGateway skips the HTTP listener.
func WithoutGateway() Option {
	return func(s *Service) { s.noGateway = true }
}

type Service struct {
	cfg       config.Config
	ports     registry.Ports
	bus       *events.Bus
	links     *registry.Registry
	db        *store.DB
	ownsDB    bool
	gateway   *gateway.Server
	noGateway bool
	tiles     *tiles.Source

	mu    sync.Mutex
	known map[string]struct{}
}

// New builds a service from cfg. An empty store path disables persistence.
func New(cfg config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, known: make(map[string]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.ports == nil {
		s.ports = serial.NewPorts(cfg.SerialPorts())
	}
	if s.db == nil && cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.db, s.ownsDB = db, true
	}

	if cfg.Tiles.Path != "" {
		src, err := tiles.Open(cfg.Tiles.Path)
		if err != nil {
			s.closeStore()
			return nil, err
		}
		s.tiles = src
	}

	s.bus = events.NewBus()
	s.links = registry.New(s.ports, cfg.Session(), s.bus)

	gw := gateway.Options{
		Name:        cfg.Gateway.Name,
		Addr:        cfg.Gateway.Addr,
		CorsOrigins: cfg.Gateway.CorsOrigins,
		Token:       cfg.Gateway.Token,
	}
	if s.tiles != nil {
		gw.Tiles = s.tiles
	}
	var history gateway.History
	if s.db != nil {
		history = s.db
	}
	s.gateway = gateway.New(gw, s.links, history, s.bus)
	return s, nil
}

func (s *Service) Registry() *registry.Registry {
	return s.links
}

func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Run blocks until ctx is canceled, SIGINT or SIGTERM arrives, or a loop
// fails. All links are closed before it returns.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, unsubscribe := s.bus.SubscribeBuffered(ingestBuffer)
	defer unsubscribe()

	log.Info().
		Str("addr", s.cfg.Gateway.Addr).
		Str("store", s.cfg.Store.Path).
		Bool("persist", s.db != nil).
		Msg("boatlink starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.discoverLoop(gctx) })
	g.Go(func() error { return s.ingestLoop(gctx, feed) })
	if !s.noGateway {
		g.Go(func() error { return s.gateway.Run(gctx) })
	}
	err := g.Wait()

	if cerr := s.links.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("closing links")
	}
	if s.tiles != nil {
		if cerr := s.tiles.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("closing tiles")
		}
	}
	s.closeStore()
	log.Info().Msg("boatlink stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) closeStore() {
	if !s.ownsDB {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Warn().Err(err).Msg("closing store")
	}
}

// discoverLoop re-runs discovery, backing off while no boat answers.
func (s *Service) discoverLoop(ctx context.Context) error {
	backoff := session.NewBackoff(s.cfg.Session().Backoff, time.Now().UnixNano())
	for {
		names, err := s.links.Discover(ctx)
		switch {
		case errors.Is(err, registry.ErrClosed):
			return nil
		case err != nil:
			log.Warn().Err(err).Msg("discovery pass failed")
		}
		s.noteConnected(ctx, names)

		wait := s.cfg.Gateway.DiscoverInterval
		if len(names) == 0 {
			wait = backoff.Next()
		} else {
			backoff.Reset()
		}
		if err := session.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// noteConnected reconciles known against the names a discovery pass holds.
// A known name that is gone is recorded as lost here in case its link_lost
// event never reached ingest.
func (s *Service) noteConnected(ctx context.Context, names []string) {
	held := make(map[string]struct{}, len(names))
	s.mu.Lock()
	var fresh, gone []string
	for _, name := range names {
		held[name] = struct{}{}
		if _, ok := s.known[name]; !ok {
			s.known[name] = struct{}{}
			fresh = append(fresh, name)
		}
	}
	for name := range s.known {
		if _, ok := held[name]; !ok {
			delete(s.known, name)
			gone = append(gone, name)
		}
	}
	s.mu.Unlock()

	for _, name := range gone {
		log.Warn().Str("link", name).Msg("boat gone without link_lost")
		s.recordLinkEvent(ctx, name, store.LinkLost)
	}
	for _, name := range fresh {
		log.Info().Str("link", name).Msg("boat connected")
		s.recordLinkEvent(ctx, name, store.LinkConnected)
	}
}

// ingestLoop persists bus events until ctx ends or the feed closes.
func (s *Service) ingestLoop(ctx context.Context, feed <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-feed:
			if !ok {
				return nil
			}
			s.ingest(ctx, evt)
		}
	}
}

func (s *Service) ingest(ctx context.Context, evt events.Event) {
	switch evt.Type {
	case events.TypeDataReceived:
		if s.db == nil || evt.Data == nil {
			return
		}
		if err := s.db.InsertTelemetry(ctx, evt.Link, *evt.Data, evt.Timestamp); err != nil {
			log.Error().Str("link", evt.Link).Err(err).Msg("telemetry not stored")
		}
	case events.TypeLinkLost:
		s.mu.Lock()
		_, ok := s.known[evt.Link]
		delete(s.known, evt.Link)
		s.mu.Unlock()
		if !ok {
			return
		}
		log.Warn().Str("link", evt.Link).Msg("boat lost")
		s.recordLinkEvent(ctx, evt.Link, store.LinkLost)
	}
}

func (s *Service) recordLinkEvent(ctx context.Context, name, kind string) {
	if s.db == nil {
		return
	}
	if err := s.db.RecordLinkEvent(ctx, name, kind, time.Now()); err != nil {
		log.Error().Str("link", name).Str("event", kind).Err(err).Msg("link event not stored")
	}
}
