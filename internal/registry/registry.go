package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/danmuck/boatlink/internal/observability"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound = errors.New("registry: link not found")
	ErrClosed   = errors.New("registry: closed")
)

// maxParallelHandshakes bounds concurrent port opens during one pass.
const maxParallelHandshakes = 16

// Ports enumerates and opens candidate serial ports.
type Ports interface {
	List() ([]string, error)
	Open(name string) (io.ReadWriteCloser, error)
}

// Registry owns every live link, keyed by port name. Each inserted link gets
// one monitor goroutine that runs until the link is dropped.
type Registry struct {
	ports   Ports
	cfg     session.Config
	emitter session.Emitter

	mu      sync.Mutex
	links   map[string]*session.Link
	pending map[string]struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(ports Ports, cfg session.Config, emitter session.Emitter) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		ports:   ports,
		cfg:     cfg,
		emitter: emitter,
		links:   make(map[string]*session.Link),
		pending: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Discover drops dead links, handshakes every port that has no live link,
// and returns the sorted names of all links held afterwards. Ports that fail
// to open or answer are skipped silently.
func (r *Registry) Discover(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	stale := r.purgeLocked()
	available, err := r.ports.List()
	if err != nil {
		r.mu.Unlock()
		for _, l := range stale {
			_ = l.Close()
		}
		return nil, fmt.Errorf("registry: list ports: %w", err)
	}
	candidates := make([]string, 0, len(available))
	for _, name := range available {
		if _, live := r.links[name]; live {
			continue
		}
		if _, busy := r.pending[name]; busy {
			continue
		}
		r.pending[name] = struct{}{}
		candidates = append(candidates, name)
	}
	r.mu.Unlock()

	for _, l := range stale {
		_ = l.Close()
	}

	hctx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(r.ctx, stop)
	defer unlink()

	found := make([]*session.Link, len(candidates))
	var g errgroup.Group
	g.SetLimit(maxParallelHandshakes)
	for i, name := range candidates {
		i, name := i, name
		g.Go(func() error {
			found[i] = r.connect(hctx, name)
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	var rejected []*session.Link
	for i, name := range candidates {
		delete(r.pending, name)
		l := found[i]
		if l == nil {
			continue
		}
		if _, exists := r.links[name]; exists || r.closed {
			rejected = append(rejected, l)
			continue
		}
		r.links[name] = l
		r.startMonitorLocked(l)
		log.Info().Str("link", name).Msg("link registered")
	}
	names := r.namesLocked()
	observability.SetActiveLinks(len(r.links))
	r.mu.Unlock()

	for _, l := range rejected {
		_ = l.Close()
	}
	return names, nil
}

func (r *Registry) connect(ctx context.Context, name string) *session.Link {
	transport, err := r.ports.Open(name)
	if err != nil {
		log.Debug().Str("link", name).Err(err).Msg("port open failed")
		return nil
	}
	l := session.NewLink(name, transport, r.cfg, r.emitter)
	if err := session.Handshake(ctx, l); err != nil {
		log.Debug().Str("link", name).Err(err).Msg("port is not a boat")
		_ = l.Close()
		return nil
	}
	return l
}

// SendPath uploads path over the named link. The registry lock is released
// before the transfer starts. It returns the number of PathData sends.
func (r *Registry) SendPath(ctx context.Context, name string, path payload.PathData) (int, error) {
	l, ok := r.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return session.Transfer(ctx, l, path)
}

func (r *Registry) Lookup(name string) (*session.Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[name]
	return l, ok
}

// Names returns the sorted names of links currently held.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

// Close drops every link without emitting link_lost, stops the monitors and
// waits for them to exit.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	links := r.links
	r.links = make(map[string]*session.Link)
	r.mu.Unlock()

	r.cancel()
	var errs []error
	for name, l := range links {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.wg.Wait()
	observability.SetActiveLinks(0)
	return errors.Join(errs...)
}

// remove drops name only if it still maps to l, then releases l.
func (r *Registry) remove(name string, l *session.Link) {
	r.mu.Lock()
	if cur, ok := r.links[name]; ok && cur == l {
		delete(r.links, name)
		observability.SetActiveLinks(len(r.links))
		log.Info().Str("link", name).Msg("link dropped")
	}
	r.mu.Unlock()
	_ = l.Close()
}

func (r *Registry) purgeLocked() []*session.Link {
	var stale []*session.Link
	for name, l := range r.links {
		if l.Connected() {
			continue
		}
		delete(r.links, name)
		stale = append(stale, l)
	}
	return stale
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.links))
	for name := range r.links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
