package boattest

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Ports is an in-memory port source keyed by port name.
type Ports struct {
	mu      sync.Mutex
	remotes map[string]*Remote
	listErr error
}

func NewPorts() *Ports {
	return &Ports{remotes: make(map[string]*Remote)}
}

func (p *Ports) Add(name string, r *Remote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remotes[name] = r
}

func (p *Ports) Remove(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.remotes, name)
}

func (p *Ports) SetListErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

func (p *Ports) List() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	names := make([]string, 0, len(p.remotes))
	for name := range p.remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *Ports) Open(name string) (io.ReadWriteCloser, error) {
	p.mu.Lock()
	r, ok := p.remotes[name]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("boattest: no such port %q", name)
	}
	return &conn{remote: r, gen: r.reopen()}, nil
}
