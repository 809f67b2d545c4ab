package registry

import (
	"github.com/danmuck/boatlink/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

func (r *Registry) startMonitorLocked(l *session.Link) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.monitor(l)
	}()
}

// monitor polls one link until it is dropped. Every receive error counts
// toward the failure threshold and a successful receive does not reset it;
// only a passing handshake probe does.
func (r *Registry) monitor(l *session.Link) {
	name := l.Name()
	cfg := l.Config()
	failures := 0

	for {
		if r.ctx.Err() != nil {
			return
		}
		if cur, ok := r.Lookup(name); !ok || cur != l {
			return
		}

		err := l.Transact(func() error {
			_, err := l.Receive()
			return err
		})
		if err != nil {
			if !l.Connected() {
				r.remove(name, l)
				return
			}
			failures++
		}

		if failures > cfg.FailureThreshold {
			log.Debug().Str("link", name).Int("failures", failures).Msg("probing link")
			if err := session.Handshake(r.ctx, l); err != nil {
				if r.ctx.Err() != nil {
					return
				}
				log.Warn().Str("link", name).Err(err).Msg("link probe failed")
				r.remove(name, l)
				return
			}
			failures = 0
		}

		if err := session.Sleep(r.ctx, cfg.MonitorInterval); err != nil {
			return
		}
	}
}
