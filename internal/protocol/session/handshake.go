package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/boatlink/internal/observability"
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/rs/zerolog/log"
)

// Handshake sends Connect until the boat answers with Connect or the attempt
// budget runs out. On failure the link is left disconnected. The same
// exchange is used as a liveness probe on established links.
func Handshake(ctx context.Context, l *Link) error {
	return l.Transact(func() error {
		err := handshake(ctx, l)
		switch {
		case err == nil:
			observability.RecordHandshake(l.name, "connected")
		case ctx.Err() != nil:
			observability.RecordHandshake(l.name, "canceled")
		default:
			observability.RecordHandshake(l.name, "failed")
		}
		return err
	})
}

func handshake(ctx context.Context, l *Link) error {
	cfg := l.cfg
	msg := payload.Connect{Version: cfg.Version}.Marshal()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := l.Send(protocol.KindConnect, msg); err != nil {
			l.Disconnect()
			return fmt.Errorf("%w: attempt %d: %w", ErrHandshakeFailed, attempt, err)
		}
		if err := Sleep(ctx, cfg.ReplyDelay); err != nil {
			return err
		}

		kind, err := l.Receive()
		if err == nil && kind == protocol.KindConnect {
			l.markConnected()
			log.Info().Str("link", l.name).Int("attempt", attempt).Msg("handshake complete")
			return nil
		}
		if err != nil && !l.Connected() {
			return fmt.Errorf("%w: attempt %d: %w", ErrHandshakeFailed, attempt, err)
		}
		log.Debug().
			Str("link", l.name).
			Int("attempt", attempt).
			Str("kind", kind.String()).
			AnErr("receive", err).
			Msg("handshake reply pending")
	}

	l.Disconnect()
	return fmt.Errorf("%w: no connect reply after %d attempts", ErrHandshakeFailed, cfg.MaxAttempts)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
