package session

import (
	"context"
	"fmt"

	"github.com/danmuck/boatlink/internal/observability"
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/rs/zerolog/log"
)

// Transfer uploads path and waits for the boat's Received acknowledgement,
// resending up to MaxAttempts times. It returns the number of attempts made.
// Exhausting the budget yields ErrNoAcknowledgement and leaves the link
// connected.
func Transfer(ctx context.Context, l *Link, path payload.PathData) (int, error) {
	var attempts int
	err := l.Transact(func() error {
		var err error
		attempts, err = transfer(ctx, l, path)
		return err
	})

	outcome := "acknowledged"
	if err != nil {
		outcome = "failed"
	}
	observability.RecordTransfer(l.name, outcome, attempts)
	return attempts, err
}

func transfer(ctx context.Context, l *Link, path payload.PathData) (int, error) {
	cfg := l.cfg
	if path.Version == "" {
		path.Version = cfg.Version
	}
	msg := path.Marshal()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := l.Send(protocol.KindPathData, msg); err != nil {
			return attempt, fmt.Errorf("path transfer attempt %d: %w", attempt, err)
		}
		if err := Sleep(ctx, cfg.ReplyDelay); err != nil {
			return attempt, err
		}

		kind, err := l.Receive()
		if err == nil && kind == protocol.KindReceived {
			log.Info().
				Str("link", l.name).
				Int("points", len(path.Points)).
				Int("attempt", attempt).
				Msg("path acknowledged")
			return attempt, nil
		}
		if err != nil && !l.Connected() {
			return attempt, fmt.Errorf("path transfer attempt %d: %w", attempt, err)
		}
	}
	return cfg.MaxAttempts, fmt.Errorf("%w: %d attempts", ErrNoAcknowledgement, cfg.MaxAttempts)
}
