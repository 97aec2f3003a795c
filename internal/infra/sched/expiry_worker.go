package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paysession/internal/domain/ports/repository"
	"paysession/internal/infra/metrics"
)

// ExpiryWorker periodically finishes active sessions whose wall-clock expiry
// passed. Budget exhaustion is handled inline on the consumption path; this
// sweeper only covers sessions abandoned with time still on the meter.
type ExpiryWorker struct {
	interval time.Duration
	sessions repository.SessionRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, sessions repository.SessionRepository, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		sessions: sessions,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting session expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping session expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sessions.ExpireOlderThan(ctx, nil, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
				continue
			}
			if n > 0 {
				metrics.IncSessionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired sessions finished")
			}
		}
	}
}
