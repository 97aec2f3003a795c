// File: internal/infra/worker/regen_processor.go
package worker

import (
	"context"

	"github.com/rs/zerolog"

	"paysession/internal/infra/metrics"
	"paysession/internal/usecase"
)

// RegenProcessor retries artifact generation for paid one-shot sessions that
// ended up without content. Jobs arrive from the result surface when it sees
// an empty session; the payment stays settled either way.
type RegenProcessor struct {
	pool     *Pool
	sessions usecase.SessionUseCase
	log      *zerolog.Logger
}

func NewRegenProcessor(pool *Pool, sessions usecase.SessionUseCase, logger *zerolog.Logger) *RegenProcessor {
	l := logger.With().Str("component", "RegenProcessor").Logger()
	return &RegenProcessor{pool: pool, sessions: sessions, log: &l}
}

// Enqueue schedules one regeneration attempt. A full queue is reported but
// not fatal; the next result request enqueues again.
func (p *RegenProcessor) Enqueue(sessionID string) {
	err := p.pool.Submit(func(ctx context.Context) error {
		if err := p.sessions.RegenerateArtifact(ctx, sessionID); err != nil {
			metrics.IncGenerationJob("failed")
			return err
		}
		metrics.IncGenerationJob("completed")
		return nil
	})
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", sessionID).Msg("regen enqueue rejected")
	}
}
