// File: internal/infra/adapters/generator/multi_adapter.go
package generator

import (
	"context"
	"errors"

	"paysession/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*MultiGenerator)(nil)

// MultiGenerator tries each configured provider in order and returns the
// first successful result. A paid session should not lose its artifact to a
// single provider outage.
type MultiGenerator struct {
	chain []adapter.ContentGenerator
}

func NewMultiGenerator(chain ...adapter.ContentGenerator) *MultiGenerator {
	out := make([]adapter.ContentGenerator, 0, len(chain))
	for _, g := range chain {
		if g != nil {
			out = append(out, g)
		}
	}
	return &MultiGenerator{chain: out}
}

func (m *MultiGenerator) Name() string {
	if len(m.chain) == 0 {
		return "none"
	}
	return m.chain[0].Name()
}

func (m *MultiGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	if len(m.chain) == 0 {
		return "", errors.New("no generation provider configured")
	}
	var lastErr error
	for _, g := range m.chain {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := g.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", lastErr
}
