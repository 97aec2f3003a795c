// File: internal/infra/adapters/generator/noop.go
package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paysession/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*NoopGenerator)(nil)

// NoopGenerator is a local/dev stand-in that echoes a canned response. Tests
// can override the reply or force a failure.
type NoopGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func NewNoopGenerator() *NoopGenerator {
	return &NoopGenerator{}
}

func (n *NoopGenerator) Name() string { return "noop" }

// SetReply fixes the next responses; SetErr forces failures until cleared.
func (n *NoopGenerator) SetReply(s string) { n.mu.Lock(); n.reply = s; n.mu.Unlock() }
func (n *NoopGenerator) SetErr(err error)  { n.mu.Lock(); n.err = err; n.mu.Unlock() }

func (n *NoopGenerator) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *NoopGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return "", n.err
	}
	if n.reply != "" {
		return n.reply, nil
	}
	return fmt.Sprintf("[noop:%s] %s", req.Category, req.Input), nil
}
