package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RunTokenGenerator produces the token that stamps a run's report and every
// mapping row the run touches.
type RunTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-sortable run tokens, so mapping rows sort
// by the run that last wrote them. Stateless.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a predetermined token sequence, for
// deterministic tests. Panics once the sequence runs dry so a test that
// starts more runs than it planned fails loudly.
type FixedGenerator struct {
	mu   sync.Mutex
	next []string
}

// NewFixedGenerator creates a generator over the given token sequence.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{next: tokens}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.next) == 0 {
		panic("run token sequence exhausted")
	}
	token := g.next[0]
	g.next = g.next[1:]
	return token
}
