package id

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	ReferencePrefix = "ORDER-"
	maxRetries      = 5
)

// ExistsFunc reports whether a candidate reference is already taken.
type ExistsFunc func(ctx context.Context, reference string) (bool, error)

// ReferenceGenerator issues ORDER-<ULID> references. A single monotonic entropy
// source is shared under a mutex, so references minted within the same
// millisecond still sort strictly after one another.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewReferenceGenerator returns a generator seeded from crypto/rand.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Generate returns the next reference.
func (g *ReferenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return ReferencePrefix + id.String(), nil
}

// GenerateUnique keeps generating until exists reports a free reference.
// A nil exists skips the check.
func (g *ReferenceGenerator) GenerateUnique(ctx context.Context, exists ExistsFunc) (string, error) {
	for i := 0; i < maxRetries; i++ {
		ref, err := g.Generate()
		if err != nil {
			return "", err
		}
		if exists == nil {
			return ref, nil
		}
		taken, err := exists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("check reference: %w", err)
		}
		if !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique reference after %d attempts", maxRetries)
}
