// Package random provides the random sources dice are drawn from.
//
// A [Source] may block (for example a remote entropy service or a recorded
// sequence fed by another process); the context passed to Roll is the only
// suspension point during dice evaluation.
package random

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
)

// ErrInvalidFaces is returned when a source is asked for a die with fewer
// than one face.
var ErrInvalidFaces = errors.New("faces must be greater than zero")

// ErrExhausted is returned by a Sequence that has no values left.
var ErrExhausted = errors.New("random sequence exhausted")

// Source draws a uniformly distributed value in [1, faces].
type Source interface {
	Roll(ctx context.Context, faces int) (int, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, faces int) (int, error)

// Roll calls f(ctx, faces).
func (f SourceFunc) Roll(ctx context.Context, faces int) (int, error) {
	return f(ctx, faces)
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Seeded is a deterministic math/rand source. Two Seeded sources created with
// the same seed produce the same draws for the same sequence of calls.
// It is safe for concurrent use.
type Seeded struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// NewSeeded returns a source seeded with seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewSource(seed)), seed: seed}
}

// New returns a Seeded source initialized from crypto/rand.
func New() (*Seeded, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeeded(seed), nil
}

// Seed reports the seed the source was created with.
func (s *Seeded) Seed() int64 {
	return s.seed
}

func (s *Seeded) Roll(ctx context.Context, faces int) (int, error) {
	if faces <= 0 {
		return 0, ErrInvalidFaces
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(faces) + 1, nil
}

// Crypto draws every value from crypto/rand. It is not reproducible.
type Crypto struct{}

func (Crypto) Roll(ctx context.Context, faces int) (int, error) {
	if faces <= 0 {
		return 0, ErrInvalidFaces
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(faces)))
	if err != nil {
		return 0, fmt.Errorf("read random value: %w", err)
	}
	return int(n.Int64()) + 1, nil
}

// Sequence replays a fixed list of values in order. Values larger than the
// requested faces are an error, so a sequence cannot silently produce an
// impossible face.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewSequence returns a source that yields values in order.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: append([]int(nil), values...)}
}

func (s *Sequence) Roll(ctx context.Context, faces int) (int, error) {
	if faces <= 0 {
		return 0, ErrInvalidFaces
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.values) {
		return 0, ErrExhausted
	}
	v := s.values[s.next]
	s.next++
	if v < 1 || v > faces {
		return 0, fmt.Errorf("sequence value %d out of range for d%d", v, faces)
	}
	return v, nil
}

// Remaining reports how many values have not been drawn yet.
func (s *Sequence) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values) - s.next
}
