package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ports"
)

// Mask replaces redacted metadata values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RollStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks metadata values whose keys
// match any of the patterns. The roll itself is left untouched so it can
// still be replayed.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RollStore) ports.RollStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, record *domain.RollRecord) error {
	// Clone so the caller's record keeps its values.
	cloned := record.Clone()
	for k := range cloned.Metadata {
		for _, p := range m.patterns {
			if p.MatchString(k) {
				cloned.Metadata[k] = Mask
				break
			}
		}
	}
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.RollRecord, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	return m.next.List(ctx, channel)
}
