package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Mask replaces the value of every matching field.
const Mask = "***"

type piiMiddleware struct {
	next     ports.AnchorStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks the values of fields whose key matches any pattern
// before they reach the store. Nested maps are walked.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.AnchorStore) ports.AnchorStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Commit(ctx context.Context, batch ports.Batch) error {
	masked := ports.Batch{Remove: batch.Remove, Set: make([]*domain.Record, 0, len(batch.Set))}
	for _, rec := range batch.Set {
		// The engine keeps its own copy of the record image; never mutate it.
		cloned := *rec
		cloned.Fields = deepCopyMap(rec.Fields)
		maskMap(cloned.Fields, m.patterns)
		masked.Set = append(masked.Set, &cloned)
	}
	return m.next.Commit(ctx, masked)
}

func (m *piiMiddleware) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	return m.next.Get(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]domain.ID, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && !masked {
			maskMap(sub, patterns)
		}
	}
}
