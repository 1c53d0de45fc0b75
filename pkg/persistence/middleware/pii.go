package middleware

import (
	"regexp"

	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// NewPIIMiddleware masks metadata values whose key matches any pattern,
// at any nesting depth, before they reach the store.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StatusStore) ports.StatusStore {
		return &rewriter{
			next: next,
			onWrite: func(rec *domain.Record) error {
				maskMap(rec.Metadata, patterns)
				return nil
			},
		}
	}
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
