package dictionary

import (
	"strings"

	"github.com/hammamikhairi/burnchat/internal/domain"
)

// Compile-time interface check.
var _ domain.Resolver = (*Resolver)(nil)

// Resolver maps a composition buffer to candidates using a Dictionary.
//
// The result always starts with the lowercased buffer. An exact key match
// appends that key's candidates in stored order. Otherwise, for buffers
// longer than one character, a single sentence is built from the first
// candidate of every letter, but only when every letter is a key.
type Resolver struct {
	dict *Dictionary
}

// NewResolver creates a resolver over dict.
func NewResolver(dict *Dictionary) *Resolver {
	return &Resolver{dict: dict}
}

// Resolve returns the candidate set for buffer. An empty buffer yields an
// empty set.
func (r *Resolver) Resolve(buffer string) domain.CandidateSet {
	if buffer == "" {
		return domain.CandidateSet{}
	}

	raw := strings.ToLower(buffer)
	out := domain.CandidateSet{raw}

	if exact, ok := r.dict.entries[raw]; ok && len(exact) > 0 {
		return append(out, exact...)
	}

	if len(raw) > 1 {
		if sentence, ok := r.sentence(raw); ok {
			out = append(out, sentence)
		}
	}
	return out
}

// sentence concatenates the best candidate of every letter in raw.
// All-or-nothing: one unknown letter means no sentence.
func (r *Resolver) sentence(raw string) (string, bool) {
	var b strings.Builder
	for _, c := range raw {
		best, ok := r.dict.first(string(c))
		if !ok {
			return "", false
		}
		b.WriteString(best)
	}
	return b.String(), true
}
