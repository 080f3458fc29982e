// Package dictionary holds the pinyin lookup table and the candidate
// resolver built on top of it.
package dictionary

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/burnchat/internal/domain"
)

//go:embed pinyin.yaml
var builtinTable []byte

// Dictionary is an immutable mapping from a lowercase ASCII key (letter,
// syllable, phrase, or initials shorthand) to candidates, best first.
// It is safe for concurrent use because nothing mutates it after New.
type Dictionary struct {
	entries map[string][]string
}

var (
	builtinOnce sync.Once
	builtin     *Dictionary
)

// Builtin returns the embedded pinyin table. It panics if the embedded
// asset is malformed, which would be a build defect.
func Builtin() *Dictionary {
	builtinOnce.Do(func() {
		d, err := Parse(builtinTable)
		if err != nil {
			panic(fmt.Sprintf("dictionary: embedded table: %v", err))
		}
		builtin = d
	})
	return builtin
}

// New validates and copies entries into a Dictionary.
func New(entries map[string][]string) (*Dictionary, error) {
	d := &Dictionary{entries: make(map[string][]string, len(entries))}
	for key, cands := range entries {
		if !validKey(key) {
			return nil, fmt.Errorf("%w: key %q must be lowercase ASCII letters", domain.ErrInvalidDictionary, key)
		}
		if len(cands) == 0 {
			return nil, fmt.Errorf("%w: key %q has no candidates", domain.ErrInvalidDictionary, key)
		}
		d.entries[key] = append([]string(nil), cands...)
	}
	return d, nil
}

// Parse decodes a YAML mapping of key -> candidate list.
func Parse(data []byte) (*Dictionary, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDictionary, err)
	}
	return New(raw)
}

// LoadFile reads a YAML table from disk.
func LoadFile(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
	}
	return Parse(data)
}

// Lookup returns a copy of the candidates stored under key.
func (d *Dictionary) Lookup(key string) ([]string, bool) {
	cands, ok := d.entries[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cands...), true
}

// first returns the best candidate for key without copying.
func (d *Dictionary) first(key string) (string, bool) {
	cands, ok := d.entries[key]
	if !ok || len(cands) == 0 {
		return "", false
	}
	return cands[0], true
}

// Len returns the number of keys.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 'a' || key[i] > 'z' {
			return false
		}
	}
	return true
}
