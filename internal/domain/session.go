package domain

// Mode is the active keyboard layout of an input session.
type Mode int

const (
	ModeAlpha Mode = iota
	ModeNumeric
	ModeHandwriting
)

// String returns a human-readable mode.
func (m Mode) String() string {
	switch m {
	case ModeAlpha:
		return "alpha"
	case ModeNumeric:
		return "numeric"
	case ModeHandwriting:
		return "handwriting"
	default:
		return "unknown"
	}
}

// CandidateSet is an ordered list of candidates. For pinyin lookups
// position 0 is the raw (lowercased) input and positions >= 1 are
// resolved matches. It is rebuilt on every change, never edited in place.
type CandidateSet []string

// Preferred returns the candidate committed by space or send: index 1
// when a resolved match exists, else index 0. ok is false on an empty set.
func (c CandidateSet) Preferred() (string, bool) {
	switch {
	case len(c) > 1:
		return c[1], true
	case len(c) == 1:
		return c[0], true
	default:
		return "", false
	}
}

// Snapshot is everything a front-end needs to draw the input area.
// It is recomputed after every controller operation.
type Snapshot struct {
	Mode        Mode
	Buffer      string
	Committed   string
	Candidates  CandidateSet
	Expanded    bool
	Shift       bool
	Recognizing bool
	Strokes     int
}

// DisplayKey returns how letter key k is labelled with shift on or off.
// Non-letters are returned unchanged.
func DisplayKey(k rune, shift bool) rune {
	switch {
	case k >= 'a' && k <= 'z' && shift:
		return k - 'a' + 'A'
	case k >= 'A' && k <= 'Z' && !shift:
		return k - 'A' + 'a'
	default:
		return k
	}
}
