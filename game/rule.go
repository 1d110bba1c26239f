package game

import (
	"strings"

	"github.com/pkg/errors"
)

// Rule is a life-like transition rule in B/S notation, e.g. "B3/S23".
type Rule struct {
	birth   [9]bool
	survive [9]bool
}

var Conway = Rule{
	birth:   [9]bool{3: true},
	survive: [9]bool{2: true, 3: true},
}

// ParseRule accepts "B3/S23" style rules. The parts may appear in either
// order and are case-insensitive.
func ParseRule(s string) (Rule, error) {
	var r Rule
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(s)), "/")
	if len(parts) != 2 {
		return r, errors.Errorf("rule %q: want B<digits>/S<digits>", s)
	}
	var seenB, seenS bool
	for _, part := range parts {
		if part == "" {
			return r, errors.Errorf("rule %q: empty part", s)
		}
		var set *[9]bool
		switch part[0] {
		case 'B':
			if seenB {
				return r, errors.Errorf("rule %q: duplicate birth part", s)
			}
			seenB, set = true, &r.birth
		case 'S':
			if seenS {
				return r, errors.Errorf("rule %q: duplicate survival part", s)
			}
			seenS, set = true, &r.survive
		default:
			return r, errors.Errorf("rule %q: unknown part %q", s, part)
		}
		for _, c := range part[1:] {
			if c < '0' || c > '8' {
				return r, errors.Errorf("rule %q: bad neighbour count %q", s, c)
			}
			set[c-'0'] = true
		}
	}
	return r, nil
}

func (r Rule) String() string {
	var b strings.Builder
	b.WriteByte('B')
	for n, ok := range r.birth {
		if ok {
			b.WriteByte(byte('0' + n))
		}
	}
	b.WriteString("/S")
	for n, ok := range r.survive {
		if ok {
			b.WriteByte(byte('0' + n))
		}
	}
	return b.String()
}

func (r Rule) next(alive bool, neighbors int) bool {
	if alive {
		return r.survive[neighbors]
	}
	return r.birth[neighbors]
}
