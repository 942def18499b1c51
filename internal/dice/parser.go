package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Keep selects which dice survive a keep clause.
type Keep int

const (
	KeepAll     Keep = iota // no clause
	KeepHighest             // "kh<N>"
	KeepLowest              // "kl<N>"
)

// Expression represents a parsed dice expression ready to be rolled.
// Invariant: Count >= 1, Sides >= 2, and 0 < KeepN < Count when Keep != KeepAll.
type Expression struct {
	Raw      string // original input string
	Count    int    // number of dice
	Sides    int    // faces per die
	Modifier int    // flat modifier (may be negative)
	Keep     Keep   // keep clause kind
	KeepN    int    // dice kept by the clause
}

// Parse parses a dice expression string into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2", "4d6kh3", "2d20kl1+5".
//
// Precondition: expr must be a non-empty string.
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	if expr == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	raw := expr
	s := strings.ToLower(strings.TrimSpace(expr))

	dIdx := strings.Index(s, "d")
	if dIdx < 0 {
		return Expression{}, fmt.Errorf("dice: missing 'd' in expression %q", raw)
	}

	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		if n <= 0 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", raw)
		}
		count = n
	}

	body, modStr := splitModifier(s[dIdx+1:])

	keep, keepN := KeepAll, 0
	sidesStr := body
	for _, clause := range []struct {
		tag  string
		kind Keep
	}{{"kh", KeepHighest}, {"kl", KeepLowest}} {
		idx := strings.Index(body, clause.tag)
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(body[idx+2:])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid %s value in %q: %w", clause.tag, raw, err)
		}
		if n <= 0 || n >= count {
			return Expression{}, fmt.Errorf("dice: %s value %d must be > 0 and < count %d in %q", clause.tag, n, count, raw)
		}
		keep, keepN, sidesStr = clause.kind, n, body[:idx]
		break
	}

	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", raw)
	}

	modifier := 0
	if modStr != "" {
		modifier, err = strconv.Atoi(modStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}

	return Expression{
		Raw:      raw,
		Count:    count,
		Sides:    sides,
		Modifier: modifier,
		Keep:     keep,
		KeepN:    keepN,
	}, nil
}

// splitModifier splits "20kl1+5" into "20kl1" and "+5". A sign at position 0
// is part of the body so that "d-3" fails as invalid sides.
func splitModifier(rest string) (body, mod string) {
	for i := 1; i < len(rest); i++ {
		if rest[i] == '+' || rest[i] == '-' {
			return rest[:i], rest[i:]
		}
	}
	return rest, ""
}
