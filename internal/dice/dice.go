// Package dice parses and rolls dice expressions such as "1d20", "2d20kl1"
// and "4d6kh3+2". The firearm simulator uses it to produce attack rolls.
package dice

import "fmt"

// RollResult records one evaluated expression.
type RollResult struct {
	Expression string
	// Dice are the kept faces; Dropped are those a kh/kl clause discarded.
	Dice     []int
	Dropped  []int
	Modifier int
}

// Total is the sum of the kept dice plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// Natural returns the first kept die with no modifier applied. For a d20
// attack roll it is the face the misfire rules look at.
//
// Precondition: len(r.Dice) >= 1.
func (r RollResult) Natural() int {
	return r.Dice[0]
}

// String returns a human-readable audit string in the format:
//
//	"2d20kl1+5 → [3] +5 = 8"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Source supplies randomness to Roll. Intn returns a value in [0, n) and
// panics when n <= 0. Implementations must be safe for concurrent use.
type Source interface {
	Intn(n int) int
}
