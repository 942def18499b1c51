package dice

import "slices"

// Roll evaluates an Expression using the given Source and returns a RollResult.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count for KeepAll, otherwise
// expr.KeepN; len(result.Dice)+len(result.Dropped) == expr.Count.
func Roll(expr Expression, src Source) (RollResult, error) {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}

	res := RollResult{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
	if expr.Keep == KeepAll {
		return res, nil
	}

	ordered := slices.Clone(rolled)
	slices.Sort(ordered)
	if expr.Keep == KeepHighest {
		slices.Reverse(ordered)
	}
	res.Dice, res.Dropped = ordered[:expr.KeepN], ordered[expr.KeepN:]
	return res, nil
}

// RollExpr parses expr and rolls it using src in a single call.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a RollResult or a parse error.
func RollExpr(expr string, src Source) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src)
}

// MustParse parses expr and panics on error. Useful for package-level values.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

var (
	straightD20     = MustParse("1d20")
	disadvantageD20 = MustParse("2d20kl1")
)

// AttackExpression returns the d20 expression for an attack roll: 1d20
// normally, 2d20kl1 with disadvantage.
func AttackExpression(disadvantage bool) Expression {
	if disadvantage {
		return disadvantageD20
	}
	return straightD20
}
