package dice

import "go.uber.org/zap"

// Roller rolls against a Source and records each result at debug level so
// a disputed misfire can be traced back to the faces that caused it.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller pairs src with logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs the result.
//
// Precondition: expr must come from Parse.
func (r *Roller) Roll(expr Expression) (RollResult, error) {
	result, err := Roll(expr, r.src)
	if err != nil {
		return RollResult{}, err
	}
	fields := []zap.Field{
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("total", result.Total()),
	}
	if len(result.Dropped) > 0 {
		fields = append(fields, zap.Ints("dropped", result.Dropped))
	}
	if result.Modifier != 0 {
		fields = append(fields, zap.Int("modifier", result.Modifier))
	}
	r.logger.Debug("dice roll", fields...)
	return result, nil
}

// RollExpr parses expr and rolls it, logging the result.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e)
}

// Attack rolls a d20 attack, keeping the lower die under disadvantage.
//
// Postcondition: 1 <= result.Natural() <= 20.
func (r *Roller) Attack(disadvantage bool) (RollResult, error) {
	return r.Roll(AttackExpression(disadvantage))
}
