package scripting

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
)

// HookMisfire is the Lua global consulted on a natural-1 misfire. It receives
// one table describing the attempt and returns "fired", "fouled", "cracked",
// or nil to keep the proposed outcome:
//
//	function misfire_outcome(shot)
//	  -- shot.actor, shot.weapon, shot.rarity, shot.roll, shot.disadvantage,
//	  -- shot.charge, shot.max_charge, shot.proposed
//	end
const HookMisfire = "misfire_outcome"

var outcomeNames = map[string]firearm.Outcome{
	firearm.OutcomeFired.String():   firearm.OutcomeFired,
	firearm.OutcomeFouled.String():  firearm.OutcomeFouled,
	firearm.OutcomeCracked.String(): firearm.OutcomeCracked,
}

// MisfirePolicy implements firearm.MisfirePolicy by calling HookMisfire.
type MisfirePolicy struct {
	manager *Manager
	logger  *zap.Logger
}

// NewMisfirePolicy creates a MisfirePolicy over m.
//
// Precondition: m and logger must be non-nil.
func NewMisfirePolicy(m *Manager, logger *zap.Logger) *MisfirePolicy {
	return &MisfirePolicy{manager: m, logger: logger}
}

// MisfireOutcome returns the script's answer. A missing hook, a nil return,
// an unknown name, or a script error keeps proposed.
func (p *MisfirePolicy) MisfireOutcome(ctx context.Context, a firearm.FireAttempt, proposed firearm.Outcome) (firearm.Outcome, bool) {
	ret, err := p.manager.CallHook(ctx, HookMisfire, p.shotTable(a, proposed))
	if err != nil || ret == lua.LNil {
		return proposed, false
	}
	name, ok := ret.(lua.LString)
	if !ok {
		p.logger.Warn("misfire script returned a non-string", zap.String("type", ret.Type().String()))
		return proposed, false
	}
	outcome, ok := outcomeNames[string(name)]
	if !ok {
		p.logger.Warn("misfire script returned an unknown outcome", zap.String("outcome", string(name)))
		return proposed, false
	}
	if outcome != proposed {
		p.logger.Info("misfire outcome overridden by script",
			zap.Stringer("proposed", proposed),
			zap.Stringer("outcome", outcome),
		)
	}
	return outcome, true
}

func (p *MisfirePolicy) shotTable(a firearm.FireAttempt, proposed firearm.Outcome) *lua.LTable {
	t := &lua.LTable{}
	t.RawSetString("actor", lua.LString(a.Actor.Name))
	t.RawSetString("weapon", lua.LString(a.Weapon.Name))
	t.RawSetString("rarity", lua.LString(a.Weapon.Rarity))
	t.RawSetString("roll", lua.LNumber(a.AttackRollTotal))
	t.RawSetString("disadvantage", lua.LBool(a.HasDisadvantage))
	t.RawSetString("charge", lua.LNumber(a.Weapon.CurrentCharge))
	t.RawSetString("max_charge", lua.LNumber(a.Weapon.MaxCharge))
	t.RawSetString("proposed", lua.LString(proposed.String()))
	return t
}
