package firearm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// NaturalFailure is the roll total that triggers misfire evaluation.
const NaturalFailure = 1

// Rules holds the misfire behaviours that differ between table house rules.
type Rules struct {
	// MisfireEnabled turns natural-1 misfire evaluation on.
	MisfireEnabled bool
	// CatastrophicMisfire cracks the barrel on a natural 1 rolled with
	// disadvantage. When false that roll fouls the barrel instead.
	CatastrophicMisfire bool
	// MagicConsumesCharge makes magical firearms spend a charge per shot.
	MagicConsumesCharge bool
}

// DefaultRules enables every rule.
func DefaultRules() Rules {
	return Rules{
		MisfireEnabled:      true,
		CatastrophicMisfire: true,
		MagicConsumesCharge: true,
	}
}

// MisfirePolicy is a house-rule override for natural-1 misfires. It is only
// consulted for a natural 1 on a non-magical firearm with misfire enabled and
// a charge loaded; proposed is the outcome the Rules chose. Returning false
// keeps proposed.
type MisfirePolicy interface {
	MisfireOutcome(ctx context.Context, a FireAttempt, proposed Outcome) (Outcome, bool)
}

// Verdict is the allow/deny answer returned to the host middleware.
// The zero value is VerdictAllow.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeny
)

// Allowed reports whether the original attack roll may proceed.
func (v Verdict) Allowed() bool { return v == VerdictAllow }

// String returns "allow" or "deny".
func (v Verdict) String() string {
	if v == VerdictAllow {
		return "allow"
	}
	return "deny"
}

// Outcome names the path a fire attempt took through the Resolver.
type Outcome int

const (
	OutcomeNotApplicable Outcome = iota // actor or weapon missing
	OutcomeUnclassified                 // not a flagged firearm
	OutcomeFired                        // charge spent, attack proceeds
	OutcomeEmpty                        // no charge; reload prompted
	OutcomeFouled                       // natural 1: shot spent, barrel must be cleared
	OutcomeCracked                      // natural 1 with disadvantage: weapon unequipped
	OutcomeFailed                       // a persistence call failed
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNotApplicable:
		return "not_applicable"
	case OutcomeUnclassified:
		return "unclassified"
	case OutcomeFired:
		return "fired"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFouled:
		return "fouled"
	case OutcomeCracked:
		return "cracked"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Resolution records what one Resolve call did.
type Resolution struct {
	Verdict Verdict
	Outcome Outcome
	// Magical is true when misfire evaluation was skipped for a magical weapon.
	Magical bool
	// Reload is set when the attempt started empty and a prompt was shown.
	Reload       *ReloadDecision
	ChargeBefore int
	ChargeAfter  int
}

// Resolver runs the fire-resolution state machine for one FireAttempt at a time.
//
// Resolve is safe for concurrent use. Attempts on the same weapon serialise
// through ChargeTracker.Lock; the lock is released before a reload prompt
// waits on the operator.
type Resolver struct {
	classifier *Classifier
	charges    *ChargeTracker
	reload     *ReloadInteraction
	docs       host.Documents
	rules      Rules
	out        announcer

	// Policy, when set, may override the outcome of a natural-1 misfire.
	// Injected after construction; nil = rules only.
	Policy MisfirePolicy

	// OnResolved is called after every Resolve with the resolution and the
	// time it took. Injected after construction; nil = no-op.
	OnResolved func(res Resolution, elapsed time.Duration)
}

// NewResolver creates a Resolver.
//
// Precondition: all pointer and interface arguments must be non-nil.
func NewResolver(
	classifier *Classifier,
	charges *ChargeTracker,
	reload *ReloadInteraction,
	docs host.Documents,
	rules Rules,
	notifier host.Notifier,
	chat host.ChatLog,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		classifier: classifier,
		charges:    charges,
		reload:     reload,
		docs:       docs,
		rules:      rules,
		out:        announcer{notifier: notifier, chat: chat, logger: logger},
	}
}

// Rules returns the rules the Resolver was built with.
func (r *Resolver) Rules() Rules { return r.rules }

// Resolve decides whether a.Weapon may fire and applies the charge and
// misfire effects of the attempt.
//
// Order: missing context → classification → empty check (prompt, always
// deny) → misfire on a natural 1 (non-magical only) → consume and allow.
//
// Postcondition: at most one charge is consumed. A non-nil error means a
// persistence call failed; the verdict is then VerdictDeny.
func (r *Resolver) Resolve(ctx context.Context, a FireAttempt) (Resolution, error) {
	start := time.Now()
	res, err := r.resolve(ctx, a)
	if err != nil {
		res.Verdict = VerdictDeny
		res.Outcome = OutcomeFailed
	}
	r.record(a, res, err, time.Since(start))
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, a FireAttempt) (Resolution, error) {
	if a.Actor == nil || a.Weapon == nil {
		return Resolution{Verdict: VerdictAllow, Outcome: OutcomeNotApplicable}, nil
	}
	w := a.Weapon
	res := Resolution{ChargeBefore: w.CurrentCharge, ChargeAfter: w.CurrentCharge}

	isFirearm, err := r.classifier.IsFirearm(ctx, w)
	if err != nil {
		return res, err
	}
	if !isFirearm {
		res.Verdict, res.Outcome = VerdictAllow, OutcomeUnclassified
		return res, nil
	}
	res.Magical = w.IsMagical()

	unlock := r.charges.Lock(w.ID)
	if err := r.charges.Refresh(ctx, w); err != nil {
		unlock()
		return res, err
	}
	if err := w.Validate(); err != nil {
		unlock()
		return res, fmt.Errorf("firearm %q: %w", w.ID, err)
	}
	res.ChargeBefore, res.ChargeAfter = w.CurrentCharge, w.CurrentCharge
	if !r.charges.HasCharge(w) {
		unlock()
		decision, err := r.reload.Prompt(ctx, a.Actor, w)
		res.Reload = &decision
		res.ChargeAfter = w.CurrentCharge
		res.Verdict, res.Outcome = VerdictDeny, OutcomeEmpty
		return res, err
	}
	defer unlock()

	if !res.Magical && r.rules.MisfireEnabled && a.AttackRollTotal == NaturalFailure {
		switch r.misfireOutcome(ctx, a) {
		case OutcomeCracked:
			return r.crack(ctx, a, res)
		case OutcomeFouled:
			return r.foul(ctx, a, res)
		}
	}

	if res.Magical && !r.rules.MagicConsumesCharge {
		res.Verdict, res.Outcome = VerdictAllow, OutcomeFired
		return res, nil
	}
	if err := r.charges.Consume(ctx, w); err != nil {
		return res, err
	}
	res.ChargeAfter = w.CurrentCharge
	res.Verdict, res.Outcome = VerdictAllow, OutcomeFired
	return res, nil
}

// misfireOutcome picks fouled or cracked from the rules, then lets Policy
// override it. Policy answers other than fired, fouled or cracked are ignored.
func (r *Resolver) misfireOutcome(ctx context.Context, a FireAttempt) Outcome {
	outcome := OutcomeFouled
	if a.HasDisadvantage && r.rules.CatastrophicMisfire {
		outcome = OutcomeCracked
	}
	if r.Policy == nil {
		return outcome
	}
	override, ok := r.Policy.MisfireOutcome(ctx, a, outcome)
	if !ok {
		return outcome
	}
	switch override {
	case OutcomeFired, OutcomeFouled, OutcomeCracked:
		return override
	default:
		r.out.logger.Warn("misfire policy returned unusable outcome",
			zap.Stringer("outcome", override),
			zap.Stringer("kept", outcome),
		)
		return outcome
	}
}

// crack unequips the weapon without spending a charge.
func (r *Resolver) crack(ctx context.Context, a FireAttempt, res Resolution) (Resolution, error) {
	w := a.Weapon
	if err := r.docs.Update(ctx, w.ID, map[string]any{FieldEquipped: false}); err != nil {
		return res, fmt.Errorf("unequipping %q: %w", w.ID, err)
	}
	w.Equipped = false
	r.out.announce(ctx, host.LevelError, a.Actor, w, crackedText(a.Actor, w), crackedText(a.Actor, w))
	res.Verdict, res.Outcome = VerdictDeny, OutcomeCracked
	return res, nil
}

// foul spends the misfired shot and blocks the attack.
func (r *Resolver) foul(ctx context.Context, a FireAttempt, res Resolution) (Resolution, error) {
	w := a.Weapon
	if err := r.charges.Consume(ctx, w); err != nil {
		return res, err
	}
	res.ChargeAfter = w.CurrentCharge
	r.out.announce(ctx, host.LevelWarn, a.Actor, w, fouledText(a.Actor, w), fouledText(a.Actor, w))
	res.Verdict, res.Outcome = VerdictDeny, OutcomeFouled
	return res, nil
}

func (r *Resolver) record(a FireAttempt, res Resolution, err error, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Stringer("verdict", res.Verdict),
		zap.Stringer("outcome", res.Outcome),
		zap.Int("roll", a.AttackRollTotal),
		zap.Bool("disadvantage", a.HasDisadvantage),
		zap.Int("charge_before", res.ChargeBefore),
		zap.Int("charge_after", res.ChargeAfter),
		zap.Duration("elapsed", elapsed),
	}
	if a.Weapon != nil {
		fields = append(fields, zap.String("weapon_id", a.Weapon.ID), zap.String("weapon", a.Weapon.Name))
	}
	if a.Actor != nil {
		fields = append(fields, zap.String("actor", a.Actor.Name))
	}
	if err != nil {
		r.out.logger.Error("fire attempt failed", append(fields, zap.Error(err))...)
	} else {
		r.out.logger.Debug("fire attempt resolved", fields...)
	}
	if r.OnResolved != nil {
		r.OnResolved(res, elapsed)
	}
}
