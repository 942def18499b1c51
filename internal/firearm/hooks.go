package firearm

import (
	"context"

	"go.uber.org/zap"
)

// Host event names the hooks answer to.
const (
	EventItemCreated   = "createItem"
	EventPreAttackRoll = "midi-qol.preItemRoll"
)

// ItemCreatedHook handles a weapon entering an actor's inventory.
type ItemCreatedHook func(ctx context.Context, item *Weapon, actor *Actor) error

// PreAttackRollHook handles an imminent attack roll; false suppresses the roll.
type PreAttackRollHook func(ctx context.Context, attempt FireAttempt) (bool, error)

// Dispatcher is the host event registry the hooks attach to at startup.
type Dispatcher interface {
	OnItemCreated(h ItemCreatedHook)
	OnPreAttackRoll(h PreAttackRollHook)
}

// Hooks adapts the Classifier and Resolver to host events.
type Hooks struct {
	classifier *Classifier
	resolver   *Resolver
	logger     *zap.Logger
}

// NewHooks creates Hooks.
//
// Precondition: all arguments must be non-nil.
func NewHooks(classifier *Classifier, resolver *Resolver, logger *zap.Logger) *Hooks {
	return &Hooks{classifier: classifier, resolver: resolver, logger: logger}
}

// Register attaches both handlers to d.
func (h *Hooks) Register(d Dispatcher) {
	d.OnItemCreated(h.OnItemCreated)
	d.OnPreAttackRoll(h.OnPreAttackRoll)
	h.logger.Info("firearm hooks registered",
		zap.Strings("events", []string{EventItemCreated, EventPreAttackRoll}),
	)
}

// OnItemCreated tags a newly created weapon. A missing item or actor is ignored.
func (h *Hooks) OnItemCreated(ctx context.Context, item *Weapon, actor *Actor) error {
	if item == nil || actor == nil {
		return nil
	}
	_, err := h.classifier.Tag(ctx, item, actor)
	return err
}

// OnPreAttackRoll resolves the attempt and returns whether the roll proceeds.
//
// Postcondition: returns false whenever err is non-nil.
func (h *Hooks) OnPreAttackRoll(ctx context.Context, attempt FireAttempt) (bool, error) {
	res, err := h.resolver.Resolve(ctx, attempt)
	if err != nil {
		return false, err
	}
	return res.Verdict.Allowed(), nil
}
