package firearm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// Classifier decides whether a weapon is a muzzle-loading firearm.
//
// Name matching happens once, in Tag, when the weapon enters an inventory.
// Fire-time checks read only the persisted flag, so renaming a weapon or
// editing the registry later does not change how an existing weapon fires.
// A weapon that never passed through Tag has no flag and is treated as
// standard.
type Classifier struct {
	registry  *Registry
	docs      host.Documents
	namespace string
	logger    *zap.Logger
}

// NewClassifier creates a Classifier.
//
// Precondition: registry, docs and logger must be non-nil; namespace must be non-empty.
func NewClassifier(registry *Registry, docs host.Documents, namespace string, logger *zap.Logger) *Classifier {
	return &Classifier{
		registry:  registry,
		docs:      docs,
		namespace: namespace,
		logger:    logger,
	}
}

// Classify matches name against the registry.
//
// Postcondition: returns ClassificationMuzzleLoading iff the registry contains name.
func (c *Classifier) Classify(name string) Classification {
	if c.registry.Contains(name) {
		return ClassificationMuzzleLoading
	}
	return ClassificationStandard
}

// Tag classifies w by name and, for muzzle-loading firearms, persists the
// isFirearm flag. The flag is only ever written true.
//
// Precondition: w and actor must be non-nil.
// Postcondition: w.Classification holds the result; the flag is set iff the
// result is ClassificationMuzzleLoading and the write succeeded.
func (c *Classifier) Tag(ctx context.Context, w *Weapon, actor *Actor) (Classification, error) {
	class := c.Classify(w.Name)
	if class != ClassificationMuzzleLoading {
		w.Classification = class
		return class, nil
	}

	c.logger.Info("setting firearm flag",
		zap.String("weapon_id", w.ID),
		zap.String("weapon", w.Name),
		zap.String("actor", actor.Name),
	)
	if err := c.docs.SetFlag(ctx, w.ID, c.namespace, FlagIsFirearm, true); err != nil {
		return ClassificationStandard, fmt.Errorf("flagging %q as firearm: %w", w.ID, err)
	}
	w.Classification = class
	c.logger.Info("weapon flagged as firearm",
		zap.String("weapon_id", w.ID),
		zap.String("weapon", w.Name),
		zap.String("actor", actor.Name),
	)
	return class, nil
}

// IsFirearm reads the persisted flag for w. A missing flag, a false flag, or
// a non-boolean value all mean standard.
//
// Precondition: w must be non-nil.
// Postcondition: w.Classification is updated from the flag on success.
func (c *Classifier) IsFirearm(ctx context.Context, w *Weapon) (bool, error) {
	v, ok, err := c.docs.GetFlag(ctx, w.ID, c.namespace, FlagIsFirearm)
	if err != nil {
		return false, fmt.Errorf("reading firearm flag on %q: %w", w.ID, err)
	}
	flagged, isBool := v.(bool)
	if !ok || !isBool || !flagged {
		w.Classification = ClassificationStandard
		return false, nil
	}
	w.Classification = ClassificationMuzzleLoading
	return true, nil
}
