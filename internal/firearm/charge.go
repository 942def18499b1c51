package firearm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// ErrChargeDepleted is returned by Consume when the weapon has no charge left.
var ErrChargeDepleted = errors.New("firearm: no charge loaded")

// ChargeTracker performs consume and reload transitions on a weapon's charge
// and persists each one through host.Documents.
//
// The in-memory Weapon is changed only after the write succeeds, so a failed
// write leaves the snapshot matching the document and a retry never
// decrements twice.
type ChargeTracker struct {
	docs   host.Documents
	logger *zap.Logger
	locks  sync.Map // weapon ID -> *sync.Mutex
}

// NewChargeTracker creates a ChargeTracker.
//
// Precondition: docs and logger must be non-nil.
func NewChargeTracker(docs host.Documents, logger *zap.Logger) *ChargeTracker {
	return &ChargeTracker{docs: docs, logger: logger}
}

// Lock enters the mutual-exclusion scope for weaponID and returns the
// function that leaves it. Callers hold it across HasCharge and Consume, and
// around Reload. Consume and Reload do not lock on their own.
func (t *ChargeTracker) Lock(weaponID string) (unlock func()) {
	m, _ := t.locks.LoadOrStore(weaponID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Refresh reloads w's charge fields from the store when the store can read
// them back (host.FieldReader). Otherwise w is left as the event delivered it.
// Call it inside Lock so the read and the following write are one step.
func (t *ChargeTracker) Refresh(ctx context.Context, w *Weapon) error {
	fr, ok := t.docs.(host.FieldReader)
	if !ok {
		return nil
	}
	fields, err := fr.Fields(ctx, w.ID, FieldUsesValue, FieldUsesMax)
	if err != nil {
		return fmt.Errorf("refreshing charge on %q: %w", w.ID, err)
	}
	if v, ok := asInt(fields[FieldUsesValue]); ok {
		w.CurrentCharge = v
	}
	if v, ok := asInt(fields[FieldUsesMax]); ok {
		w.MaxCharge = v
	}
	return nil
}

// asInt accepts the integer shapes stores and decoders hand back.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// HasCharge reports whether w has at least one charge loaded.
//
// Postcondition: result == (w.CurrentCharge > 0).
func (t *ChargeTracker) HasCharge(w *Weapon) bool {
	return w.CurrentCharge > 0
}

// Consume spends one charge.
//
// Precondition: HasCharge(w); otherwise ErrChargeDepleted is returned and nothing is written.
// Postcondition: on success w.CurrentCharge is one lower and persisted.
func (t *ChargeTracker) Consume(ctx context.Context, w *Weapon) error {
	if !t.HasCharge(w) {
		return fmt.Errorf("consuming charge on %q: %w", w.ID, ErrChargeDepleted)
	}
	next := w.CurrentCharge - 1
	if err := t.docs.Update(ctx, w.ID, map[string]any{FieldUsesValue: next}); err != nil {
		return fmt.Errorf("persisting charge on %q: %w", w.ID, err)
	}
	w.CurrentCharge = next
	t.logger.Debug("charge consumed",
		zap.String("weapon_id", w.ID),
		zap.Int("charge", w.CurrentCharge),
		zap.Int("max_charge", w.MaxCharge),
	)
	return nil
}

// Reload restores w to its full charge. Reloading a full weapon is harmless.
//
// Postcondition: on success w.CurrentCharge == w.MaxCharge and is persisted.
func (t *ChargeTracker) Reload(ctx context.Context, w *Weapon) error {
	if err := t.docs.Update(ctx, w.ID, map[string]any{FieldUsesValue: w.MaxCharge}); err != nil {
		return fmt.Errorf("persisting reload on %q: %w", w.ID, err)
	}
	w.CurrentCharge = w.MaxCharge
	t.logger.Debug("weapon reloaded",
		zap.String("weapon_id", w.ID),
		zap.Int("charge", w.CurrentCharge),
	)
	return nil
}
