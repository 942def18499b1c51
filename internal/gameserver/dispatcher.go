package gameserver

import (
	"context"
	"errors"
	"sync"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
)

// HookDispatcher is the in-process host event registry. It implements
// firearm.Dispatcher; FirearmService fires it for each incoming RPC.
type HookDispatcher struct {
	mu      sync.RWMutex
	created []firearm.ItemCreatedHook
	attacks []firearm.PreAttackRollHook
}

// NewHookDispatcher returns an empty HookDispatcher.
func NewHookDispatcher() *HookDispatcher {
	return &HookDispatcher{}
}

// OnItemCreated implements firearm.Dispatcher.
func (d *HookDispatcher) OnItemCreated(h firearm.ItemCreatedHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, h)
}

// OnPreAttackRoll implements firearm.Dispatcher.
func (d *HookDispatcher) OnPreAttackRoll(h firearm.PreAttackRollHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attacks = append(d.attacks, h)
}

// FireItemCreated runs every item-created handler in registration order.
//
// Postcondition: every handler runs; their errors are joined.
func (d *HookDispatcher) FireItemCreated(ctx context.Context, item *firearm.Weapon, actor *firearm.Actor) error {
	d.mu.RLock()
	hooks := append([]firearm.ItemCreatedHook(nil), d.created...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx, item, actor); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FirePreAttackRoll runs the pre-attack handlers in registration order and
// stops at the first one that suppresses the roll or fails.
//
// Postcondition: returns true only if every handler returned true.
func (d *HookDispatcher) FirePreAttackRoll(ctx context.Context, attempt firearm.FireAttempt) (bool, error) {
	d.mu.RLock()
	hooks := append([]firearm.PreAttackRollHook(nil), d.attacks...)
	d.mu.RUnlock()

	for _, h := range hooks {
		ok, err := h(ctx, attempt)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
