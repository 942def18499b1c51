package firearm_test

import (
	"context"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host/memory"
)

const pistol = "RHC Basic Issue Pistol"

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type fixture struct {
	docs       *memory.Documents
	notifier   *memory.Notifier
	chat       *memory.ChatLog
	dialog     *memory.ScriptedDialog
	classifier *firearm.Classifier
	charges    *firearm.ChargeTracker
	reload     *firearm.ReloadInteraction
	resolver   *firearm.Resolver
	hooks      *firearm.Hooks
	actor      *firearm.Actor
}

func newFixture(rules firearm.Rules) *fixture {
	logger := zap.NewNop()
	f := &fixture{
		docs:     memory.NewDocuments(),
		notifier: &memory.Notifier{},
		chat:     &memory.ChatLog{},
		dialog:   &memory.ScriptedDialog{Choice: firearm.ChoiceDecline},
		actor:    &firearm.Actor{ID: "actor-1", Name: "Vex"},
	}
	reg := firearm.NewRegistry(pistol, "Musket")
	f.classifier = firearm.NewClassifier(reg, f.docs, firearm.DefaultFlagNamespace, logger)
	f.charges = firearm.NewChargeTracker(f.docs, logger)
	f.reload = firearm.NewReloadInteraction(f.dialog, f.charges, f.notifier, f.chat, logger)
	f.resolver = firearm.NewResolver(f.classifier, f.charges, f.reload, f.docs, rules, f.notifier, f.chat, logger)
	f.hooks = firearm.NewHooks(f.classifier, f.resolver, logger)
	return f
}

// newWeapon stores a weapon document and returns its snapshot. It does not tag it.
func (f *fixture) newWeapon(id, name string, charge, max int, rarity firearm.Rarity) *firearm.Weapon {
	f.docs.Put(id, map[string]any{
		firearm.FieldUsesValue: charge,
		firearm.FieldUsesMax:   max,
		firearm.FieldEquipped:  true,
		firearm.FieldRarity:    string(rarity),
	})
	return &firearm.Weapon{
		ID:            id,
		Name:          name,
		Rarity:        rarity,
		CurrentCharge: charge,
		MaxCharge:     max,
		Equipped:      true,
	}
}

// newFirearm stores a weapon and runs the creation hook on it.
func (f *fixture) newFirearm(t tb, id string, charge, max int, rarity firearm.Rarity) *firearm.Weapon {
	t.Helper()
	w := f.newWeapon(id, pistol, charge, max, rarity)
	require.NoError(t, f.hooks.OnItemCreated(context.Background(), w, f.actor))
	return w
}

func (f *fixture) storedCharge(t tb, id string) int {
	t.Helper()
	v, ok := f.docs.Field(id, firearm.FieldUsesValue)
	require.True(t, ok)
	return v.(int)
}

func (f *fixture) storedEquipped(t tb, id string) bool {
	t.Helper()
	v, ok := f.docs.Field(id, firearm.FieldEquipped)
	require.True(t, ok)
	return v.(bool)
}

func (f *fixture) attempt(w *firearm.Weapon, roll int, disadvantage bool) firearm.FireAttempt {
	return firearm.FireAttempt{
		Actor:           f.actor,
		Weapon:          w,
		AttackRollTotal: roll,
		HasDisadvantage: disadvantage,
	}
}
