package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host/memory"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/storage/postgres"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/testutil"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func makeWeapon(id string, charge, max int) *firearm.Weapon {
	return &firearm.Weapon{
		ID:            id,
		Name:          "RHC Basic Issue Pistol",
		Img:           "icons/weapons/guns/gun-pistol-flintlock.webp",
		Rarity:        firearm.RarityCommon,
		CurrentCharge: charge,
		MaxCharge:     max,
		Equipped:      true,
	}
}

var (
	_ host.Documents   = (*postgres.WeaponRepository)(nil)
	_ host.FieldReader = (*postgres.WeaponRepository)(nil)
	_ host.ChatLog     = (*postgres.ChatRepository)(nil)
)

func TestWeaponRepository_CreateAndGet(t *testing.T) {
	repo := postgres.NewWeaponRepository(testutil.NewPool(t))
	ctx := context.Background()

	w := makeWeapon(uniqueID("w"), 3, 6)
	require.NoError(t, repo.Create(ctx, w, "actor-1"))

	got, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, w.Img, got.Img)
	assert.Equal(t, firearm.RarityCommon, got.Rarity)
	assert.Equal(t, 3, got.CurrentCharge)
	assert.Equal(t, 6, got.MaxCharge)
	assert.True(t, got.Equipped)

	assert.ErrorIs(t, repo.Create(ctx, w, "actor-1"), postgres.ErrWeaponExists)
}

func TestWeaponRepository_GetMissing(t *testing.T) {
	repo := postgres.NewWeaponRepository(testutil.NewPool(t))
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, postgres.ErrWeaponNotFound)
}

func TestWeaponRepository_UpdateAndFields(t *testing.T) {
	repo := postgres.NewWeaponRepository(testutil.NewPool(t))
	ctx := context.Background()
	w := makeWeapon(uniqueID("w"), 3, 6)
	require.NoError(t, repo.Create(ctx, w, "actor-1"))

	require.NoError(t, repo.Update(ctx, w.ID, map[string]any{
		firearm.FieldUsesValue: 2,
		firearm.FieldEquipped:  false,
	}))

	fields, err := repo.Fields(ctx, w.ID, firearm.FieldUsesValue, firearm.FieldEquipped)
	require.NoError(t, err)
	assert.Equal(t, 2, fields[firearm.FieldUsesValue])
	assert.Equal(t, false, fields[firearm.FieldEquipped])
	assert.NotContains(t, fields, firearm.FieldUsesMax)

	err = repo.Update(ctx, w.ID, map[string]any{"system.quantity": 1})
	assert.ErrorIs(t, err, postgres.ErrUnknownField)
	assert.ErrorIs(t, repo.Update(ctx, "nope", map[string]any{firearm.FieldUsesValue: 1}), postgres.ErrWeaponNotFound)
}

func TestWeaponRepository_Flags(t *testing.T) {
	repo := postgres.NewWeaponRepository(testutil.NewPool(t))
	ctx := context.Background()
	w := makeWeapon(uniqueID("w"), 1, 1)
	require.NoError(t, repo.Create(ctx, w, "actor-1"))

	_, ok, err := repo.GetFlag(ctx, w.ID, firearm.DefaultFlagNamespace, firearm.FlagIsFirearm)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetFlag(ctx, w.ID, firearm.DefaultFlagNamespace, firearm.FlagIsFirearm, true))
	require.NoError(t, repo.SetFlag(ctx, w.ID, firearm.DefaultFlagNamespace, "note", "cracked once"))

	v, ok, err := repo.GetFlag(ctx, w.ID, firearm.DefaultFlagNamespace, firearm.FlagIsFirearm)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, true, v)

	v, ok, err = repo.GetFlag(ctx, w.ID, firearm.DefaultFlagNamespace, "note")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cracked once", v)

	_, ok, err = repo.GetFlag(ctx, "nope", firearm.DefaultFlagNamespace, firearm.FlagIsFirearm)
	require.NoError(t, err, "an unknown weapon reads as unflagged")
	assert.False(t, ok)
	assert.ErrorIs(t, repo.SetFlag(ctx, "nope", firearm.DefaultFlagNamespace, "k", 1), postgres.ErrWeaponNotFound)
}

func TestWeaponRepository_ListByActor(t *testing.T) {
	repo := postgres.NewWeaponRepository(testutil.NewPool(t))
	ctx := context.Background()
	actor := uniqueID("actor")

	musket := makeWeapon(uniqueID("m"), 1, 1)
	musket.Name = "Musket"
	require.NoError(t, repo.Create(ctx, musket, actor))
	require.NoError(t, repo.Create(ctx, makeWeapon(uniqueID("p"), 6, 6), actor))

	list, err := repo.ListByActor(ctx, actor)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Musket", list[0].Name)
}

// TestWeaponRepository_DrivesResolver runs the full fire path against
// PostgreSQL, including the concurrent no-lost-update guarantee.
func TestWeaponRepository_DrivesResolver(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewWeaponRepository(pool)
	chat := postgres.NewChatRepository(pool)
	ctx := context.Background()
	logger := zap.NewNop()

	reg := firearm.NewRegistry("RHC Basic Issue Pistol")
	classifier := firearm.NewClassifier(reg, repo, firearm.DefaultFlagNamespace, logger)
	charges := firearm.NewChargeTracker(repo, logger)
	notifier := &memory.Notifier{}
	reload := firearm.NewReloadInteraction(&memory.ScriptedDialog{Choice: firearm.ChoiceDecline}, charges, notifier, chat, logger)
	resolver := firearm.NewResolver(classifier, charges, reload, repo, firearm.DefaultRules(), notifier, chat, logger)

	actor := &firearm.Actor{ID: "actor-1", Name: "Vex"}
	w := makeWeapon(uniqueID("w"), 4, 6)
	require.NoError(t, repo.Create(ctx, w, actor.ID))
	_, err := classifier.Tag(ctx, w, actor)
	require.NoError(t, err)

	res, err := resolver.Resolve(ctx, firearm.FireAttempt{Actor: actor, Weapon: w, AttackRollTotal: 1, HasDisadvantage: true})
	require.NoError(t, err)
	assert.Equal(t, firearm.OutcomeCracked, res.Outcome)

	stored, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, stored.Equipped)
	assert.Equal(t, 4, stored.CurrentCharge)

	msgs, err := chat.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message.Content, "barrel has cracked")

	done := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() {
			snap := makeWeapon(w.ID, 4, 6)
			res, err := resolver.Resolve(ctx, firearm.FireAttempt{Actor: actor, Weapon: snap, AttackRollTotal: 15})
			done <- err == nil && res.Verdict.Allowed()
		}()
	}
	allowed := 0
	for i := 0; i < 8; i++ {
		if <-done {
			allowed++
		}
	}
	assert.Equal(t, 4, allowed)

	stored, err = repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentCharge)
}
