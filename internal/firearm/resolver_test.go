package firearm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// TestResolve_NormalShot_ConsumesOneAndAllows covers the 6-capacity pistol
// with one charge left firing on a 15.
func TestResolve_NormalShot_ConsumesOneAndAllows(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 1, 6, firearm.RarityCommon)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.NoError(t, err)

	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, firearm.OutcomeFired, res.Outcome)
	assert.Equal(t, 0, w.CurrentCharge)
	assert.Equal(t, 0, f.storedCharge(t, "w1"))
	assert.Equal(t, 1, res.ChargeBefore)
	assert.Equal(t, 0, res.ChargeAfter)
	assert.Empty(t, f.dialog.Requests())
}

// TestResolve_Empty_DeclineKeepsEmptyAndDenies covers the same pistol at zero
// charge with the operator declining.
func TestResolve_Empty_DeclineKeepsEmptyAndDenies(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	f.dialog.Choice = firearm.ChoiceDecline
	w := f.newFirearm(t, "w1", 0, 6, firearm.RarityCommon)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.NoError(t, err)

	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeEmpty, res.Outcome)
	require.NotNil(t, res.Reload)
	assert.False(t, res.Reload.Reloaded)
	assert.Equal(t, 0, f.storedCharge(t, "w1"))
	require.Len(t, f.dialog.Requests(), 1)

	msgs := f.chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Vex has decided not to reload their RHC Basic Issue Pistol.", msgs[0].Content)
	assert.Equal(t, "Vex", msgs[0].Speaker)
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Vex chose not to reload.", sent[0].Message)
	assert.Equal(t, host.LevelInfo, sent[0].Level)
}

// TestResolve_Empty_ReloadRefillsButStillDenies verifies the blocked attempt
// stays blocked after a reload and the next attempt fires.
func TestResolve_Empty_ReloadRefillsButStillDenies(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	f.dialog.Choice = firearm.ChoiceReload
	w := f.newFirearm(t, "w1", 0, 6, firearm.RarityCommon)
	ctx := context.Background()

	res, err := f.resolver.Resolve(ctx, f.attempt(w, 15, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	require.NotNil(t, res.Reload)
	assert.True(t, res.Reload.Reloaded)
	assert.Equal(t, 6, w.CurrentCharge)
	assert.Equal(t, 6, f.storedCharge(t, "w1"))
	assert.Equal(t, 6, res.ChargeAfter)
	assert.Equal(t, "Vex has reloaded their RHC Basic Issue Pistol.", f.chat.Messages()[0].Content)

	res, err = f.resolver.Resolve(ctx, f.attempt(w, 15, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, 5, f.storedCharge(t, "w1"))
}

// TestResolve_Catastrophic_UnequipsWithoutConsuming covers charge 4, natural 1
// with disadvantage on a non-magical pistol.
func TestResolve_Catastrophic_UnequipsWithoutConsuming(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 4, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.NoError(t, err)

	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeCracked, res.Outcome)
	assert.False(t, w.Equipped)
	assert.False(t, f.storedEquipped(t, "w1"))
	assert.Equal(t, 4, f.storedCharge(t, "w1"))
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, host.LevelError, sent[0].Level)
	assert.Contains(t, sent[0].Message, "barrel has cracked")
	require.Len(t, f.chat.Messages(), 1)
}

// TestResolve_Fouled_ConsumesAndDenies covers a natural 1 without disadvantage.
func TestResolve_Fouled_ConsumesAndDenies(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 4, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, false))
	require.NoError(t, err)

	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeFouled, res.Outcome)
	assert.Equal(t, 3, f.storedCharge(t, "w1"))
	assert.True(t, f.storedEquipped(t, "w1"))
	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, host.LevelWarn, sent[0].Level)
	assert.Equal(t, "Vex's RHC Basic Issue Pistol misfires! The barrel must be cleared.", sent[0].Message)
}

func TestResolve_Magical_SkipsMisfireButConsumes(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 3, 6, firearm.RarityRare)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.NoError(t, err)

	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, firearm.OutcomeFired, res.Outcome)
	assert.True(t, res.Magical)
	assert.Equal(t, 2, f.storedCharge(t, "w1"))
	assert.True(t, f.storedEquipped(t, "w1"))
	assert.Empty(t, f.notifier.Sent())
}

func TestResolve_Magical_NoConsumeWhenRuleOff(t *testing.T) {
	rules := firearm.DefaultRules()
	rules.MagicConsumesCharge = false
	f := newFixture(rules)
	w := f.newFirearm(t, "w1", 3, 6, firearm.RarityLegendary)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 12, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, 3, f.storedCharge(t, "w1"))
}

func TestResolve_Magical_EmptyStillPrompts(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 0, 6, firearm.RarityRare)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 12, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeEmpty, res.Outcome)
	assert.Len(t, f.dialog.Requests(), 1)
}

func TestResolve_CatastrophicRuleOff_FoulsInstead(t *testing.T) {
	rules := firearm.DefaultRules()
	rules.CatastrophicMisfire = false
	f := newFixture(rules)
	w := f.newFirearm(t, "w1", 4, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.NoError(t, err)
	assert.Equal(t, firearm.OutcomeFouled, res.Outcome)
	assert.Equal(t, 3, f.storedCharge(t, "w1"))
	assert.True(t, f.storedEquipped(t, "w1"))
}

func TestResolve_MisfireRuleOff_NaturalOneFires(t *testing.T) {
	f := newFixture(firearm.Rules{MagicConsumesCharge: true})
	w := f.newFirearm(t, "w1", 4, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, 3, f.storedCharge(t, "w1"))
	assert.True(t, f.storedEquipped(t, "w1"))
}

func TestResolve_MissingContext_AllowsSilently(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)
	writes := f.docs.Writes

	res, err := f.resolver.Resolve(context.Background(), firearm.FireAttempt{Weapon: w, AttackRollTotal: 1})
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, firearm.OutcomeNotApplicable, res.Outcome)

	res, err = f.resolver.Resolve(context.Background(), firearm.FireAttempt{Actor: f.actor})
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, writes, f.docs.Writes)
}

// TestResolve_UntaggedRegisteredName_Bypasses documents the known gap: a
// weapon imported without passing through the creation hook carries no flag
// and is not managed even though its name is registered.
func TestResolve_UntaggedRegisteredName_Bypasses(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newWeapon("w1", pistol, 0, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.NoError(t, err)
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
	assert.Equal(t, firearm.OutcomeUnclassified, res.Outcome)
	assert.Equal(t, 0, f.docs.Writes)
	assert.Empty(t, f.dialog.Requests())
}

func TestResolve_NeverCreatedWeapon_Bypasses(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	for _, name := range []string{"Longsword", pistol} {
		w := &firearm.Weapon{ID: "unseen-" + name, Name: name, CurrentCharge: 0, MaxCharge: 6}

		res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
		require.NoError(t, err, name)
		assert.Equal(t, firearm.VerdictAllow, res.Verdict, name)
		assert.Equal(t, firearm.OutcomeUnclassified, res.Outcome, name)
	}
	assert.Equal(t, 0, f.docs.Writes)
	assert.Empty(t, f.dialog.Requests())
	assert.Empty(t, f.chat.Messages())
}

func TestResolve_PersistenceFailure_DeniesWithError(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)
	boom := errors.New("document write rejected")
	f.docs.FailWith = boom

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, w.CurrentCharge, "snapshot must not move when the write fails")

	f.docs.FailWith = nil
	res, err = f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.NoError(t, err)
	assert.Equal(t, 1, f.storedCharge(t, "w1"), "retry must decrement exactly once")
	assert.Equal(t, firearm.VerdictAllow, res.Verdict)
}

func TestResolve_CrackPersistenceFailure(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)
	f.docs.FailWith = errors.New("offline")

	_, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, true))
	require.Error(t, err)
	assert.True(t, w.Equipped)
	assert.Empty(t, f.notifier.Sent())
}

func TestResolve_ReloadPersistenceFailure(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	f.dialog.Choice = firearm.ChoiceReload
	w := f.newFirearm(t, "w1", 0, 6, firearm.RarityNone)
	f.docs.FailWith = errors.New("offline")

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.Error(t, err)
	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, 0, w.CurrentCharge)
}

func TestResolve_ChatFailureDoesNotChangeVerdict(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	f.chat.FailWith = errors.New("chat offline")
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 1, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.OutcomeFouled, res.Outcome)
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestResolve_StaleSnapshotUsesStoredCharge(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 0, 6, firearm.RarityNone)
	w.CurrentCharge = 5 // stale event data

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.NoError(t, err)
	assert.Equal(t, firearm.OutcomeEmpty, res.Outcome)
}

func TestResolve_FirearmWithInvalidStoredChargeFails(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)
	require.NoError(t, f.docs.Update(context.Background(), "w1", map[string]any{firearm.FieldUsesValue: 9}))
	writes := f.docs.Writes

	res, err := f.resolver.Resolve(context.Background(), f.attempt(w, 15, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds MaxCharge")
	assert.Equal(t, firearm.VerdictDeny, res.Verdict)
	assert.Equal(t, firearm.OutcomeFailed, res.Outcome)
	assert.Equal(t, writes, f.docs.Writes)
}

func TestResolve_OnResolvedCalled(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	w := f.newFirearm(t, "w1", 2, 6, firearm.RarityNone)
	var got []firearm.Resolution
	f.resolver.OnResolved = func(res firearm.Resolution, _ time.Duration) {
		got = append(got, res)
	}

	_, err := f.resolver.Resolve(context.Background(), f.attempt(w, 10, false))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, firearm.OutcomeFired, got[0].Outcome)
}

// TestResolve_ConcurrentAttempts_NoLostUpdate fires many attempts at one
// weapon, each with its own stale snapshot, and checks every charge is spent
// exactly once.
func TestResolve_ConcurrentAttempts_NoLostUpdate(t *testing.T) {
	f := newFixture(firearm.DefaultRules())
	const charges, attempts = 10, 25
	f.newFirearm(t, "w1", charges, charges, firearm.RarityNone)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := &firearm.Weapon{ID: "w1", Name: pistol, CurrentCharge: charges, MaxCharge: charges, Equipped: true}
			res, err := f.resolver.Resolve(context.Background(), f.attempt(snap, 15, false))
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			if res.Verdict.Allowed() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, charges, allowed)
	assert.Equal(t, 0, f.storedCharge(t, "w1"))
}

func TestVerdictAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "allow", firearm.VerdictAllow.String())
	assert.Equal(t, "deny", firearm.VerdictDeny.String())
	assert.Equal(t, "cracked", firearm.OutcomeCracked.String())
	assert.Equal(t, "unknown", firearm.Outcome(99).String())
}

// Property-based tests

func TestProperty_UnclassifiedWeaponsAlwaysAllowedUntouched(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(firearm.DefaultRules())
		name := rapid.StringMatching(`[A-Za-z ]{1,20}`).Filter(func(s string) bool {
			return s != pistol && s != "Musket"
		}).Draw(rt, "name")
		charge := rapid.IntRange(0, 10).Draw(rt, "charge")
		w := f.newWeapon("w", name, charge, 10, firearm.RarityNone)
		_, err := f.classifier.Tag(context.Background(), w, f.actor)
		require.NoError(rt, err)

		roll := rapid.IntRange(1, 30).Draw(rt, "roll")
		dis := rapid.Bool().Draw(rt, "disadvantage")
		res, err := f.resolver.Resolve(context.Background(), f.attempt(w, roll, dis))
		require.NoError(rt, err)
		if !res.Verdict.Allowed() {
			rt.Fatalf("unclassified weapon denied")
		}
		if f.docs.Writes != 0 {
			rt.Fatalf("unclassified weapon mutated: %d writes", f.docs.Writes)
		}
	})
}

func TestProperty_ChargedNonOneRollDecrementsByOne(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(firearm.DefaultRules())
		max := rapid.IntRange(1, 12).Draw(rt, "max")
		charge := rapid.IntRange(1, max).Draw(rt, "charge")
		roll := rapid.IntRange(2, 40).Draw(rt, "roll")
		rarity := rapid.SampledFrom([]firearm.Rarity{firearm.RarityNone, firearm.RarityCommon, firearm.RarityRare}).Draw(rt, "rarity")
		w := f.newFirearm(rt, "w", charge, max, rarity)

		res, err := f.resolver.Resolve(context.Background(), f.attempt(w, roll, rapid.Bool().Draw(rt, "dis")))
		require.NoError(rt, err)
		if !res.Verdict.Allowed() {
			rt.Fatalf("charged weapon with roll %d denied", roll)
		}
		if got := f.storedCharge(rt, "w"); got != charge-1 {
			rt.Fatalf("charge %d -> %d, want %d", charge, got, charge-1)
		}
	})
}

func TestProperty_EmptyAlwaysDenied(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(firearm.DefaultRules())
		reload := rapid.Bool().Draw(rt, "reload")
		if reload {
			f.dialog.Choice = firearm.ChoiceReload
		}
		max := rapid.IntRange(1, 12).Draw(rt, "max")
		w := f.newFirearm(rt, "w", 0, max, firearm.RarityNone)

		res, err := f.resolver.Resolve(context.Background(), f.attempt(w, rapid.IntRange(1, 30).Draw(rt, "roll"), false))
		require.NoError(rt, err)
		if res.Verdict.Allowed() {
			rt.Fatalf("empty weapon allowed")
		}
		want := 0
		if reload {
			want = max
		}
		if got := f.storedCharge(rt, "w"); got != want {
			rt.Fatalf("charge after prompt = %d, want %d", got, want)
		}
	})
}

func TestProperty_ChargeStaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(firearm.DefaultRules())
		f.dialog.Choice = firearm.ChoiceReload
		max := rapid.IntRange(1, 6).Draw(rt, "max")
		w := f.newFirearm(rt, "w", max, max, firearm.RarityNone)

		rolls := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 30).Draw(rt, "rolls")
		for _, roll := range rolls {
			_, err := f.resolver.Resolve(context.Background(), f.attempt(w, roll, false))
			require.NoError(rt, err)
			got := f.storedCharge(rt, "w")
			if got < 0 || got > max {
				rt.Fatalf("charge %d out of range [0, %d]", got, max)
			}
		}
	})
}
