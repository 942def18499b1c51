package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/dice"
)

// fixedSource replays values in order; each value v yields face v+1.
type fixedSource struct {
	vals []int
	i    int
}

func (f *fixedSource) Intn(n int) int {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v % n
}

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total(), "Total() must equal sum(Dice)+Modifier")
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, "2d6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Dice: []int{4}}
	assert.Panics(t, func() { _ = r.String() })
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want dice.Expression
	}{
		{"d20", dice.Expression{Raw: "d20", Count: 1, Sides: 20}},
		{"2d6+3", dice.Expression{Raw: "2d6+3", Count: 2, Sides: 6, Modifier: 3}},
		{"4d8-2", dice.Expression{Raw: "4d8-2", Count: 4, Sides: 8, Modifier: -2}},
		{"4d6kh3", dice.Expression{Raw: "4d6kh3", Count: 4, Sides: 6, Keep: dice.KeepHighest, KeepN: 3}},
		{"2d20kl1+5", dice.Expression{Raw: "2d20kl1+5", Count: 2, Sides: 20, Modifier: 5, Keep: dice.KeepLowest, KeepN: 1}},
		{"2D20KL1", dice.Expression{Raw: "2D20KL1", Count: 2, Sides: 20, Keep: dice.KeepLowest, KeepN: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := dice.Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "xd6", "2d1", "2d", "2d6kh2", "2d6kl0", "1d20kl1", "2d6+x", "d-3"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, "Parse(%q) should fail", in)
	}
}

func TestRoll_KeepLowestAndHighest(t *testing.T) {
	src := &fixedSource{vals: []int{16, 2}} // faces 17 and 3
	res, err := dice.Roll(dice.MustParse("2d20kl1"), src)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Dice)
	assert.Equal(t, []int{17}, res.Dropped)
	assert.Equal(t, 3, res.Natural())

	src = &fixedSource{vals: []int{16, 2}}
	res, err = dice.Roll(dice.MustParse("2d20kh1+2"), src)
	require.NoError(t, err)
	assert.Equal(t, []int{17}, res.Dice)
	assert.Equal(t, 19, res.Total())
}

func TestAttackExpression(t *testing.T) {
	assert.Equal(t, "1d20", dice.AttackExpression(false).Raw)
	assert.Equal(t, "2d20kl1", dice.AttackExpression(true).Raw)
}

func TestRoller_AttackLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := dice.NewLoggedRoller(&fixedSource{vals: []int{0, 19}}, zap.New(core))

	res, err := r.Attack(true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Natural())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dice roll", entry.Message)
	assert.Equal(t, int64(1), entry.ContextMap()["total"])
}

func TestSeededSource_Deterministic(t *testing.T) {
	a, b := dice.NewSeededSource(42), dice.NewSeededSource(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Intn(20), b.Intn(20))
	}
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
	assert.Panics(t, func() { dice.NewSeededSource(1).Intn(0) })
}

func TestRollResult_Total_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		faces := rapid.SliceOf(rapid.IntRange(1, 20)).Draw(rt, "dice")
		modifier := rapid.IntRange(-100, 100).Draw(rt, "modifier")
		r := dice.RollResult{Expression: "Nd6+M", Dice: faces, Modifier: modifier}

		expected := modifier
		for _, d := range faces {
			expected += d
		}
		assert.Equal(rt, expected, r.Total())
	})
}

func TestRollResult_String_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.StringMatching(`[0-9]+d[0-9]+[+-][0-9]+`).Draw(rt, "expression")
		faces := rapid.SliceOfN(rapid.IntRange(1, 20), 1, 10).Draw(rt, "dice")
		r := dice.RollResult{Expression: expr, Dice: faces, Modifier: rapid.IntRange(-100, 100).Draw(rt, "modifier")}

		s := r.String()
		assert.True(rt, strings.Contains(s, expr))
		assert.Contains(rt, s, fmt.Sprintf("= %d", r.Total()))
	})
}

func TestRoll_KeepProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(2, 8).Draw(rt, "count")
		sides := rapid.IntRange(2, 20).Draw(rt, "sides")
		keepN := rapid.IntRange(1, count-1).Draw(rt, "keep")
		lowest := rapid.Bool().Draw(rt, "lowest")
		tag := "kh"
		if lowest {
			tag = "kl"
		}
		expr := dice.MustParse(fmt.Sprintf("%dd%d%s%d", count, sides, tag, keepN))

		res, err := dice.Roll(expr, dice.NewSeededSource(rapid.Int64().Draw(rt, "seed")))
		require.NoError(rt, err)
		if len(res.Dice) != keepN || len(res.Dice)+len(res.Dropped) != count {
			rt.Fatalf("kept %d dropped %d for %s", len(res.Dice), len(res.Dropped), expr.Raw)
		}
		for _, k := range res.Dice {
			for _, d := range res.Dropped {
				if lowest && k > d || !lowest && k < d {
					rt.Fatalf("%s kept %v over dropped %v", expr.Raw, res.Dice, res.Dropped)
				}
			}
			if k < 1 || k > sides {
				rt.Fatalf("face %d out of range 1..%d", k, sides)
			}
		}
	})
}
