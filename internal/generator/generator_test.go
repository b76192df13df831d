package generator

import (
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"cybercalc/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesFourUniqueOptionsWithOneCorrect(t *testing.T) {
	g := NewWithSeed(42)

	for level := -1; level <= 6; level++ {
		for i := 0; i < 200; i++ {
			q, err := g.Generate(level)
			require.NoError(t, err, "level %d", level)
			require.Len(t, q.Options, 4)

			ids := map[string]struct{}{}
			values := map[string]struct{}{}
			for _, opt := range q.Options {
				ids[opt.ID] = struct{}{}
				values[opt.Value] = struct{}{}
			}
			require.Equal(t, map[string]struct{}{"a": {}, "b": {}, "c": {}, "d": {}}, ids)
			require.Len(t, values, 4, "duplicate canonical values in %+v", q.Options)

			correct, ok := q.Option(q.CorrectOptionID)
			require.True(t, ok)
			require.NotEmpty(t, correct.Value)
			require.NotEmpty(t, q.Prompt)
			require.NotEmpty(t, q.Explanation)
		}
	}
}

func TestLevelDispatch(t *testing.T) {
	g := NewWithSeed(1)

	cases := map[int]Domain{
		0: Arithmetic,
		1: Arithmetic,
		2: Probability,
		3: Differentiation,
		9: Differentiation,
	}
	for level, want := range cases {
		require.Equal(t, want, g.DomainFor(level), "level %d", level)
	}

	difficulties := map[Domain]domain.Difficulty{
		Arithmetic:      domain.DifficultyEasy,
		Probability:     domain.DifficultyMedium,
		Differentiation: domain.DifficultyHard,
	}
	for d, want := range difficulties {
		q, err := g.GenerateDomain(d)
		require.NoError(t, err)
		require.Equal(t, want, q.Difficulty)
	}
}

func TestCustomBucketBoundaries(t *testing.T) {
	g, err := New(Config{BucketBoundaries: []int{5, 10}}, rand.NewSource(3))
	require.NoError(t, err)
	require.Equal(t, Arithmetic, g.DomainFor(4))
	require.Equal(t, Probability, g.DomainFor(5))
	require.Equal(t, Differentiation, g.DomainFor(10))

	_, err = New(Config{BucketBoundaries: []int{3, 3}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = New(Config{BucketBoundaries: []int{4, 2}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = New(Config{BucketBoundaries: []int{2}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuestionIDsIncrease(t *testing.T) {
	g := NewWithSeed(7)
	first, err := g.Generate(1)
	require.NoError(t, err)
	second, err := g.Generate(3)
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
}

func TestArithmeticInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	seen := map[operator]bool{}

	for i := 0; i < 5000; i++ {
		p := newArithmeticProblem(rnd)
		seen[p.op] = true
		switch p.op {
		case opDiv:
			require.Greater(t, p.right, 0)
			require.Equal(t, p.left, p.right*p.result)
			require.GreaterOrEqual(t, p.result, 1)
			require.LessOrEqual(t, p.result, 10)
		case opSub:
			require.GreaterOrEqual(t, p.result, 0)
			require.Equal(t, p.left-p.right, p.result)
		case opMul:
			require.Equal(t, p.left*p.right, p.result)
		case opAdd:
			require.Equal(t, p.left+p.right, p.result)
		}
	}
	require.Len(t, seen, 4)
}

func TestArithmeticDistractorsStayClose(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	for i := 0; i < 500; i++ {
		q, err := generateArithmetic(rnd)
		require.NoError(t, err)
		correct, _ := q.Option(q.CorrectOptionID)
		want := new(big.Int)
		want.SetString(correct.Value, 10)
		for _, opt := range q.Options {
			got := new(big.Int)
			_, ok := got.SetString(opt.Value, 10)
			require.True(t, ok)
			diff := new(big.Int).Sub(got, want)
			require.LessOrEqual(t, diff.CmpAbs(big.NewInt(10)), 0)
			require.GreaterOrEqual(t, got.Sign(), 0)
		}
	}
}

func TestProbabilityOptionsAreReduced(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	for i := 0; i < 500; i++ {
		q, err := generateProbability(rnd)
		require.NoError(t, err)
		for _, opt := range q.Options {
			r, ok := new(big.Rat).SetString(opt.Value)
			require.True(t, ok, "value %q", opt.Value)
			require.Equal(t, r.RatString(), opt.Value)
			require.Equal(t, fractionOption(r).Formula, opt.Formula)
		}
	}
}

func TestMarblesWithEqualCountsStillHaveUniqueOptions(t *testing.T) {
	s := scenario{favorable: 4, total: 8}
	correct := fractionOption(big.NewRat(4, 8))
	rnd := rand.New(rand.NewSource(1))
	distractors, err := collectDistractors(correct, poolDrawer(rnd, probabilityPool(s)))
	require.NoError(t, err)
	for _, d := range distractors {
		require.NotEqual(t, "1/2", d.Value)
	}
}

func TestMonomialCanonicalValue(t *testing.T) {
	require.Equal(t, "3x^{2}", monomial(3, 2).Formula)
	require.Equal(t, "x", monomial(1, 1).Formula)
	require.Equal(t, "-x^{3}", monomial(-1, 3).Formula)
	require.Equal(t, `\frac{1}{x}`, monomial(1, -1).Formula)
	require.Equal(t, `\frac{-1}{x^{2}}`, monomial(-1, -2).Formula)
	require.Equal(t, "0", monomial(0, 5).Formula)
	require.Equal(t, monomial(0, 5).Value, monomial(0, 1).Value)
}

func TestPowerRuleAnswer(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		c := powerCase(rnd)
		for _, w := range c.wrong {
			if w.Value == c.derivative.Value {
				continue
			}
			require.NotEqual(t, c.derivative.Formula, w.Formula)
		}
	}
}

func TestCollectDistractorsFailsWhenPoolExhausted(t *testing.T) {
	correct := integerOption(5)
	pool := []domain.Option{integerOption(5), integerOption(6), integerOption(6)}
	rnd := rand.New(rand.NewSource(1))

	_, err := collectDistractors(correct, poolDrawer(rnd, pool))
	require.True(t, errors.Is(err, domain.ErrGeneration))
}

func TestCollectDistractorsIsBounded(t *testing.T) {
	calls := 0
	_, err := collectDistractors(integerOption(1), func() (domain.Option, bool) {
		calls++
		return integerOption(1), true
	})
	require.ErrorIs(t, err, domain.ErrGeneration)
	require.Equal(t, maxDistractorAttempts, calls)
}
