// Package generator builds math questions for the three practice domains and
// arranges their answer options.
package generator

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"cybercalc/internal/domain"
)

// Domain names a family of generated questions.
type Domain string

const (
	Arithmetic      Domain = "arithmetic"
	Probability     Domain = "probability"
	Differentiation Domain = "differentiation"
)

// Domains lists the domains in dispatch order: bucket i of the level scale maps to Domains[i].
var Domains = []Domain{Arithmetic, Probability, Differentiation}

// DefaultBucketBoundaries maps level < 2 to arithmetic, level 2 to probability and 3+ to differentiation.
var DefaultBucketBoundaries = []int{2, 3}

// maxDistractorAttempts bounds how many candidates are drawn before giving up on a question.
const maxDistractorAttempts = 64

// Config controls level dispatch.
type Config struct {
	// BucketBoundaries holds len(Domains)-1 strictly increasing levels. A level falls in bucket i
	// when exactly i boundaries are <= level.
	BucketBoundaries []int
}

// Generator produces questions. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	buckets []int
	nextID  int
}

// New builds a generator drawing from src. A nil src seeds from the clock.
func New(cfg Config, src rand.Source) (*Generator, error) {
	buckets := cfg.BucketBoundaries
	if len(buckets) == 0 {
		buckets = DefaultBucketBoundaries
	}
	if len(buckets) != len(Domains)-1 {
		return nil, fmt.Errorf("%w: need %d bucket boundaries, got %d", domain.ErrInvalidInput, len(Domains)-1, len(buckets))
	}
	if !sort.SliceIsSorted(buckets, func(i, j int) bool { return buckets[i] < buckets[j] }) || hasDuplicates(buckets) {
		return nil, fmt.Errorf("%w: bucket boundaries must be strictly increasing: %v", domain.ErrInvalidInput, buckets)
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{
		rnd:     rand.New(src),
		buckets: append([]int(nil), buckets...),
	}, nil
}

// NewWithSeed is a convenience for deterministic generators.
func NewWithSeed(seed int64) *Generator {
	g, _ := New(Config{}, rand.NewSource(seed))
	return g
}

// DomainFor reports which domain a level dispatches to.
func (g *Generator) DomainFor(level int) Domain {
	idx := 0
	for _, b := range g.buckets {
		if level >= b {
			idx++
		}
	}
	return Domains[idx]
}

// Generate builds a question for the given level.
func (g *Generator) Generate(level int) (domain.Question, error) {
	return g.GenerateDomain(g.DomainFor(level))
}

// GenerateDomain builds a question for an explicit domain.
func (g *Generator) GenerateDomain(d Domain) (domain.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		q   domain.Question
		err error
	)
	switch d {
	case Arithmetic:
		q, err = generateArithmetic(g.rnd)
	case Probability:
		q, err = generateProbability(g.rnd)
	case Differentiation:
		q, err = generateDerivative(g.rnd)
	default:
		return domain.Question{}, fmt.Errorf("%w: unknown domain %q", domain.ErrInvalidInput, d)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("%s: %w", d, err)
	}
	g.nextID++
	q.ID = g.nextID
	return q, nil
}

// collectDistractors draws candidates from next until three unique wrong answers are found.
// next reports false once its pool is exhausted.
func collectDistractors(correct domain.Option, next func() (domain.Option, bool)) ([]domain.Option, error) {
	seen := map[string]struct{}{correct.Value: {}}
	out := make([]domain.Option, 0, optionCount-1)
	for attempt := 0; attempt < maxDistractorAttempts && len(out) < optionCount-1; attempt++ {
		cand, ok := next()
		if !ok {
			break
		}
		if _, dup := seen[cand.Value]; dup {
			continue
		}
		seen[cand.Value] = struct{}{}
		out = append(out, cand)
	}
	if len(out) < optionCount-1 {
		return nil, fmt.Errorf("%w: found %d of %d distractors for %q", domain.ErrGeneration, len(out), optionCount-1, correct.Formula)
	}
	return out, nil
}

// poolDrawer walks a shuffled copy of pool.
func poolDrawer(rnd *rand.Rand, pool []domain.Option) func() (domain.Option, bool) {
	shuffled := append([]domain.Option(nil), pool...)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	i := 0
	return func() (domain.Option, bool) {
		if i >= len(shuffled) {
			return domain.Option{}, false
		}
		i++
		return shuffled[i-1], true
	}
}

func randInt(rnd *rand.Rand, min, max int) int {
	return min + rnd.Intn(max-min+1)
}

func hasDuplicates(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] == xs[i-1] {
			return true
		}
	}
	return false
}
