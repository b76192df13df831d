package generator

import (
	"fmt"
	"math/rand"
	"strconv"

	"cybercalc/internal/domain"
)

type operator string

const (
	opAdd operator = "+"
	opSub operator = "-"
	opMul operator = "×"
	opDiv operator = "÷"
)

var operators = []operator{opAdd, opSub, opMul, opDiv}

// arithmeticProblem is left op right = result. Division problems are built from the divisor and
// quotient, so left is always an exact multiple of right.
type arithmeticProblem struct {
	op     operator
	left   int
	right  int
	result int
}

func newArithmeticProblem(rnd *rand.Rand) arithmeticProblem {
	op := operators[rnd.Intn(len(operators))]
	switch op {
	case opSub:
		a, b := randInt(rnd, 1, 100), randInt(rnd, 1, 100)
		if a < b {
			a, b = b, a
		}
		return arithmeticProblem{op: op, left: a, right: b, result: a - b}
	case opMul:
		a, b := randInt(rnd, 1, 20), randInt(rnd, 1, 20)
		return arithmeticProblem{op: op, left: a, right: b, result: a * b}
	case opDiv:
		divisor := randInt(rnd, 1, 20)
		quotient := randInt(rnd, 1, 10)
		return arithmeticProblem{op: op, left: divisor * quotient, right: divisor, result: quotient}
	default:
		a, b := randInt(rnd, 1, 100), randInt(rnd, 1, 100)
		return arithmeticProblem{op: opAdd, left: a, right: b, result: a + b}
	}
}

func (p arithmeticProblem) latex() string {
	switch p.op {
	case opMul:
		return fmt.Sprintf(`%d \times %d`, p.left, p.right)
	case opDiv:
		return fmt.Sprintf(`\frac{%d}{%d}`, p.left, p.right)
	default:
		return fmt.Sprintf("%d %s %d", p.left, p.op, p.right)
	}
}

func integerOption(n int) domain.Option {
	s := strconv.Itoa(n)
	return domain.Option{Formula: s, Value: s}
}

func generateArithmetic(rnd *rand.Rand) (domain.Question, error) {
	p := newArithmeticProblem(rnd)
	formula := p.latex()
	correct := integerOption(p.result)

	// Distractors sit 1..10 away from the result and never go negative.
	distractors, err := collectDistractors(correct, func() (domain.Option, bool) {
		delta := randInt(rnd, 1, 10)
		if rnd.Intn(2) == 0 && p.result-delta >= 0 {
			return integerOption(p.result - delta), true
		}
		return integerOption(p.result + delta), true
	})
	if err != nil {
		return domain.Question{}, err
	}

	return buildQuestion(rnd, domain.Question{
		Prompt:      fmt.Sprintf("What is %d %s %d?", p.left, p.op, p.right),
		Formula:     formula,
		Explanation: fmt.Sprintf("The correct answer is %d because %s = %d.", p.result, formula, p.result),
		Difficulty:  domain.DifficultyEasy,
	}, correct, distractors)
}
