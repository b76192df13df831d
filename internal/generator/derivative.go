package generator

import (
	"fmt"
	"math/rand"

	"cybercalc/internal/domain"
)

// monomial renders coef·x^pow. The canonical value is built from the integers, so x^1, x and
// 1·x all compare equal.
func monomial(coef, pow int) domain.Option {
	value := fmt.Sprintf("mono(%d,%d)", coef, pow)
	if coef == 0 {
		return domain.Option{Formula: "0", Value: "mono(0,0)"}
	}
	if pow < 0 {
		return domain.Option{Formula: fmt.Sprintf(`\frac{%d}{%s}`, coef, powerOfX(-pow)), Value: value}
	}
	if pow == 0 {
		return domain.Option{Formula: fmt.Sprintf("%d", coef), Value: value}
	}
	var prefix string
	switch coef {
	case 1:
	case -1:
		prefix = "-"
	default:
		prefix = fmt.Sprintf("%d", coef)
	}
	return domain.Option{Formula: prefix + powerOfX(pow), Value: value}
}

func powerOfX(pow int) string {
	if pow == 1 {
		return "x"
	}
	return fmt.Sprintf("x^{%d}", pow)
}

// symbolic builds an option for a non-polynomial expression identified by tag.
func symbolic(formula, tag string) domain.Option {
	return domain.Option{Formula: formula, Value: tag}
}

var (
	expX       = symbolic("e^{x}", "exp(x)")
	xExpX      = symbolic(`x \cdot e^{x}`, "x*exp(x)")
	xExpXm1    = symbolic(`x \cdot e^{x-1}`, "x*exp(x-1)")
	expXOverX  = symbolic(`\frac{e^{x}}{x}`, "exp(x)/x")
	sinX       = symbolic(`\sin(x)`, "sin(x)")
	negSinX    = symbolic(`-\sin(x)`, "-sin(x)")
	cosX       = symbolic(`\cos(x)`, "cos(x)")
	negCosX    = symbolic(`-\cos(x)`, "-cos(x)")
	tanX       = symbolic(`\tan(x)`, "tan(x)")
	secSqX     = symbolic(`\sec^{2}(x)`, "sec(x)^2")
	lnX        = symbolic(`\ln(x)`, "ln(x)")
	xLnX       = symbolic(`x \ln(x)`, "x*ln(x)")
	lnXOverX   = symbolic(`\frac{\ln(x)}{x}`, "ln(x)/x")
	derivTable = []func(*rand.Rand) derivativeCase{
		powerCase,
		exponentialCase,
		sineCase,
		cosineCase,
		logCase,
	}
)

// derivativeCase is one (function, derivative, explanation) entry with its plausible wrong answers.
type derivativeCase struct {
	function    string
	derivative  domain.Option
	explanation string
	wrong       []domain.Option
}

func powerCase(rnd *rand.Rand) derivativeCase {
	n := randInt(rnd, 2, 5)
	return derivativeCase{
		function:   powerOfX(n),
		derivative: monomial(n, n-1),
		explanation: fmt.Sprintf("By the power rule d/dx(x^n) = n·x^(n-1), the derivative of x^%d is %d·x^%d.",
			n, n, n-1),
		wrong: []domain.Option{
			monomial(n, n),     // forgot to lower the exponent
			monomial(n-1, n),   // swapped coefficient and exponent
			monomial(1, n-1),   // dropped the coefficient
			monomial(n, n+1),   // raised instead of lowered
			monomial(n+1, n),   // off by one both ways
			monomial(n-1, n-1), // wrong coefficient
		},
	}
}

func exponentialCase(_ *rand.Rand) derivativeCase {
	return derivativeCase{
		function:    "e^{x}",
		derivative:  expX,
		explanation: "The derivative of e^x is e^x: the exponential function is its own derivative.",
		wrong:       []domain.Option{xExpXm1, xExpX, expXOverX, lnX},
	}
}

func sineCase(_ *rand.Rand) derivativeCase {
	return derivativeCase{
		function:    `\sin(x)`,
		derivative:  cosX,
		explanation: "The derivative of sin(x) is cos(x).",
		wrong:       []domain.Option{negCosX, negSinX, sinX, tanX},
	}
}

func cosineCase(_ *rand.Rand) derivativeCase {
	return derivativeCase{
		function:    `\cos(x)`,
		derivative:  negSinX,
		explanation: "The derivative of cos(x) is -sin(x); the sign flips.",
		wrong:       []domain.Option{sinX, negCosX, cosX, secSqX},
	}
}

func logCase(_ *rand.Rand) derivativeCase {
	return derivativeCase{
		function:    `\ln(x)`,
		derivative:  monomial(1, -1),
		explanation: "The derivative of ln(x) is 1/x for x > 0.",
		wrong:       []domain.Option{monomial(-1, -2), xLnX, lnXOverX, expX},
	}
}

func generateDerivative(rnd *rand.Rand) (domain.Question, error) {
	c := derivTable[rnd.Intn(len(derivTable))](rnd)

	distractors, err := collectDistractors(c.derivative, poolDrawer(rnd, c.wrong))
	if err != nil {
		return domain.Question{}, err
	}

	return buildQuestion(rnd, domain.Question{
		Prompt:      fmt.Sprintf("What is the derivative of f(x) = %s?", c.function),
		Formula:     fmt.Sprintf("f(x) = %s", c.function),
		Explanation: c.explanation,
		Difficulty:  domain.DifficultyHard,
	}, c.derivative, distractors)
}
