package generator

import (
	"fmt"
	"math/big"
	"math/rand"

	"cybercalc/internal/domain"
)

// scenario is a canned experiment with favorable and total outcome counts.
type scenario struct {
	prompt      string
	event       string
	favorable   int64
	total       int64
	explanation string
}

var suits = []string{"hearts", "diamonds", "clubs", "spades"}

var scenarioBuilders = []func(*rand.Rand) scenario{
	diceScenario,
	cardScenario,
	marbleScenario,
	coinScenario,
}

func diceScenario(rnd *rand.Rand) scenario {
	switch rnd.Intn(3) {
	case 0:
		face := randInt(rnd, 1, 6)
		return scenario{
			prompt:      fmt.Sprintf("What is the probability of rolling a %d with a fair six-sided die?", face),
			event:       fmt.Sprintf("%d", face),
			favorable:   1,
			total:       6,
			explanation: fmt.Sprintf("There is 1 favorable outcome (rolling a %d) out of 6 possible outcomes.", face),
		}
	case 1:
		return scenario{
			prompt:      "What is the probability of rolling an even number with a fair six-sided die?",
			event:       `\text{even}`,
			favorable:   3,
			total:       6,
			explanation: "There are 3 even faces (2, 4 and 6) out of 6 possible outcomes.",
		}
	default:
		k := randInt(rnd, 1, 5)
		return scenario{
			prompt:      fmt.Sprintf("What is the probability of rolling a number greater than %d with a fair six-sided die?", k),
			event:       fmt.Sprintf("X > %d", k),
			favorable:   int64(6 - k),
			total:       6,
			explanation: fmt.Sprintf("There are %d faces greater than %d out of 6 possible outcomes.", 6-k, k),
		}
	}
}

func cardScenario(rnd *rand.Rand) scenario {
	switch rnd.Intn(3) {
	case 0:
		suit := suits[rnd.Intn(len(suits))]
		return scenario{
			prompt:      fmt.Sprintf("What is the probability of drawing a card of %s from a standard 52-card deck?", suit),
			event:       fmt.Sprintf(`\text{%s}`, suit),
			favorable:   13,
			total:       52,
			explanation: fmt.Sprintf("There are 13 %s in a deck of 52 cards.", suit),
		}
	case 1:
		return scenario{
			prompt:      "What is the probability of drawing an ace from a standard 52-card deck?",
			event:       `\text{ace}`,
			favorable:   4,
			total:       52,
			explanation: "There are 4 aces in a deck of 52 cards.",
		}
	default:
		return scenario{
			prompt:      "What is the probability of drawing a face card (jack, queen or king) from a standard 52-card deck?",
			event:       `\text{face}`,
			favorable:   12,
			total:       52,
			explanation: "There are 12 face cards (3 per suit) in a deck of 52 cards.",
		}
	}
}

func marbleScenario(rnd *rand.Rand) scenario {
	red, blue := randInt(rnd, 2, 10), randInt(rnd, 2, 10)
	color, favorable := "red", red
	if rnd.Intn(2) == 1 {
		color, favorable = "blue", blue
	}
	total := red + blue
	return scenario{
		prompt: fmt.Sprintf("A bag holds %d red marbles and %d blue marbles. What is the probability of drawing a %s marble?",
			red, blue, color),
		event:       fmt.Sprintf(`\text{%s}`, color),
		favorable:   int64(favorable),
		total:       int64(total),
		explanation: fmt.Sprintf("There are %d %s marbles out of %d marbles in total.", favorable, color, total),
	}
}

func coinScenario(_ *rand.Rand) scenario {
	return scenario{
		prompt:      "What is the probability of getting heads when tossing a fair coin?",
		event:       `\text{heads}`,
		favorable:   1,
		total:       2,
		explanation: "There is 1 favorable outcome (heads) out of 2 possible outcomes.",
	}
}

// fractionOption renders r reduced. Its canonical value is the reduced "a/b" form.
func fractionOption(r *big.Rat) domain.Option {
	formula := r.Num().String()
	if !r.IsInt() {
		formula = fmt.Sprintf(`\frac{%s}{%s}`, r.Num(), r.Denom())
	}
	return domain.Option{Formula: formula, Value: r.RatString()}
}

// commonFractions are wrong answers borrowed from the other scenarios.
var commonFractions = [][2]int64{{1, 2}, {1, 3}, {1, 4}, {1, 5}, {1, 6}, {1, 13}, {3, 13}}

func probabilityPool(s scenario) []domain.Option {
	pool := make([]domain.Option, 0, 12)
	add := func(num, den int64) {
		if den <= 0 || num < 0 || num > den {
			return
		}
		pool = append(pool, fractionOption(big.NewRat(num, den)))
	}
	add(s.total-s.favorable, s.total) // complement
	add(1, s.total)
	add(s.favorable+1, s.total)
	add(s.favorable-1, s.total)
	add(s.favorable, s.total+1)
	add(s.favorable, s.total-s.favorable) // odds instead of probability
	for _, f := range commonFractions {
		add(f[0], f[1])
	}
	return pool
}

func generateProbability(rnd *rand.Rand) (domain.Question, error) {
	s := scenarioBuilders[rnd.Intn(len(scenarioBuilders))](rnd)
	answer := big.NewRat(s.favorable, s.total)
	correct := fractionOption(answer)

	distractors, err := collectDistractors(correct, poolDrawer(rnd, probabilityPool(s)))
	if err != nil {
		return domain.Question{}, err
	}

	explanation := s.explanation
	if answer.Num().Int64() != s.favorable {
		explanation = fmt.Sprintf("%s %d/%d reduces to %s.", s.explanation, s.favorable, s.total, answer.RatString())
	}
	return buildQuestion(rnd, domain.Question{
		Prompt:      s.prompt,
		Formula:     fmt.Sprintf("P(%s) = %s", s.event, correct.Formula),
		Explanation: explanation,
		Difficulty:  domain.DifficultyMedium,
	}, correct, distractors)
}
