package generator

import (
	"fmt"
	"math/rand"

	"cybercalc/internal/domain"
)

const optionCount = 4

// OptionIDs are the labels assigned to final option positions.
var OptionIDs = [optionCount]string{"a", "b", "c", "d"}

// Shuffle places the correct option and three distractors in a uniformly random order, labels
// the positions with OptionIDs and reports which label holds the correct answer. Incoming ids are
// ignored. The correct option is located by canonical value, so display formatting never matters.
func Shuffle(rnd *rand.Rand, correct domain.Option, distractors []domain.Option) ([]domain.Option, string, error) {
	if len(distractors) != optionCount-1 {
		return nil, "", fmt.Errorf("%w: need %d distractors, got %d", domain.ErrGeneration, optionCount-1, len(distractors))
	}

	options := make([]domain.Option, 0, optionCount)
	options = append(options, correct)
	options = append(options, distractors...)

	// Fisher-Yates
	for i := len(options) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
	}

	correctID := ""
	for i := range options {
		options[i].ID = OptionIDs[i]
		if options[i].Value != correct.Value {
			continue
		}
		if correctID != "" {
			return nil, "", fmt.Errorf("%w: value %q appears more than once", domain.ErrGeneration, correct.Value)
		}
		correctID = options[i].ID
	}
	if correctID == "" {
		return nil, "", fmt.Errorf("%w: correct value %q missing after shuffle", domain.ErrGeneration, correct.Value)
	}
	return options, correctID, nil
}

// buildQuestion shuffles the options into q.
func buildQuestion(rnd *rand.Rand, q domain.Question, correct domain.Option, distractors []domain.Option) (domain.Question, error) {
	options, correctID, err := Shuffle(rnd, correct, distractors)
	if err != nil {
		return domain.Question{}, err
	}
	q.Options = options
	q.CorrectOptionID = correctID
	return q, nil
}
