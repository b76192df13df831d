package domain

import "time"

const (
	// MaxLives is the number of lives a fresh account starts with and the upper bound for lives.
	MaxLives = 3
	// PointsPerLevel is how many points separate two progress levels.
	PointsPerLevel = 100
)

// User is a registered account. Credentials are stored separately and never travel with it.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Lives    int    `json:"lives"`
}

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Reward is the number of points a correct answer of this difficulty is worth.
func (d Difficulty) Reward() int {
	switch d {
	case DifficultyMedium:
		return 20
	case DifficultyHard:
		return 30
	default:
		return 10
	}
}

// Option is one candidate answer. Value holds the canonical form used for correctness checks;
// Formula is only for display.
type Option struct {
	ID      string `json:"id"`
	Formula string `json:"formula"`
	Value   string `json:"value,omitempty"`
}

// Question models a generated multiple-choice question with exactly one correct option.
type Question struct {
	ID              int        `json:"id"`
	Prompt          string     `json:"prompt"`
	Formula         string     `json:"formula"`
	Options         []Option   `json:"options"`
	CorrectOptionID string     `json:"correctOptionId"`
	Explanation     string     `json:"explanation"`
	Difficulty      Difficulty `json:"difficulty"`
}

// Option returns the option with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// Quiz is an immutable record of a finished quiz attempt.
type Quiz struct {
	ID          int        `json:"id"`
	UserID      int        `json:"userId"`
	Score       int        `json:"score"`
	Difficulty  Difficulty `json:"difficulty"`
	Questions   []Question `json:"questions"`
	CompletedAt time.Time  `json:"completedAt"`
}

// Challenge is an immutable record of a finished challenge attempt.
type Challenge struct {
	ID          int        `json:"id"`
	UserID      int        `json:"userId"`
	Score       int        `json:"score"`
	Completed   bool       `json:"completed"`
	Questions   []Question `json:"questions"`
	CompletedAt time.Time  `json:"completedAt"`
}

// Progress aggregates a user's completed activity.
type Progress struct {
	UserID                int   `json:"userId"`
	Points                int   `json:"points"`
	Lives                 int   `json:"lives"`
	CompletedQuizIDs      []int `json:"completedQuizIds"`
	CompletedChallengeIDs []int `json:"completedChallengeIds"`
	Level                 int   `json:"level"`
}

// LevelForPoints derives the progress level from a point total.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return 1 + points/PointsPerLevel
}

// AnswerResult summarizes the outcome of a submission for the current user.
type AnswerResult struct {
	QuestionID      int    `json:"questionId"`
	Correct         bool   `json:"correct"`
	CorrectOptionID string `json:"correctOptionId"`
	Awarded         int    `json:"awarded"`
	Points          int    `json:"points"`
	Lives           int    `json:"lives"`
	Explanation     string `json:"explanation"`
}

// LeaderboardEntry is a ranked view of a user.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// Leaderboard captures the ordered scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
