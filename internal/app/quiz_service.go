package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cybercalc/internal/domain"
	"cybercalc/internal/metrics"
	"github.com/sirupsen/logrus"
)

// generationRetries is how many fresh draws NextQuestion makes after an ErrGeneration.
const generationRetries = 3

// QuestionGenerator produces questions for a level.
type QuestionGenerator interface {
	Generate(level int) (domain.Question, error)
}

// QuizService contains the core quiz use cases: issuing questions, checking answers and
// recording finished attempts. Points and lives only change through the AuthService.
type QuizService struct {
	store   *Store
	auth    *AuthService
	gen     QuestionGenerator
	metrics *metrics.Metrics
	now     func() time.Time
	log     logrus.FieldLogger
}

// QuizOption customizes a QuizService.
type QuizOption func(*QuizService)

func WithMetrics(m *metrics.Metrics) QuizOption {
	return func(s *QuizService) { s.metrics = m }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

func WithQuizLogger(log logrus.FieldLogger) QuizOption {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(store *Store, auth *AuthService, gen QuestionGenerator, opts ...QuizOption) *QuizService {
	s := &QuizService{
		store: store,
		auth:  auth,
		gen:   gen,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextQuestion generates a question for level, retrying with fresh randomness when the
// generator cannot satisfy the option invariants.
func (s *QuizService) NextQuestion(_ context.Context, level int) (domain.Question, error) {
	var lastErr error
	for attempt := 0; attempt <= generationRetries; attempt++ {
		q, err := s.gen.Generate(level)
		if err == nil {
			s.metrics.ObserveQuestion(string(q.Difficulty))
			return q, nil
		}
		s.metrics.ObserveGenerationFailure(strconv.Itoa(level))
		if !errors.Is(err, domain.ErrGeneration) {
			return domain.Question{}, err
		}
		s.log.WithError(err).WithField("level", level).Warn("retrying question generation")
		lastErr = err
	}
	return domain.Question{}, lastErr
}

// SuggestedLevel is the level derived from the user's points.
func (s *QuizService) SuggestedLevel(ctx context.Context, userID int) (int, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.Level, nil
}

// SubmitAnswer checks optionID against question. A correct answer earns the difficulty's reward;
// a wrong one costs a life.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID int, question domain.Question, optionID string) (domain.AnswerResult, error) {
	user, ok, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !ok {
		return domain.AnswerResult{}, domain.ErrUserNotFound
	}
	if user.Lives <= 0 {
		return domain.AnswerResult{}, domain.ErrNoLivesLeft
	}
	if _, ok := question.Option(optionID); !ok {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	correct, awarded := scoreSubmission(question, optionID)
	if correct {
		user, err = s.auth.AddPoints(ctx, userID, awarded)
	} else {
		user, err = s.auth.AdjustLives(ctx, userID, -1)
	}
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.metrics.ObserveAnswer(correct)

	return domain.AnswerResult{
		QuestionID:      question.ID,
		Correct:         correct,
		CorrectOptionID: question.CorrectOptionID,
		Awarded:         awarded,
		Points:          user.Points,
		Lives:           user.Lives,
		Explanation:     question.Explanation,
	}, nil
}

// CompleteQuiz records a finished quiz. Its score was already credited answer by answer.
func (s *QuizService) CompleteQuiz(ctx context.Context, userID int, difficulty domain.Difficulty, questions []domain.Question, score int) (domain.Quiz, error) {
	if !difficulty.Valid() {
		return domain.Quiz{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidInput, difficulty)
	}
	if score < 0 {
		return domain.Quiz{}, fmt.Errorf("%w: score must not be negative", domain.ErrInvalidInput)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.Quiz{}, err
	}

	quiz, err := s.store.Quizzes.Create(ctx, domain.Quiz{
		UserID:      userID,
		Score:       score,
		Difficulty:  difficulty,
		Questions:   questions,
		CompletedAt: s.now().UTC(),
	}, nil)
	if err != nil {
		return domain.Quiz{}, err
	}
	if _, err := s.mergeProgress(ctx, userID, func(p *domain.Progress) {
		p.CompletedQuizIDs = append(p.CompletedQuizIDs, quiz.ID)
	}); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// CompleteChallenge records a finished challenge. A completed challenge restores one life.
func (s *QuizService) CompleteChallenge(ctx context.Context, userID int, questions []domain.Question, score int, completed bool) (domain.Challenge, error) {
	if score < 0 {
		return domain.Challenge{}, fmt.Errorf("%w: score must not be negative", domain.ErrInvalidInput)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.Challenge{}, err
	}

	challenge, err := s.store.Challenges.Create(ctx, domain.Challenge{
		UserID:      userID,
		Score:       score,
		Completed:   completed,
		Questions:   questions,
		CompletedAt: s.now().UTC(),
	}, nil)
	if err != nil {
		return domain.Challenge{}, err
	}
	if completed {
		if _, err := s.auth.AdjustLives(ctx, userID, 1); err != nil {
			return domain.Challenge{}, err
		}
	}
	if _, err := s.mergeProgress(ctx, userID, func(p *domain.Progress) {
		p.CompletedChallengeIDs = append(p.CompletedChallengeIDs, challenge.ID)
	}); err != nil {
		return domain.Challenge{}, err
	}
	return challenge, nil
}

// Quizzes lists the user's finished quizzes, oldest first.
func (s *QuizService) Quizzes(ctx context.Context, userID int) ([]domain.Quiz, error) {
	return s.store.Quizzes.Filter(ctx, func(q domain.Quiz) bool { return q.UserID == userID })
}

// Challenges lists the user's finished challenges, oldest first.
func (s *QuizService) Challenges(ctx context.Context, userID int) ([]domain.Challenge, error) {
	return s.store.Challenges.Filter(ctx, func(c domain.Challenge) bool { return c.UserID == userID })
}

// Progress returns the user's aggregate, with points, lives and level taken from the stored user.
func (s *QuizService) Progress(ctx context.Context, userID int) (domain.Progress, error) {
	user, ok, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	if !ok {
		return domain.Progress{}, domain.ErrUserNotFound
	}
	p, _, err := s.store.Progress.Get(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	return reconcile(p, user), nil
}

func (s *QuizService) mergeProgress(ctx context.Context, userID int, apply func(*domain.Progress)) (domain.Progress, error) {
	user, ok, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return domain.Progress{}, err
	}
	if !ok {
		return domain.Progress{}, domain.ErrUserNotFound
	}
	p, err := s.store.Progress.Merge(ctx, userID, func(p *domain.Progress) error {
		*p = reconcile(*p, user)
		apply(p)
		return nil
	})
	if err != nil {
		return domain.Progress{}, err
	}
	return p, nil
}

func (s *QuizService) requireUser(ctx context.Context, userID int) error {
	_, ok, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func reconcile(p domain.Progress, user domain.User) domain.Progress {
	p.UserID = user.ID
	p.Points = user.Points
	p.Lives = user.Lives
	p.Level = domain.LevelForPoints(user.Points)
	if p.CompletedQuizIDs == nil {
		p.CompletedQuizIDs = []int{}
	}
	if p.CompletedChallengeIDs == nil {
		p.CompletedChallengeIDs = []int{}
	}
	return p
}

// scoreSubmission reports whether optionID is the correct option and the points it earns.
func scoreSubmission(question domain.Question, optionID string) (bool, int) {
	if optionID != question.CorrectOptionID {
		return false, 0
	}
	return true, question.Difficulty.Reward()
}
