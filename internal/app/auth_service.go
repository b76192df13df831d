package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cybercalc/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Notifier is told whenever a user's points change.
type Notifier interface {
	Publish(ctx context.Context)
}

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type credentials struct {
	Username string `validate:"required,min=3"`
	Password string `validate:"required,min=6,max=72"`
}

// AuthService registers users, manages the current session and mutates points and lives.
// The session holds only a user id; every read goes back to the Store.
type AuthService struct {
	store    *Store
	scope    string
	cost     int
	validate *validator.Validate
	notifier Notifier
	log      logrus.FieldLogger
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost sets the hashing cost. Values outside bcrypt's range use the default.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// WithNotifier registers a listener for point changes.
func WithNotifier(n Notifier) AuthOption {
	return func(s *AuthService) { s.notifier = n }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(log logrus.FieldLogger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

func NewAuthService(store *Store, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:    store,
		cost:     bcrypt.DefaultCost,
		validate: validator.New(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForScope returns a copy bound to a separate session pointer. The default scope ("") is the
// single current-user session; transports give each connection its own scope.
func (s *AuthService) ForScope(scope string) *AuthService {
	cp := *s
	cp.scope = scope
	return &cp
}

// Register creates a user with full lives and no points and logs them in.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.User, error) {
	if err := s.validateCredentials(username, password); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Users.Create(ctx, domain.User{
		Username: username,
		Points:   0,
		Lives:    domain.MaxLives,
	}, func(existing domain.User) error {
		if existing.Username == username {
			return domain.ErrDuplicateUsername
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := s.store.SetCredential(ctx, user.ID, hash); err != nil {
		s.rollbackUser(ctx, user.ID)
		return domain.User{}, err
	}
	if err := s.store.SetSession(ctx, s.scope, user.ID); err != nil {
		s.rollbackUser(ctx, user.ID)
		return domain.User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	s.publish(ctx)
	return user, nil
}

// rollbackUser removes a half-registered user so the username stays available.
func (s *AuthService) rollbackUser(ctx context.Context, userID int) {
	if err := s.store.DeleteCredential(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("roll back credential")
	}
	if err := s.store.Users.Delete(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("roll back registration")
	}
}

// Login checks the password for username and makes that user current.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, ok, err := s.store.Users.Find(ctx, func(u domain.User) bool { return u.Username == username })
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}

	hash, ok, err := s.store.Credential(ctx, user.ID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredential
	}

	if err := s.store.SetSession(ctx, s.scope, user.ID); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Logout clears the session. It always succeeds; storage failures are only logged.
func (s *AuthService) Logout(ctx context.Context) {
	if err := s.store.ClearSession(ctx, s.scope); err != nil {
		s.log.WithError(err).Warn("clear session")
	}
}

// CurrentUser returns the logged-in user, re-read from the Store.
func (s *AuthService) CurrentUser(ctx context.Context) (domain.User, error) {
	id, ok, err := s.store.SessionUserID(ctx, s.scope)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrNotLoggedIn
	}
	user, ok, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		// Dangling pointer: the session cannot outlive its user.
		s.Logout(ctx)
		return domain.User{}, domain.ErrNotLoggedIn
	}
	return user, nil
}

// UpdatePoints overwrites a user's points.
func (s *AuthService) UpdatePoints(ctx context.Context, userID, points int) (domain.User, error) {
	if points < 0 {
		return domain.User{}, fmt.Errorf("%w: points must not be negative", domain.ErrInvalidInput)
	}
	return s.updateUser(ctx, userID, true, func(u *domain.User) error {
		u.Points = points
		return nil
	})
}

// UpdateLives overwrites a user's lives.
func (s *AuthService) UpdateLives(ctx context.Context, userID, lives int) (domain.User, error) {
	if lives < 0 || lives > domain.MaxLives {
		return domain.User{}, fmt.Errorf("%w: lives must be between 0 and %d", domain.ErrInvalidInput, domain.MaxLives)
	}
	return s.updateUser(ctx, userID, false, func(u *domain.User) error {
		u.Lives = lives
		return nil
	})
}

// AddPoints increments points in a single store cycle.
func (s *AuthService) AddPoints(ctx context.Context, userID, delta int) (domain.User, error) {
	return s.updateUser(ctx, userID, true, func(u *domain.User) error {
		if u.Points+delta < 0 {
			return fmt.Errorf("%w: points must not be negative", domain.ErrInvalidInput)
		}
		u.Points += delta
		return nil
	})
}

// AdjustLives adds delta to lives, clamped to [0, MaxLives].
func (s *AuthService) AdjustLives(ctx context.Context, userID, delta int) (domain.User, error) {
	return s.updateUser(ctx, userID, false, func(u *domain.User) error {
		u.Lives = clamp(u.Lives+delta, 0, domain.MaxLives)
		return nil
	})
}

func (s *AuthService) updateUser(ctx context.Context, userID int, pointsChanged bool, fn func(*domain.User) error) (domain.User, error) {
	user, err := s.store.Users.Update(ctx, userID, fn)
	if errors.Is(err, ErrRecordNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if pointsChanged {
		s.publish(ctx)
	}
	return user, nil
}

func (s *AuthService) publish(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.Publish(ctx)
	}
}

func (s *AuthService) validateCredentials(username, password string) error {
	err := s.validate.Struct(credentials{Username: username, Password: password})
	if err == nil {
		if len(password) > maxPasswordBytes {
			return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is required")
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
