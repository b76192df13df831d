package app

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"cybercalc/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultBroadcastSize is how many entries pushed leaderboard updates carry.
const DefaultBroadcastSize = 10

// LeaderboardService is a read-only projection over the user collection. It also fans out
// fresh snapshots to subscribers whenever points change.
type LeaderboardService struct {
	store *Store
	now   func() time.Time
	size  int
	sf    singleflight.Group
	log   logrus.FieldLogger

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardService(store *Store, log logrus.FieldLogger) *LeaderboardService {
	return NewLeaderboardServiceWithClock(store, log, time.Now)
}

// NewLeaderboardServiceWithClock allows deterministic timestamps in tests.
func NewLeaderboardServiceWithClock(store *Store, log logrus.FieldLogger, now func() time.Time) *LeaderboardService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LeaderboardService{
		store:       store,
		now:         now,
		size:        DefaultBroadcastSize,
		log:         log,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// TopUsers returns up to limit users sorted by points descending. Ties keep registration order.
// Concurrent calls with the same limit share one read of the store, as long as no write
// completed in between.
func (s *LeaderboardService) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		return []domain.User{}, nil
	}
	result, err, _ := s.sf.Do(strconv.Itoa(limit)+":"+strconv.FormatUint(s.store.Version(), 10), func() (interface{}, error) {
		users, err := s.store.Users.All(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(users, func(i, j int) bool {
			return users[i].Points > users[j].Points
		})
		if len(users) > limit {
			users = users[:limit]
		}
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	shared := result.([]domain.User)
	return append([]domain.User(nil), shared...), nil
}

// Snapshot returns the ranked leaderboard of the top limit users.
func (s *LeaderboardService) Snapshot(ctx context.Context, limit int) (domain.Leaderboard, error) {
	users, err := s.TopUsers(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   u.ID,
			Username: u.Username,
			Points:   u.Points,
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

// Subscribe returns a channel that receives leaderboard updates, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Snapshot(ctx, s.size)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// Publish pushes a fresh snapshot to every subscriber.
func (s *LeaderboardService) Publish(ctx context.Context) {
	s.mu.Lock()
	empty := len(s.subscribers) == 0
	s.mu.Unlock()
	if empty {
		return
	}

	lb, err := s.Snapshot(ctx, s.size)
	if err != nil {
		s.log.WithError(err).Warn("leaderboard snapshot")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest update rather than block everyone else.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
