package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"cybercalc/internal/domain"
	"github.com/sirupsen/logrus"
)

// Backend abstracts durable key-value storage (in-memory, Redis, Postgres).
// Values are opaque bytes; decoding and corruption handling belong to the Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ErrRecordNotFound is returned by Collection.Update when no record has the given id.
var ErrRecordNotFound = errors.New("record not found")

// Store owns every persisted collection. All mutation goes through it; each
// read-modify-write cycle holds the store lock and writes straight to the backend.
type Store struct {
	backend Backend
	ns      string
	log     logrus.FieldLogger
	mu      sync.RWMutex
	version atomic.Uint64

	Users      *Collection[domain.User]
	Quizzes    *Collection[domain.Quiz]
	Challenges *Collection[domain.Challenge]
	Progress   *Collection[domain.Progress]
}

// NewStore wires the typed collections over backend. Every key is prefixed with namespace.
func NewStore(backend Backend, namespace string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{backend: backend, ns: namespace, log: log}
	s.Users = newCollection(s, "users", func(u *domain.User) *int { return &u.ID })
	s.Quizzes = newCollection(s, "quizzes", func(q *domain.Quiz) *int { return &q.ID })
	s.Challenges = newCollection(s, "challenges", func(c *domain.Challenge) *int { return &c.ID })
	s.Progress = newCollection(s, "progress", func(p *domain.Progress) *int { return &p.UserID })
	return s
}

// Key returns the namespaced storage key for name.
func (s *Store) Key(name string) string {
	return s.ns + name
}

// Version increases after every collection write.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) credentialKey(userID int) string {
	return s.Key("credential_" + strconv.Itoa(userID))
}

func (s *Store) sessionKey(scope string) string {
	if scope == "" {
		return s.Key("current_user_id")
	}
	return s.Key("session_" + scope)
}

// corrupt logs an unreadable value. Callers fall back to the default value.
func (s *Store) corrupt(key string, err error) {
	s.log.WithFields(logrus.Fields{
		"key":   key,
		"error": err.Error(),
	}).Warn(domain.ErrStorageCorrupt.Error())
}

// SetCredential stores the credential reference for a user.
func (s *Store) SetCredential(ctx context.Context, userID int, ref []byte) error {
	data, err := json.Marshal(string(ref))
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, s.credentialKey(userID), data)
}

// Credential loads the credential reference for a user. A corrupt entry reads as missing.
func (s *Store) Credential(ctx context.Context, userID int) ([]byte, bool, error) {
	key := s.credentialKey(userID)
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var ref string
	if err := json.Unmarshal(raw, &ref); err != nil {
		s.corrupt(key, err)
		return nil, false, nil
	}
	return []byte(ref), true, nil
}

// DeleteCredential removes the credential reference for a user.
func (s *Store) DeleteCredential(ctx context.Context, userID int) error {
	return s.backend.Delete(ctx, s.credentialKey(userID))
}

// SetSession points the session identified by scope at userID.
func (s *Store) SetSession(ctx context.Context, scope string, userID int) error {
	return s.backend.Set(ctx, s.sessionKey(scope), []byte(strconv.Itoa(userID)))
}

// SessionUserID returns the user id the session points at, if any.
func (s *Store) SessionUserID(ctx context.Context, scope string) (int, bool, error) {
	key := s.sessionKey(scope)
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		s.corrupt(key, err)
		return 0, false, nil
	}
	return id, true, nil
}

// ClearSession removes the session pointer.
func (s *Store) ClearSession(ctx context.Context, scope string) error {
	return s.backend.Delete(ctx, s.sessionKey(scope))
}

// envelope is the persisted form of a collection: items in insertion order plus the id counter.
type envelope[T any] struct {
	NextID int `json:"nextId"`
	Items  []T `json:"items"`
}

// Collection is a typed view over one storage key.
type Collection[T any] struct {
	store *Store
	key   string
	id    func(*T) *int
}

func newCollection[T any](s *Store, name string, id func(*T) *int) *Collection[T] {
	return &Collection[T]{store: s, key: s.Key(name), id: id}
}

// Key is the storage key backing the collection.
func (c *Collection[T]) Key() string {
	return c.key
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(ctx context.Context, id int) (T, bool, error) {
	return c.Find(ctx, func(v T) bool { return *c.id(&v) == id })
}

// Find returns the first record matching pred, in insertion order.
func (c *Collection[T]) Find(ctx context.Context, pred func(T) bool) (T, bool, error) {
	var zero T
	items, err := c.All(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if pred(item) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Filter returns every record matching pred, in insertion order.
func (c *Collection[T]) Filter(ctx context.Context, pred func(T) bool) ([]T, error) {
	items, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// All returns every record in insertion order. A missing or corrupt key reads as empty.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	env, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return env.Items, nil
}

// Upsert replaces the record with the same id, or appends it. A zero id allocates the next one.
func (c *Collection[T]) Upsert(ctx context.Context, v T) (T, error) {
	return c.mutate(ctx, v, nil)
}

// Create appends v with a fresh id unless check rejects one of the existing records.
func (c *Collection[T]) Create(ctx context.Context, v T, check func(existing T) error) (T, error) {
	*c.id(&v) = 0
	return c.mutate(ctx, v, check)
}

// Update applies fn to the record with the given id and persists the result.
func (c *Collection[T]) Update(ctx context.Context, id int, fn func(*T) error) (T, error) {
	var zero T
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	env, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	for i := range env.Items {
		if *c.id(&env.Items[i]) != id {
			continue
		}
		if err := fn(&env.Items[i]); err != nil {
			return zero, err
		}
		*c.id(&env.Items[i]) = id
		if err := c.save(ctx, env); err != nil {
			return zero, err
		}
		return env.Items[i], nil
	}
	return zero, ErrRecordNotFound
}

// Merge applies fn to the record with the given id, starting from the zero value when none
// exists, and persists the result in one locked cycle.
func (c *Collection[T]) Merge(ctx context.Context, id int, fn func(*T) error) (T, error) {
	var zero T
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	env, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	idx := -1
	for i := range env.Items {
		if *c.id(&env.Items[i]) == id {
			idx = i
			break
		}
	}
	var v T
	if idx >= 0 {
		v = env.Items[idx]
	}
	if err := fn(&v); err != nil {
		return zero, err
	}
	*c.id(&v) = id
	if idx >= 0 {
		env.Items[idx] = v
	} else {
		env.Items = append(env.Items, v)
	}
	if id >= env.NextID {
		env.NextID = id + 1
	}
	if err := c.save(ctx, env); err != nil {
		return zero, err
	}
	return v, nil
}

// Delete removes the record with the given id. Missing records are ignored.
func (c *Collection[T]) Delete(ctx context.Context, id int) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	env, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := env.Items[:0]
	for _, item := range env.Items {
		if *c.id(&item) != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(env.Items) {
		return nil
	}
	env.Items = kept
	return c.save(ctx, env)
}

func (c *Collection[T]) mutate(ctx context.Context, v T, check func(T) error) (T, error) {
	var zero T
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	env, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	if check != nil {
		for _, existing := range env.Items {
			if err := check(existing); err != nil {
				return zero, err
			}
		}
	}

	id := c.id(&v)
	if *id == 0 {
		*id = env.NextID
	}
	replaced := false
	for i := range env.Items {
		if *c.id(&env.Items[i]) == *id {
			env.Items[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		env.Items = append(env.Items, v)
	}
	if *id >= env.NextID {
		env.NextID = *id + 1
	}
	if err := c.save(ctx, env); err != nil {
		return zero, err
	}
	return v, nil
}

func (c *Collection[T]) load(ctx context.Context) (envelope[T], error) {
	fresh := envelope[T]{NextID: 1}
	raw, ok, err := c.store.backend.Get(ctx, c.key)
	if err != nil {
		return fresh, fmt.Errorf("read %s: %w", c.key, err)
	}
	if !ok {
		return fresh, nil
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		c.store.corrupt(c.key, err)
		return fresh, nil
	}
	// Ids stay unique even if the counter was lost or tampered with.
	for i := range env.Items {
		if id := *c.id(&env.Items[i]); id >= env.NextID {
			env.NextID = id + 1
		}
	}
	if env.NextID < 1 {
		env.NextID = 1
	}
	return env, nil
}

func (c *Collection[T]) save(ctx context.Context, env envelope[T]) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := c.store.backend.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("write %s: %w", c.key, err)
	}
	c.store.version.Add(1)
	return nil
}
