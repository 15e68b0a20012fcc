package studenthub

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Store keys mirror the wire-level contract: the opaque credential handle and
// the last-known profile used as an optimistic pre-render hint.
const (
	storeKeyToken = "token"
	storeKeyUser  = "user"
)

// SessionStore is the durable key-value persistence for session state. It is
// written exclusively by the Controller; concurrent actors only read through
// the controller's observable state.
type SessionStore interface {
	SaveSession(ctx context.Context, session *Session) error
	// LoadSession returns (nil, nil) when no session is persisted.
	LoadSession(ctx context.Context) (*Session, error)
	SaveProfileHint(ctx context.Context, profile *Profile) error
	// LoadProfileHint returns (nil, nil) when no hint is cached.
	LoadProfileHint(ctx context.Context) (*Profile, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps session state in process memory. Suitable for tests and
// for deployments that deliberately drop sessions on restart.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

func (m *MemoryStore) set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *MemoryStore) get(key string, target any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.values[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session state")
	}
	return true, nil
}

// SaveSession implements SessionStore.
func (m *MemoryStore) SaveSession(_ context.Context, session *Session) error {
	return m.set(storeKeyToken, session)
}

// LoadSession implements SessionStore.
func (m *MemoryStore) LoadSession(_ context.Context) (*Session, error) {
	session := &Session{}
	ok, err := m.get(storeKeyToken, session)
	if err != nil || !ok {
		return nil, err
	}
	return session, nil
}

// SaveProfileHint implements SessionStore.
func (m *MemoryStore) SaveProfileHint(_ context.Context, profile *Profile) error {
	return m.set(storeKeyUser, profile)
}

// LoadProfileHint implements SessionStore.
func (m *MemoryStore) LoadProfileHint(_ context.Context) (*Profile, error) {
	profile := &Profile{}
	ok, err := m.get(storeKeyUser, profile)
	if err != nil || !ok {
		return nil, err
	}
	return profile, nil
}

// Clear implements SessionStore.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string][]byte{}
	return nil
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:session_state,alias:ss"`
	Key           string     `bun:"key,pk"`
	Value         []byte     `bun:"value"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// BunStore persists session state in a SQLite table so a session survives a
// process restart.
type BunStore struct {
	db *bun.DB
}

// NewBunStore ensures the backing table exists and returns the store.
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	if _, err := db.NewCreateTable().
		Model((*sessionRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session_state table")
	}
	return &BunStore{db: db}, nil
}

func (b *BunStore) set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session state")
	}

	now := time.Now()
	rec := &sessionRecord{Key: key, Value: raw, UpdatedAt: &now}
	_, err = b.db.NewInsert().
		Model(rec).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session state")
	}
	return nil
}

func (b *BunStore) get(ctx context.Context, key string, target any) (bool, error) {
	rec := &sessionRecord{}
	err := b.db.NewSelect().
		Model(rec).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session state")
	}
	if err := json.Unmarshal(rec.Value, target); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session state")
	}
	return true, nil
}

// SaveSession implements SessionStore.
func (b *BunStore) SaveSession(ctx context.Context, session *Session) error {
	return b.set(ctx, storeKeyToken, session)
}

// LoadSession implements SessionStore.
func (b *BunStore) LoadSession(ctx context.Context) (*Session, error) {
	session := &Session{}
	ok, err := b.get(ctx, storeKeyToken, session)
	if err != nil || !ok {
		return nil, err
	}
	return session, nil
}

// SaveProfileHint implements SessionStore.
func (b *BunStore) SaveProfileHint(ctx context.Context, profile *Profile) error {
	return b.set(ctx, storeKeyUser, profile)
}

// LoadProfileHint implements SessionStore.
func (b *BunStore) LoadProfileHint(ctx context.Context) (*Profile, error) {
	profile := &Profile{}
	ok, err := b.get(ctx, storeKeyUser, profile)
	if err != nil || !ok {
		return nil, err
	}
	return profile, nil
}

// Clear implements SessionStore.
func (b *BunStore) Clear(ctx context.Context) error {
	_, err := b.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session state")
	}
	return nil
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*BunStore)(nil)
)
