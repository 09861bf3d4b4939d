package signin

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

// StoredAccount is the locally cached account data written after a sign in.
type StoredAccount struct {
	UID             string         `json:"uid"`
	Email           string         `json:"email"`
	SessionToken    string         `json:"sessionToken,omitempty"`
	SessionVerified bool           `json:"sessionVerified"`
	VerifiedAt      *time.Time     `json:"verifiedAt,omitempty"`
	LastLogin       time.Time      `json:"lastLogin"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AccountStorage persists the accounts known to this browser or client.
type AccountStorage interface {
	Get(ctx context.Context, uid string) (StoredAccount, error)
	Set(ctx context.Context, account StoredAccount) error
	Clear(ctx context.Context, uid string) error
	Current(ctx context.Context) (StoredAccount, error)
	SetCurrent(ctx context.Context, uid string) error
}

// AccountLister is implemented by storages that can enumerate accounts.
type AccountLister interface {
	List(ctx context.Context) ([]StoredAccount, error)
}

// MemoryAccountStorage is an in process AccountStorage.
type MemoryAccountStorage struct {
	mu       sync.RWMutex
	accounts map[string]StoredAccount
	current  string
}

// NewMemoryAccountStorage returns an empty MemoryAccountStorage.
func NewMemoryAccountStorage() *MemoryAccountStorage {
	return &MemoryAccountStorage{accounts: map[string]StoredAccount{}}
}

func (s *MemoryAccountStorage) Get(_ context.Context, uid string) (StoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[uid]
	if !ok {
		return StoredAccount{}, AccountNotFound(uid)
	}
	return cloneAccount(account), nil
}

func (s *MemoryAccountStorage) Set(_ context.Context, account StoredAccount) error {
	if account.UID == "" {
		return ErrInvalidSigninRequest.Clone().WithMetadata(map[string]any{"field": "uid"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.UID] = cloneAccount(account)
	return nil
}

func (s *MemoryAccountStorage) Clear(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, uid)
	if s.current == uid {
		s.current = ""
	}
	return nil
}

func (s *MemoryAccountStorage) Current(ctx context.Context) (StoredAccount, error) {
	s.mu.RLock()
	uid := s.current
	s.mu.RUnlock()

	if uid == "" {
		return StoredAccount{}, AccountNotFound("")
	}
	return s.Get(ctx, uid)
}

func (s *MemoryAccountStorage) SetCurrent(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[uid]; !ok {
		return AccountNotFound(uid)
	}
	s.current = uid
	return nil
}

// List returns the stored accounts, most recent sign in first.
func (s *MemoryAccountStorage) List(_ context.Context) ([]StoredAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, cloneAccount(account))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastLogin.After(out[j].LastLogin)
	})
	return out, nil
}

func cloneAccount(account StoredAccount) StoredAccount {
	if account.Metadata != nil {
		account.Metadata = maps.Clone(account.Metadata)
	}
	if account.VerifiedAt != nil {
		verifiedAt := *account.VerifiedAt
		account.VerifiedAt = &verifiedAt
	}
	return account
}

// AccountNotFound returns ErrAccountNotFound annotated with uid.
func AccountNotFound(uid string) error {
	clone := ErrAccountNotFound.Clone()
	if clone == nil {
		return ErrAccountNotFound
	}
	return clone.WithMetadata(map[string]any{"uid": uid})
}
