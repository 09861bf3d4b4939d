package repository

import (
	"errors"
	"log"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	signin "github.com/goliatone/go-signin"
	"github.com/uptrace/bun"
)

// Manager hands out the account storage backed by a Bun database.
type Manager struct {
	accounts *AccountStore
	storage  signin.AccountStorage
}

// NewManager wires the account store. With a non nil cacheService reads go
// through CachedAccountStore.
func NewManager(db *bun.DB, cacheService repositorycache.CacheService) (*Manager, error) {
	accounts, err := NewAccountStore(db)
	if err != nil {
		return nil, err
	}

	m := &Manager{accounts: accounts, storage: accounts}
	if cacheService != nil {
		cached, err := NewCachedAccountStore(accounts, cacheService)
		if err != nil {
			return nil, err
		}
		m.storage = cached
	}
	return m, nil
}

func (m *Manager) Validate() error {
	if m == nil || m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}
	if m.storage == nil {
		return errors.New("repository storage should be initialized")
	}
	return m.accounts.Validate()
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// Accounts returns the uncached Bun store.
func (m *Manager) Accounts() *AccountStore {
	return m.accounts
}

// Storage returns the storage to hand to signin.Flow.
func (m *Manager) Storage() signin.AccountStorage {
	return m.storage
}
