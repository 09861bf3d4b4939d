package repository

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	signin "github.com/goliatone/go-signin"
)

const storedAccountCacheKeyPrefix = "go-signin::stored_account::v1"

// CachedAccountStore is a read-through cache in front of another
// signin.AccountStorage. Writes go to the base storage and drop the cached
// entries they touch.
type CachedAccountStore struct {
	base  signin.AccountStorage
	cache repositorycache.CacheService
}

// NewCachedAccountStore wraps base with cacheService.
func NewCachedAccountStore(base signin.AccountStorage, cacheService repositorycache.CacheService) (*CachedAccountStore, error) {
	if base == nil {
		return nil, fmt.Errorf("repository: base account storage is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("repository: account cache service is required")
	}
	return &CachedAccountStore{base: base, cache: cacheService}, nil
}

// StoredAccountCacheKey returns the cache key for uid:
// go-signin::stored_account::v1::<uid>
func StoredAccountCacheKey(uid string) string {
	return storedAccountCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(uid))
}

func currentAccountCacheKey() string {
	return storedAccountCacheKeyPrefix + "::current"
}

// Get implements signin.AccountStorage.
func (s *CachedAccountStore) Get(ctx context.Context, uid string) (signin.StoredAccount, error) {
	account, err := repositorycache.GetOrFetch(ctx, s.cache, StoredAccountCacheKey(uid), func(ctx context.Context) (signin.StoredAccount, error) {
		return s.base.Get(ctx, uid)
	})
	if err != nil {
		return signin.StoredAccount{}, err
	}
	return cloneStoredAccount(account), nil
}

// Set implements signin.AccountStorage.
func (s *CachedAccountStore) Set(ctx context.Context, account signin.StoredAccount) error {
	if err := s.base.Set(ctx, account); err != nil {
		return err
	}
	return s.invalidate(ctx, account.UID)
}

// Clear implements signin.AccountStorage.
func (s *CachedAccountStore) Clear(ctx context.Context, uid string) error {
	if err := s.base.Clear(ctx, uid); err != nil {
		return err
	}
	return s.invalidate(ctx, uid)
}

// Current implements signin.AccountStorage.
func (s *CachedAccountStore) Current(ctx context.Context) (signin.StoredAccount, error) {
	account, err := repositorycache.GetOrFetch(ctx, s.cache, currentAccountCacheKey(), func(ctx context.Context) (signin.StoredAccount, error) {
		return s.base.Current(ctx)
	})
	if err != nil {
		return signin.StoredAccount{}, err
	}
	return cloneStoredAccount(account), nil
}

// SetCurrent implements signin.AccountStorage.
func (s *CachedAccountStore) SetCurrent(ctx context.Context, uid string) error {
	if err := s.base.SetCurrent(ctx, uid); err != nil {
		return err
	}
	return s.cache.Delete(ctx, currentAccountCacheKey())
}

// List implements signin.AccountLister when the base storage does.
func (s *CachedAccountStore) List(ctx context.Context) ([]signin.StoredAccount, error) {
	lister, ok := s.base.(signin.AccountLister)
	if !ok {
		return nil, signin.ErrMissingDependency
	}
	return lister.List(ctx)
}

func (s *CachedAccountStore) invalidate(ctx context.Context, uid string) error {
	if err := s.cache.Delete(ctx, StoredAccountCacheKey(uid)); err != nil {
		return err
	}
	return s.cache.Delete(ctx, currentAccountCacheKey())
}

func cloneStoredAccount(account signin.StoredAccount) signin.StoredAccount {
	cloned := account
	if account.VerifiedAt != nil {
		value := account.VerifiedAt.UTC()
		cloned.VerifiedAt = &value
	}
	if account.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(account.Metadata))
		for k, v := range account.Metadata {
			cloned.Metadata[k] = v
		}
	}
	return cloned
}

var (
	_ signin.AccountStorage = (*CachedAccountStore)(nil)
	_ signin.AccountLister  = (*CachedAccountStore)(nil)
)
