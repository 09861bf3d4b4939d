package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	signin "github.com/goliatone/go-signin"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoredAccountModel is the Bun model for stored accounts.
type StoredAccountModel struct {
	bun.BaseModel `bun:"table:stored_accounts,alias:sa"`

	ID              string         `bun:"id,pk"`
	UID             string         `bun:"uid,notnull"`
	Email           string         `bun:"email,notnull"`
	SessionToken    string         `bun:"session_token"`
	SessionVerified bool           `bun:"session_verified,notnull"`
	VerifiedAt      *time.Time     `bun:"verified_at,nullzero"`
	LastLogin       *time.Time     `bun:"last_login,nullzero"`
	IsCurrent       bool           `bun:"is_current,notnull"`
	Metadata        map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt       time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func storedAccountHandlers() repository.ModelHandlers[*StoredAccountModel] {
	return repository.ModelHandlers[*StoredAccountModel]{
		NewRecord: func() *StoredAccountModel {
			return &StoredAccountModel{}
		},
		GetID: func(record *StoredAccountModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(record.ID)
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(record *StoredAccountModel, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "uid"
		},
		GetIdentifierValue: func(record *StoredAccountModel) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.UID)
		},
	}
}

// AccountStore implements signin.AccountStorage using Bun.
type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*StoredAccountModel]
	now  func() time.Time
}

// NewAccountStore creates a new store.
func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("repository: bun db is required")
	}
	repo := repository.NewRepository[*StoredAccountModel](db, storedAccountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("repository: invalid stored account repository wiring: %w", err)
		}
	}
	return &AccountStore{db: db, repo: repo, now: time.Now}, nil
}

// RecordID derives the stable record id for a uid.
func RecordID(uid string) (string, error) {
	id, err := hashid.NewUUID(strings.TrimSpace(uid))
	if err != nil {
		return "", fmt.Errorf("repository: derive record id: %w", err)
	}
	return id.String(), nil
}

// Get implements signin.AccountStorage.
func (s *AccountStore) Get(ctx context.Context, uid string) (signin.StoredAccount, error) {
	id, err := RecordID(uid)
	if err != nil {
		return signin.StoredAccount{}, err
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return signin.StoredAccount{}, signin.AccountNotFound(uid)
		}
		return signin.StoredAccount{}, err
	}
	return toStoredAccount(record), nil
}

// Set implements signin.AccountStorage.
func (s *AccountStore) Set(ctx context.Context, account signin.StoredAccount) error {
	if strings.TrimSpace(account.UID) == "" {
		return fmt.Errorf("repository: uid is required")
	}
	id, err := RecordID(account.UID)
	if err != nil {
		return err
	}

	model := fromStoredAccount(account)
	model.ID = id
	model.UpdatedAt = s.now().UTC()

	_, err = s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("session_token = EXCLUDED.session_token").
		Set("session_verified = EXCLUDED.session_verified").
		Set("verified_at = EXCLUDED.verified_at").
		Set("last_login = EXCLUDED.last_login").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// Clear implements signin.AccountStorage.
func (s *AccountStore) Clear(ctx context.Context, uid string) error {
	id, err := RecordID(uid)
	if err != nil {
		return err
	}
	_, err = s.db.NewDelete().
		Model((*StoredAccountModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Current implements signin.AccountStorage.
func (s *AccountStore) Current(ctx context.Context) (signin.StoredAccount, error) {
	record := &StoredAccountModel{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.is_current = ?", true).
		OrderExpr("?TableAlias.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return signin.StoredAccount{}, signin.AccountNotFound("")
		}
		return signin.StoredAccount{}, err
	}
	return toStoredAccount(record), nil
}

// List implements signin.AccountLister, most recent sign in first.
func (s *AccountStore) List(ctx context.Context) ([]signin.StoredAccount, error) {
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("last_login DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]signin.StoredAccount, 0, len(records))
	for _, record := range records {
		out = append(out, toStoredAccount(record))
	}
	return out, nil
}

// SetCurrent implements signin.AccountStorage.
func (s *AccountStore) SetCurrent(ctx context.Context, uid string) error {
	id, err := RecordID(uid)
	if err != nil {
		return err
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*StoredAccountModel)(nil)).
			Where("?TableAlias.id = ?", id).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return signin.AccountNotFound(uid)
		}

		if _, err := tx.NewUpdate().
			Model((*StoredAccountModel)(nil)).
			Set("is_current = ?", false).
			Where("is_current = ?", true).
			Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*StoredAccountModel)(nil)).
			Set("is_current = ?", true).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// Validate reports whether the store was wired.
func (s *AccountStore) Validate() error {
	if s == nil || s.db == nil {
		return errors.New("repository: bun db should be initialized")
	}
	if s.repo == nil {
		return errors.New("repository: stored accounts repository should be initialized")
	}
	return nil
}

func toStoredAccount(m *StoredAccountModel) signin.StoredAccount {
	account := signin.StoredAccount{
		UID:             m.UID,
		Email:           m.Email,
		SessionToken:    m.SessionToken,
		SessionVerified: m.SessionVerified,
	}
	if m.VerifiedAt != nil {
		verifiedAt := m.VerifiedAt.UTC()
		account.VerifiedAt = &verifiedAt
	}
	if m.LastLogin != nil {
		account.LastLogin = m.LastLogin.UTC()
	}
	if len(m.Metadata) > 0 {
		account.Metadata = maps.Clone(m.Metadata)
	}
	return account
}

func fromStoredAccount(a signin.StoredAccount) *StoredAccountModel {
	metadata := map[string]any{}
	if a.Metadata != nil {
		metadata = maps.Clone(a.Metadata)
	}

	model := &StoredAccountModel{
		UID:             strings.TrimSpace(a.UID),
		Email:           a.Email,
		SessionToken:    a.SessionToken,
		SessionVerified: a.SessionVerified,
		Metadata:        metadata,
	}
	if a.VerifiedAt != nil {
		verifiedAt := a.VerifiedAt.UTC()
		model.VerifiedAt = &verifiedAt
	}
	if !a.LastLogin.IsZero() {
		lastLogin := a.LastLogin.UTC()
		model.LastLogin = &lastLogin
	}
	return model
}

var (
	_ signin.AccountStorage = (*AccountStore)(nil)
	_ signin.AccountLister  = (*AccountStore)(nil)
)
