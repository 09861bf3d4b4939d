package signin

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

var (
	_ gocmd.Commander[StoreAccountMessage] = (*StoreAccountCommand)(nil)
	_ gocmd.Commander[ClearAccountMessage] = (*ClearAccountCommand)(nil)
)

// StoreAccountMessage writes an account after a successful sign in.
type StoreAccountMessage struct {
	Account     StoredAccount `json:"account"`
	MakeCurrent bool          `json:"make_current"`
}

func (m StoreAccountMessage) Type() string { return "signin.account.store" }

func (m StoreAccountMessage) Validate() error {
	return validation.ValidateStruct(&m.Account,
		validation.Field(&m.Account.UID, validation.Required),
		validation.Field(&m.Account.Email, validation.Required),
	)
}

// StoreAccountCommand persists StoreAccountMessage payloads.
type StoreAccountCommand struct {
	storage AccountStorage
	now     func() time.Time
}

func NewStoreAccountCommand(storage AccountStorage) *StoreAccountCommand {
	return &StoreAccountCommand{storage: storage, now: time.Now}
}

func (c *StoreAccountCommand) Execute(ctx context.Context, msg StoreAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while storing account")
	default:
	}

	if c == nil || c.storage == nil {
		return ErrMissingDependency
	}

	if err := msg.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid stored account").
			WithTextCode(textCodeInvalidRequest)
	}

	account := msg.Account
	if account.LastLogin.IsZero() {
		account.LastLogin = c.now()
	}
	if account.SessionVerified && account.VerifiedAt == nil {
		verifiedAt := account.LastLogin
		account.VerifiedAt = &verifiedAt
	}

	if err := c.storage.Set(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store account")
	}

	if msg.MakeCurrent {
		if err := c.storage.SetCurrent(ctx, account.UID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set current account")
		}
	}
	return nil
}

// ClearAccountMessage drops the session of a stored account. With
// KeepAccount the email stays so the user can sign in again with a password.
type ClearAccountMessage struct {
	UID         string `json:"uid"`
	KeepAccount bool   `json:"keep_account"`
}

func (m ClearAccountMessage) Type() string { return "signin.account.clear" }

func (m ClearAccountMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UID, validation.Required),
	)
}

// ClearAccountCommand handles ClearAccountMessage.
type ClearAccountCommand struct {
	storage AccountStorage
}

func NewClearAccountCommand(storage AccountStorage) *ClearAccountCommand {
	return &ClearAccountCommand{storage: storage}
}

func (c *ClearAccountCommand) Execute(ctx context.Context, msg ClearAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while clearing account")
	default:
	}

	if c == nil || c.storage == nil {
		return ErrMissingDependency
	}

	if err := msg.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid clear account request").
			WithTextCode(textCodeInvalidRequest)
	}

	if !msg.KeepAccount {
		if err := c.storage.Clear(ctx, msg.UID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear account")
		}
		return nil
	}

	account, err := c.storage.Get(ctx, msg.UID)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	account.SessionToken = ""
	account.SessionVerified = false
	account.VerifiedAt = nil
	if err := c.storage.Set(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear account session")
	}
	return nil
}
