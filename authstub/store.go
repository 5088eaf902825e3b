package authstub

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Store persists accounts, activation codes and reset requests.
type Store struct {
	db *bun.DB
}

// OpenStore opens a sqlite database and creates the schema.
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}
	if strings.Contains(dsn, "memory") {
		sqldb.SetMaxOpenConns(1)
	}

	s := NewStore(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := s.CreateSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing bun database.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the tables when missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []any{
		(*Account)(nil),
		(*ActivationCode)(nil),
		(*PasswordReset)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateAccount inserts an inactive account.
func (s *Store) CreateAccount(ctx context.Context, email string, now time.Time) (*Account, error) {
	if _, err := s.AccountByEmail(ctx, email); err == nil {
		return nil, withMeta(ErrAccountExists, map[string]any{"email": email})
	} else if !goerrors.IsNotFound(err) {
		return nil, err
	}

	account := &Account{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}
	return account, nil
}

// AccountByEmail looks an account up by email, case-insensitively.
func (s *Store) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	account := &Account{}
	err := s.db.NewSelect().
		Model(account).
		Where("lower(email) = lower(?)", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}

// ReplaceActivationCode supersedes pending codes of the account and stores
// a new one.
func (s *Store) ReplaceActivationCode(ctx context.Context, accountID uuid.UUID, codeHash string, now time.Time) (*ActivationCode, error) {
	code := &ActivationCode{
		ID:        uuid.New(),
		AccountID: accountID,
		CodeHash:  codeHash,
		Status:    CodePendingStatus,
		CreatedAt: now,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*ActivationCode)(nil)).
			Set("status = ?", CodeSupersededStatus).
			Where("account_id = ?", accountID).
			Where("status = ?", CodePendingStatus).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede activation codes")
		}

		if _, err := tx.NewInsert().Model(code).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store activation code")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return code, nil
}

// PendingActivationCode returns the latest redeemable code of the account.
func (s *Store) PendingActivationCode(ctx context.Context, accountID uuid.UUID) (*ActivationCode, error) {
	code := &ActivationCode{}
	err := s.db.NewSelect().
		Model(code).
		Where("account_id = ?", accountID).
		Where("status = ?", CodePendingStatus).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPendingCode
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve activation code")
	}
	return code, nil
}

// Activate marks the account active and the code used.
func (s *Store) Activate(ctx context.Context, account *Account, code *ActivationCode, now time.Time) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account.Active = true
		account.ActivatedAt = &now
		if _, err := tx.NewUpdate().Model(account).Column("is_active", "activated_at").WherePK().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}

		code.Status = CodeUsedStatus
		code.UsedAt = &now
		if _, err := tx.NewUpdate().Model(code).Column("status", "used_at").WherePK().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark activation code as used")
		}
		return nil
	})
}

// CreatePasswordReset stores a reset request.
func (s *Store) CreatePasswordReset(ctx context.Context, reset *PasswordReset) error {
	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}
	if reset.Status == "" {
		reset.Status = ResetRequestedStatus
	}
	if _, err := s.db.NewInsert().Model(reset).Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
	}
	return nil
}

// PasswordResets lists reset requests for an email, newest first.
func (s *Store) PasswordResets(ctx context.Context, email string) ([]PasswordReset, error) {
	var resets []PasswordReset
	err := s.db.NewSelect().
		Model(&resets).
		Where("lower(email) = lower(?)", email).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list password resets")
	}
	return resets, nil
}
