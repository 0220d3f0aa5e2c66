package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already linked")
)

type AccountRepository interface {
	Create(account *model.Account) error
	ByProvider(providerID, accountID string) (*model.Account, error)
	Accounts(userID string) ([]*model.Account, error)
	UpdatePassword(id, passwordHash string) error
}

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *model.Account) error {
	query := `INSERT INTO accounts (id, user_id, provider_id, account_id, password_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		account.ID,
		account.UserID,
		account.ProviderID,
		account.AccountID,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateAccount
	}
	return err
}

func (r *accountRepository) ByProvider(providerID, accountID string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT * FROM accounts WHERE provider_id = $1 AND account_id = $2`

	err := r.db.Get(account, query, providerID, accountID)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) Accounts(userID string) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.Select(&accounts, `SELECT * FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) UpdatePassword(id, passwordHash string) error {
	result, err := r.db.Exec(`UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrAccountNotFound)
}
