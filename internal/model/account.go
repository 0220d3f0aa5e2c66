package model

import "time"

const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
)

// Account links a user to a sign-in method. Credential accounts carry a
// bcrypt hash and use the lowercased email as AccountID.
type Account struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	ProviderID   string    `db:"provider_id"`
	AccountID    string    `db:"account_id"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}
