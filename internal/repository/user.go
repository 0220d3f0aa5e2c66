package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(user *model.User) error
	ByID(id string) (*model.User, error)
	ByEmail(email string) (*model.User, error)
	Users(limit int) ([]*model.User, error)
	Update(user *model.User) error
	SetRole(id, role string) error
	Delete(id string) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	query := `INSERT INTO users (id, name, email, email_verified, image, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerified,
		user.Image,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) ByID(id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.Get(user, `SELECT * FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) ByEmail(email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.Get(user, `SELECT * FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Users(limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.Select(&users, `SELECT * FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(user *model.User) error {
	query := `UPDATE users SET name = $1, email_verified = $2, image = $3, updated_at = $4 WHERE id = $5`

	result, err := r.db.Exec(query, user.Name, user.EmailVerified, user.Image, time.Now(), user.ID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrUserNotFound)
}

func (r *userRepository) SetRole(id, role string) error {
	result, err := r.db.Exec(`UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`, role, time.Now(), id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrUserNotFound)
}

func (r *userRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrUserNotFound)
}

// expectRow returns notFound when the statement touched no rows.
func expectRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
