package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrIntakeNotFound = errors.New("intake not found")
)

type IntakeRepository interface {
	ByUserID(userID string) (*model.UserIntake, error)
	Exists(ctx context.Context, userID string) (bool, error)
	Upsert(intake *model.UserIntake) error
}

type intakeRepository struct {
	db *sqlx.DB
}

func NewIntakeRepository(db *sqlx.DB) IntakeRepository {
	return &intakeRepository{db: db}
}

func (r *intakeRepository) ByUserID(userID string) (*model.UserIntake, error) {
	var intake model.UserIntake
	err := r.db.Get(&intake, `SELECT * FROM user_intakes WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, ErrIntakeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intake, nil
}

func (r *intakeRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_intakes WHERE user_id = $1`, userID)
	return count > 0, err
}

// Upsert keeps one row per user; a repeated call updates the answers in place
// and leaves id and created_at untouched.
func (r *intakeRepository) Upsert(intake *model.UserIntake) error {
	_, err := r.db.Exec(`
		INSERT INTO user_intakes (
			id, user_id, name, age_bracket, country,
			ethnicities, aesthetic_focus, prior_treatments,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			age_bracket = excluded.age_bracket,
			country = excluded.country,
			ethnicities = excluded.ethnicities,
			aesthetic_focus = excluded.aesthetic_focus,
			prior_treatments = excluded.prior_treatments,
			updated_at = excluded.updated_at
	`,
		intake.ID,
		intake.UserID,
		intake.Name,
		intake.AgeBracket,
		intake.Country,
		intake.Ethnicities,
		intake.AestheticFocus,
		intake.PriorTreatments,
		intake.CreatedAt,
		intake.UpdatedAt,
	)
	return err
}
