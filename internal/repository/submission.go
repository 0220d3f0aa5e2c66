package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrSubmissionNotFound  = errors.New("photo submission not found")
	ErrSubmissionConverted = errors.New("photo submission already converted")
)

type SubmissionRepository interface {
	Upsert(sub *model.PhotoSubmission) error
	ByID(id string) (*model.PhotoSubmission, error)
	ByUserID(userID string) (*model.PhotoSubmission, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	Submissions(status string, limit int) ([]*model.PhotoSubmission, error)
	Convert(submissionID string, analysis *model.Analysis) error
}

type submissionRepository struct {
	db *sqlx.DB
}

func NewSubmissionRepository(db *sqlx.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Upsert replaces the photos of a pending submission. Converted submissions are frozen.
func (r *submissionRepository) Upsert(sub *model.PhotoSubmission) error {
	result, err := r.db.Exec(`
		INSERT INTO photo_submissions (
			id, user_id, front_url, left_url, right_url, smile_url, skin_url,
			hairline_url, status, analysis_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			front_url = excluded.front_url,
			left_url = excluded.left_url,
			right_url = excluded.right_url,
			smile_url = excluded.smile_url,
			skin_url = excluded.skin_url,
			hairline_url = excluded.hairline_url,
			updated_at = excluded.updated_at
		WHERE photo_submissions.status = 'pending'
	`,
		sub.ID, sub.UserID,
		sub.FrontURL, sub.LeftURL, sub.RightURL, sub.SmileURL, sub.SkinURL, sub.HairlineURL,
		sub.Status, sub.AnalysisID, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrSubmissionConverted)
}

func (r *submissionRepository) ByID(id string) (*model.PhotoSubmission, error) {
	return r.get(`SELECT * FROM photo_submissions WHERE id = $1`, id)
}

func (r *submissionRepository) ByUserID(userID string) (*model.PhotoSubmission, error) {
	return r.get(`SELECT * FROM photo_submissions WHERE user_id = $1`, userID)
}

func (r *submissionRepository) get(query string, arg any) (*model.PhotoSubmission, error) {
	sub := &model.PhotoSubmission{}
	err := r.db.Get(sub, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *submissionRepository) HasPending(ctx context.Context, userID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM photo_submissions WHERE user_id = $1 AND status = $2`,
		userID, model.SubmissionStatusPending)
	return count > 0, err
}

func (r *submissionRepository) Submissions(status string, limit int) ([]*model.PhotoSubmission, error) {
	var subs []*model.PhotoSubmission
	var err error
	if status == "" {
		err = r.db.Select(&subs, `SELECT * FROM photo_submissions ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.Select(&subs, `SELECT * FROM photo_submissions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// Convert creates the analysis and marks the submission converted in one transaction.
func (r *submissionRepository) Convert(submissionID string, analysis *model.Analysis) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(insertAnalysis, analysisArgs(analysis)...); err != nil {
		if isUniqueViolation(err) {
			return ErrAnalysisExists
		}
		return err
	}

	result, err := tx.Exec(`
		UPDATE photo_submissions SET status = $1, analysis_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`, model.SubmissionStatusConverted, analysis.ID, time.Now().UTC(), submissionID, model.SubmissionStatusPending)
	if err != nil {
		return err
	}
	if err := expectRow(result, ErrSubmissionConverted); err != nil {
		return err
	}

	return tx.Commit()
}
