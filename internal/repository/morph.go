package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrMorphSetNotFound       = errors.New("morph set not found")
	ErrMorphSetAlreadyClaimed = errors.New("morph generation already running")
)

type MorphRepository interface {
	Claim(analysisID string, staleBefore time.Time) (*model.MorphSet, error)
	ByAnalysisID(analysisID string) (*model.MorphSet, error)
	Save(set *model.MorphSet) error
	MarkFailed(id, message string) error
}

type morphRepository struct {
	db *sqlx.DB
}

func NewMorphRepository(db *sqlx.DB) MorphRepository {
	return &morphRepository{db: db}
}

// Claim marks the analysis' morph set as processing and clears previous results.
// It returns ErrMorphSetAlreadyClaimed while another generation holds the row.
// A processing row last touched before staleBefore is taken over.
func (r *morphRepository) Claim(analysisID string, staleBefore time.Time) (*model.MorphSet, error) {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO analysis_morphs (id, analysis_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id) DO UPDATE SET
			status = excluded.status,
			overall_url = NULL,
			eyes_url = NULL,
			skin_url = NULL,
			jawline_url = NULL,
			overall_error = '',
			eyes_error = '',
			skin_error = '',
			jawline_error = '',
			error_message = '',
			updated_at = excluded.updated_at
		WHERE analysis_morphs.status <> 'processing'
		   OR analysis_morphs.updated_at < $6
	`, uuid.New().String(), analysisID, model.MorphStatusProcessing, now, now, staleBefore.UTC())
	if err != nil {
		return nil, err
	}
	if err := expectRow(result, ErrMorphSetAlreadyClaimed); err != nil {
		return nil, err
	}
	return r.ByAnalysisID(analysisID)
}

func (r *morphRepository) ByAnalysisID(analysisID string) (*model.MorphSet, error) {
	set := &model.MorphSet{}
	err := r.db.Get(set, `SELECT * FROM analysis_morphs WHERE analysis_id = $1`, analysisID)
	if err == sql.ErrNoRows {
		return nil, ErrMorphSetNotFound
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (r *morphRepository) Save(set *model.MorphSet) error {
	result, err := r.db.Exec(`
		UPDATE analysis_morphs
		SET status = $1,
		    overall_url = $2, eyes_url = $3, skin_url = $4, jawline_url = $5,
		    overall_error = $6, eyes_error = $7, skin_error = $8, jawline_error = $9,
		    error_message = $10,
		    updated_at = $11
		WHERE id = $12
	`,
		set.Status,
		set.OverallURL, set.EyesURL, set.SkinURL, set.JawlineURL,
		set.OverallError, set.EyesError, set.SkinError, set.JawlineError,
		set.ErrorMessage,
		time.Now().UTC(),
		set.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrMorphSetNotFound)
}

// MarkFailed releases a processing set as failed. Sets that already left
// processing are not touched.
func (r *morphRepository) MarkFailed(id, message string) error {
	_, err := r.db.Exec(`
		UPDATE analysis_morphs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = 'processing'
	`, model.MorphStatusFailed, message, time.Now().UTC(), id)
	return err
}
