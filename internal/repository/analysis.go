package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrAnalysisExists   = errors.New("user already has an analysis")
)

type AnalysisRepository interface {
	Create(analysis *model.Analysis) error
	ByID(id string) (*model.Analysis, error)
	ByIDForUser(userID, id string) (*model.Analysis, error)
	ByUserID(userID string) (*model.Analysis, error)
	ExistsForUser(ctx context.Context, userID string) (bool, error)
	Analyses(status string, limit int) ([]*model.Analysis, error)
	CompareAndSetStatus(id, from, to string) (bool, error)
	SetMorphURL(id string, url *string) error

	UpsertSection(content *model.AnalysisSectionContent) error
	Sections(analysisID string) ([]*model.AnalysisSectionContent, error)
}

type analysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

const insertAnalysis = `
	INSERT INTO analyses (
		id, user_id, front_url, left_url, right_url, smile_url, skin_url,
		hairline_url, status, morph_url, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func analysisArgs(a *model.Analysis) []any {
	return []any{
		a.ID, a.UserID,
		a.FrontURL, a.LeftURL, a.RightURL, a.SmileURL, a.SkinURL, a.HairlineURL,
		a.Status, a.MorphURL, a.CreatedAt, a.UpdatedAt,
	}
}

// Create relies on the unique user_id constraint to keep one analysis per user.
func (r *analysisRepository) Create(analysis *model.Analysis) error {
	_, err := r.db.Exec(insertAnalysis, analysisArgs(analysis)...)
	if isUniqueViolation(err) {
		return ErrAnalysisExists
	}
	return err
}

func (r *analysisRepository) ByID(id string) (*model.Analysis, error) {
	return r.get(`SELECT * FROM analyses WHERE id = $1`, id)
}

// ByIDForUser returns ErrAnalysisNotFound both for a missing analysis and for
// one that belongs to somebody else.
func (r *analysisRepository) ByIDForUser(userID, id string) (*model.Analysis, error) {
	return r.get(`SELECT * FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *analysisRepository) ByUserID(userID string) (*model.Analysis, error) {
	return r.get(`SELECT * FROM analyses WHERE user_id = $1`, userID)
}

func (r *analysisRepository) get(query string, args ...any) (*model.Analysis, error) {
	analysis := &model.Analysis{}
	err := r.db.Get(analysis, query, args...)
	if err == sql.ErrNoRows {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

func (r *analysisRepository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID)
	return count > 0, err
}

// Analyses lists analyses newest first. An empty status lists all of them.
func (r *analysisRepository) Analyses(status string, limit int) ([]*model.Analysis, error) {
	var analyses []*model.Analysis
	var err error
	if status == "" {
		err = r.db.Select(&analyses, `SELECT * FROM analyses ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.Select(&analyses, `SELECT * FROM analyses WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// CompareAndSetStatus moves the analysis to `to` only while it is still in `from`.
// It reports false when another writer got there first.
func (r *analysisRepository) CompareAndSetStatus(id, from, to string) (bool, error) {
	result, err := r.db.Exec(`UPDATE analyses SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *analysisRepository) SetMorphURL(id string, url *string) error {
	result, err := r.db.Exec(`UPDATE analyses SET morph_url = $1, updated_at = $2 WHERE id = $3`,
		url, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrAnalysisNotFound)
}

func (r *analysisRepository) UpsertSection(content *model.AnalysisSectionContent) error {
	_, err := r.db.Exec(`
		INSERT INTO analysis_section_contents (
			id, analysis_id, section_key, image_url, explanation, additional_features,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (analysis_id, section_key) DO UPDATE SET
			image_url = excluded.image_url,
			explanation = excluded.explanation,
			additional_features = excluded.additional_features,
			updated_at = excluded.updated_at
	`,
		content.ID,
		content.AnalysisID,
		content.SectionKey,
		content.ImageURL,
		content.Explanation,
		content.AdditionalFeatures,
		content.CreatedAt,
		content.UpdatedAt,
	)
	return err
}

func (r *analysisRepository) Sections(analysisID string) ([]*model.AnalysisSectionContent, error) {
	var sections []*model.AnalysisSectionContent
	err := r.db.Select(&sections, `SELECT * FROM analysis_section_contents WHERE analysis_id = $1 ORDER BY section_key`, analysisID)
	if err != nil {
		return nil, err
	}
	return sections, nil
}
