package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrRecommendationNotFound = errors.New("recommendation set not found")
)

type RecommendationRepository interface {
	Upsert(set *model.RecommendationSet) error
	ByAnalysisID(analysisID string) (*model.RecommendationSet, error)
}

type recommendationRepository struct {
	db *sqlx.DB
}

func NewRecommendationRepository(db *sqlx.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

// Upsert keeps a single recommendation set per analysis.
func (r *recommendationRepository) Upsert(set *model.RecommendationSet) error {
	_, err := r.db.Exec(`
		INSERT INTO analysis_recommendations (
			id, analysis_id, status, products, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (analysis_id) DO UPDATE SET
			status = excluded.status,
			products = excluded.products,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`,
		set.ID,
		set.AnalysisID,
		set.Status,
		set.Products,
		set.ErrorMessage,
		set.CreatedAt,
		set.UpdatedAt,
	)
	return err
}

func (r *recommendationRepository) ByAnalysisID(analysisID string) (*model.RecommendationSet, error) {
	set := &model.RecommendationSet{}
	err := r.db.Get(set, `SELECT * FROM analysis_recommendations WHERE analysis_id = $1`, analysisID)
	if err == sql.ErrNoRows {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}
