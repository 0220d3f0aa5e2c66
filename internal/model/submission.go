package model

import "time"

const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusConverted = "converted"
)

// PhotoSubmission stages photos uploaded before an analysis exists.
type PhotoSubmission struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"userId"`
	PhotoSet
	Status     string    `db:"status" json:"status"`
	AnalysisID *string   `db:"analysis_id" json:"analysisId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (s *PhotoSubmission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}
