package model

import "time"

const (
	MorphStatusPending    = "pending"
	MorphStatusProcessing = "processing"
	MorphStatusCompleted  = "completed"
	MorphStatusFailed     = "failed"
)

const (
	MorphVariantOverall = "overall"
	MorphVariantEyes    = "eyes"
	MorphVariantSkin    = "skin"
	MorphVariantJawline = "jawline"
)

// MorphVariants is the generation order.
var MorphVariants = []string{
	MorphVariantOverall,
	MorphVariantEyes,
	MorphVariantSkin,
	MorphVariantJawline,
}

type MorphSet struct {
	ID           string    `db:"id" json:"id"`
	AnalysisID   string    `db:"analysis_id" json:"analysisId"`
	Status       string    `db:"status" json:"status"`
	OverallURL   *string   `db:"overall_url" json:"overallUrl"`
	EyesURL      *string   `db:"eyes_url" json:"eyesUrl"`
	SkinURL      *string   `db:"skin_url" json:"skinUrl"`
	JawlineURL   *string   `db:"jawline_url" json:"jawlineUrl"`
	OverallError string    `db:"overall_error" json:"overallError,omitempty"`
	EyesError    string    `db:"eyes_error" json:"eyesError,omitempty"`
	SkinError    string    `db:"skin_error" json:"skinError,omitempty"`
	JawlineError string    `db:"jawline_error" json:"jawlineError,omitempty"`
	ErrorMessage string    `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// SetVariant records the outcome of one variant. A failed variant keeps a nil URL.
func (m *MorphSet) SetVariant(variant string, url *string, errText string) {
	switch variant {
	case MorphVariantOverall:
		m.OverallURL, m.OverallError = url, errText
	case MorphVariantEyes:
		m.EyesURL, m.EyesError = url, errText
	case MorphVariantSkin:
		m.SkinURL, m.SkinError = url, errText
	case MorphVariantJawline:
		m.JawlineURL, m.JawlineError = url, errText
	}
}

func (m *MorphSet) VariantURL(variant string) *string {
	switch variant {
	case MorphVariantOverall:
		return m.OverallURL
	case MorphVariantEyes:
		return m.EyesURL
	case MorphVariantSkin:
		return m.SkinURL
	case MorphVariantJawline:
		return m.JawlineURL
	}
	return nil
}

// SucceededCount returns how many variants produced an image.
func (m *MorphSet) SucceededCount() int {
	n := 0
	for _, v := range MorphVariants {
		if m.VariantURL(v) != nil {
			n++
		}
	}
	return n
}
