package model

import (
	"time"
)

const (
	AnalysisStatusInProgress = "in_progress"
	AnalysisStatusReady      = "ready"
	AnalysisStatusComplete   = "complete"
)

var analysisStatusRank = map[string]int{
	AnalysisStatusInProgress: 0,
	AnalysisStatusReady:      1,
	AnalysisStatusComplete:   2,
}

// AnalysisStatusRank returns the position of status in the lifecycle,
// or -1 for an unknown status.
func AnalysisStatusRank(status string) int {
	rank, ok := analysisStatusRank[status]
	if !ok {
		return -1
	}
	return rank
}

func ValidAnalysisStatus(status string) bool {
	return AnalysisStatusRank(status) >= 0
}

// CanAdvanceAnalysis reports whether from -> to is a forward move.
// Staying on the same status is not an advance.
func CanAdvanceAnalysis(from, to string) bool {
	f, t := AnalysisStatusRank(from), AnalysisStatusRank(to)
	return f >= 0 && t > f
}

// PhotoSet holds the photo URLs shared by analyses and photo submissions.
type PhotoSet struct {
	FrontURL    string  `db:"front_url" json:"frontUrl" validate:"required,photourl"`
	LeftURL     string  `db:"left_url" json:"leftUrl" validate:"required,photourl"`
	RightURL    string  `db:"right_url" json:"rightUrl" validate:"required,photourl"`
	SmileURL    string  `db:"smile_url" json:"smileUrl" validate:"required,photourl"`
	SkinURL     string  `db:"skin_url" json:"skinUrl" validate:"required,photourl"`
	HairlineURL *string `db:"hairline_url" json:"hairlineUrl,omitempty" validate:"omitempty,photourl"`
}

// PhotoSlots lists the upload slots in display order.
var PhotoSlots = []string{"front", "left", "right", "smile", "skin", "hairline"}

type Analysis struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"userId"`
	PhotoSet
	Status    string    `db:"status" json:"status"`
	MorphURL  *string   `db:"morph_url" json:"morphUrl,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (a *Analysis) IsComplete() bool {
	return a.Status == AnalysisStatusComplete
}

func (a *Analysis) IsTerminal() bool {
	return a.IsComplete()
}

// SectionsVisible reports whether reviewer-written sections may be shown to the owner.
func (a *Analysis) SectionsVisible() bool {
	return a.Status != AnalysisStatusInProgress
}

type AnalysisSectionContent struct {
	ID                 string    `db:"id" json:"id"`
	AnalysisID         string    `db:"analysis_id" json:"analysisId"`
	SectionKey         string    `db:"section_key" json:"sectionKey"`
	ImageURL           *string   `db:"image_url" json:"imageUrl,omitempty"`
	Explanation        string    `db:"explanation" json:"explanation"`
	AdditionalFeatures string    `db:"additional_features" json:"additionalFeatures"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}
