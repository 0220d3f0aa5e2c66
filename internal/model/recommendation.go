package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RecommendationStatusCompleted = "completed"
	RecommendationStatusFailed    = "failed"
)

type Product struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
	URL      string `json:"url,omitempty"`
}

type ProductList []Product

func (l ProductList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Product(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ProductList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = ProductList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ProductList", value)
	}
	var out []Product
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode products: %w", err)
	}
	*l = out
	return nil
}

type RecommendationSet struct {
	ID           string      `db:"id" json:"id"`
	AnalysisID   string      `db:"analysis_id" json:"analysisId"`
	Status       string      `db:"status" json:"status"`
	Products     ProductList `db:"products" json:"products"`
	ErrorMessage string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}
