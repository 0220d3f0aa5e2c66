package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

var AgeBrackets = []string{"18-24", "25-34", "35-44", "45-54", "55+"}

// UserIntake is the onboarding questionnaire. One row per user.
type UserIntake struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	Name            string     `db:"name" json:"name"`
	AgeBracket      string     `db:"age_bracket" json:"ageBracket"`
	Country         string     `db:"country" json:"country"`
	Ethnicities     StringList `db:"ethnicities" json:"ethnicities"`
	AestheticFocus  StringList `db:"aesthetic_focus" json:"aestheticFocus"`
	PriorTreatments StringList `db:"prior_treatments" json:"priorTreatments"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// StringList is a []string stored as a JSON array in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}
