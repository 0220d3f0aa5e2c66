package model

import (
	"time"
)

const (
	RoleUser     = "user"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

type User struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	Image         *string   `db:"image" json:"image"`
	Role          string    `db:"role" json:"role"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// IsReviewer reports whether the user may use the review tooling.
// Admins are reviewers too.
func (u *User) IsReviewer() bool {
	return u.Role == RoleReviewer || u.Role == RoleAdmin
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}
