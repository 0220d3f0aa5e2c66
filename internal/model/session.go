package model

import "time"

type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	IPAddress string    `db:"ip_address" json:"ipAddress"`
	UserAgent string    `db:"user_agent" json:"userAgent"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AuthSession is the resolved session attached to a request.
type AuthSession struct {
	Session *Session
	User    *User
}
