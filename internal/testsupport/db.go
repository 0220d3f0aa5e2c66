package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parallelhq/parallel/internal/db"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
)

// MustOpenDB opens a migrated sqlite database in a temp dir and registers cleanup.
func MustOpenDB(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Init("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() {
		db.Close(conn)
	})

	if err := db.RunMigrations(conn.DB, "sqlite"); err != nil {
		t.Fatalf("db.RunMigrations: %v", err)
	}
	return conn
}

// NewUser inserts a user with the given email.
func NewUser(t testing.TB, conn *sqlx.DB, email string) *model.User {
	t.Helper()

	now := time.Now().UTC()
	user := &model.User{
		ID:        uuid.New().String(),
		Name:      "Test User",
		Email:     email,
		Role:      model.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repository.NewUserRepository(conn).Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// NewIntake stores a minimal completed intake for the user.
func NewIntake(t testing.TB, conn *sqlx.DB, userID string) *model.UserIntake {
	t.Helper()

	now := time.Now().UTC()
	intake := &model.UserIntake{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           "Test",
		AgeBracket:     "25-34",
		Country:        "US",
		Ethnicities:    model.StringList{"prefer_not_to_say"},
		AestheticFocus: model.StringList{"skin"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repository.NewIntakeRepository(conn).Upsert(intake); err != nil {
		t.Fatalf("upsert intake: %v", err)
	}
	return intake
}

// NewSubscription stores a subscription with the given raw status.
func NewSubscription(t testing.TB, conn *sqlx.DB, userID, status string) *model.Subscription {
	t.Helper()

	now := time.Now().UTC()
	subID := "sub_" + uuid.New().String()[:8]
	sub := &model.Subscription{
		ID:                   uuid.New().String(),
		UserID:               userID,
		Plan:                 "parallel",
		StripeSubscriptionID: &subID,
		Status:               status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := repository.NewSubscriptionRepository(conn).Create(sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

// Photos returns a complete photo set pointing at example.com.
func Photos() model.PhotoSet {
	return model.PhotoSet{
		FrontURL: "https://cdn.example.com/front.jpg",
		LeftURL:  "https://cdn.example.com/left.jpg",
		RightURL: "https://cdn.example.com/right.jpg",
		SmileURL: "https://cdn.example.com/smile.jpg",
		SkinURL:  "https://cdn.example.com/skin.jpg",
	}
}

// NewAnalysis stores an in-progress analysis for the user.
func NewAnalysis(t testing.TB, conn *sqlx.DB, userID string) *model.Analysis {
	t.Helper()

	now := time.Now().UTC()
	analysis := &model.Analysis{
		ID:        uuid.New().String(),
		UserID:    userID,
		PhotoSet:  Photos(),
		Status:    model.AnalysisStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repository.NewAnalysisRepository(conn).Create(analysis); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	return analysis
}
