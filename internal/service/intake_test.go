package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/testsupport"
)

func TestIntakeUpsert(t *testing.T) {
	env := newTestEnv(t)
	svc := NewIntakeService(repository.NewIntakeRepository(env.conn))
	user := testsupport.NewUser(t, env.conn, "intake@example.com")

	mine, err := svc.Mine(user.ID)
	if err != nil || mine != nil {
		t.Fatalf("Mine before upsert = %v, %v", mine, err)
	}

	in := IntakeInput{
		Name:           "  Sam  ",
		AgeBracket:     "25-34",
		Country:        "US",
		AestheticFocus: []string{"skin", " skin ", "", "jawline"},
	}
	first, err := svc.Upsert(user.ID, in)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.Name != "Sam" {
		t.Fatalf("name = %q", first.Name)
	}
	if got := []string(first.AestheticFocus); len(got) != 2 || got[0] != "skin" || got[1] != "jawline" {
		t.Fatalf("aesthetic focus = %v", got)
	}

	in.AgeBracket = "35-44"
	second, err := svc.Upsert(user.ID, in)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if second.ID != first.ID || second.AgeBracket != "35-44" {
		t.Fatalf("second = %+v, want same row updated", second)
	}

	ok, err := svc.HasCompleted(context.Background(), user.ID)
	if err != nil || !ok {
		t.Fatalf("HasCompleted = %v, %v", ok, err)
	}

	in.AgeBracket = "30"
	if _, err := svc.Upsert(user.ID, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad bracket: err = %v, want ErrInvalidInput", err)
	}
}
