package service

import (
	"context"
	"errors"
	"testing"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/testsupport"
)

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"
	desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/537.36 Chrome/120.0"
)

type fakeFacts struct {
	intake, subscribed, photos          bool
	intakeErr, subscribedErr, photosErr error
	panicOn                             string
}

func (f *fakeFacts) HasCompletedIntake(ctx context.Context, userID string) (bool, error) {
	if f.panicOn == "intake" {
		panic("boom")
	}
	return f.intake, f.intakeErr
}

func (f *fakeFacts) IsSubscribed(ctx context.Context, userID string) (bool, error) {
	return f.subscribed, f.subscribedErr
}

func (f *fakeFacts) HasPhotos(ctx context.Context, userID string) (bool, error) {
	return f.photos, f.photosErr
}

func testSession() *model.AuthSession {
	return &model.AuthSession{
		Session: &model.Session{ID: "s1", UserID: "u1"},
		User:    &model.User{ID: "u1", Email: "u1@example.com"},
	}
}

func TestDestinationWithoutSession(t *testing.T) {
	svc := NewJourneyService(&fakeFacts{})

	if got := svc.Destination(context.Background(), nil, "/", iphoneUA); got != RouteMobile {
		t.Fatalf("mobile = %q, want %q", got, RouteMobile)
	}
	if got := svc.Destination(context.Background(), nil, "/", desktopUA); got != RouteAuth {
		t.Fatalf("desktop = %q, want %q", got, RouteAuth)
	}
}

func TestDestinationTable(t *testing.T) {
	tests := []struct {
		name  string
		facts fakeFacts
		path  string
		ua    string
		want  string
	}{
		{name: "no intake desktop", facts: fakeFacts{subscribed: true, photos: true}, ua: desktopUA, want: RouteOnboarding},
		{name: "no intake mobile", facts: fakeFacts{subscribed: true, photos: true}, ua: "Android 14; Pixel 8", want: RouteMobileOnboarding},
		// new user on iPhone visiting /payment: intake beats everything
		{name: "new user on payment page", facts: fakeFacts{}, path: RoutePayment, ua: iphoneUA, want: RouteMobileOnboarding},
		{name: "no subscription with photos", facts: fakeFacts{intake: true, photos: true}, ua: desktopUA, want: RoutePayment},
		{name: "no subscription mobile", facts: fakeFacts{intake: true}, ua: iphoneUA, want: RoutePayment},
		{name: "subscribed without photos", facts: fakeFacts{intake: true, subscribed: true}, ua: desktopUA, want: RouteCreateAnalysis},
		{name: "everything done", facts: fakeFacts{intake: true, subscribed: true, photos: true}, path: "/", ua: desktopUA, want: RouteAnalysis},
		{name: "glow up preserved", facts: fakeFacts{intake: true, subscribed: true, photos: true}, path: RouteGlowUpProtocol, ua: iphoneUA, want: RouteGlowUpProtocol},
		{name: "glow up needs photos", facts: fakeFacts{intake: true, subscribed: true}, path: RouteGlowUpProtocol, ua: desktopUA, want: RouteCreateAnalysis},
		{name: "intake lookup fails closed", facts: fakeFacts{intakeErr: errors.New("db down"), subscribed: true, photos: true}, ua: desktopUA, want: RouteOnboarding},
		{name: "subscription lookup fails closed", facts: fakeFacts{intake: true, subscribedErr: errors.New("db down"), photos: true}, ua: desktopUA, want: RoutePayment},
		{name: "photos lookup fails closed", facts: fakeFacts{intake: true, subscribed: true, photosErr: errors.New("db down")}, ua: desktopUA, want: RouteCreateAnalysis},
		{name: "panic maps to signed out", facts: fakeFacts{panicOn: "intake"}, ua: iphoneUA, want: RouteMobile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := tt.facts
			svc := NewJourneyService(&facts)
			got := svc.Destination(context.Background(), testSession(), tt.path, tt.ua)
			if got != tt.want {
				t.Fatalf("Destination = %q, want %q", got, tt.want)
			}
		})
	}
}

// Exhaustive over the three facts and both device classes.
func TestDecideProperties(t *testing.T) {
	for _, intake := range []bool{false, true} {
		for _, subscribed := range []bool{false, true} {
			for _, photos := range []bool{false, true} {
				for _, mobile := range []bool{false, true} {
					for _, path := range []string{"", RoutePayment, RouteGlowUpProtocol} {
						st := JourneyState{HasIntake: intake, Subscribed: subscribed, HasPhotos: photos, Mobile: mobile, CurrentPath: path}
						got := Decide(st)

						switch {
						case !intake:
							want := RouteOnboarding
							if mobile {
								want = RouteMobileOnboarding
							}
							if got != want {
								t.Fatalf("%+v: got %q, want %q", st, got, want)
							}
						case !subscribed:
							if got != RoutePayment {
								t.Fatalf("%+v: got %q, want /payment", st, got)
							}
						case photos && path == RouteGlowUpProtocol:
							if got != RouteGlowUpProtocol {
								t.Fatalf("%+v: glow-up path not preserved, got %q", st, got)
							}
						case photos:
							if got != RouteAnalysis {
								t.Fatalf("%+v: got %q, want /analysis", st, got)
							}
						}
					}
				}
			}
		}
	}
}

func TestIsMobileUserAgent(t *testing.T) {
	for ua, want := range map[string]bool{
		iphoneUA:                     true,
		"Opera Mini/8.0":             true,
		"BlackBerry9700":             true,
		"Mozilla/5.0 (iPad; CPU OS)": true,
		desktopUA:                    false,
		"":                           false,
	} {
		if got := IsMobileUserAgent(ua); got != want {
			t.Errorf("IsMobileUserAgent(%q) = %v, want %v", ua, got, want)
		}
	}
}

func TestRepositoryJourneyFacts(t *testing.T) {
	env := newTestEnv(t)
	user := testsupport.NewUser(t, env.conn, "facts@example.com")
	testsupport.NewIntake(t, env.conn, user.ID)
	testsupport.NewSubscription(t, env.conn, user.ID, model.SubscriptionStatusActive)
	facts := NewRepositoryJourneyFacts(repository.NewIntakeRepository(env.conn), env.subscriptionService, env.analyses, env.submissions)

	ctx := context.Background()
	for name, fn := range map[string]func(context.Context, string) (bool, error){
		"intake":       facts.HasCompletedIntake,
		"subscription": facts.IsSubscribed,
	} {
		if ok, err := fn(ctx, user.ID); err != nil || !ok {
			t.Fatalf("%s = %v, %v; want true", name, ok, err)
		}
	}
	if ok, err := facts.HasPhotos(ctx, user.ID); err != nil || ok {
		t.Fatalf("photos = %v, %v; want false", ok, err)
	}

	// Lookups stop once the resolution is cancelled.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	for name, fn := range map[string]func(context.Context, string) (bool, error){
		"intake":       facts.HasCompletedIntake,
		"subscription": facts.IsSubscribed,
		"photos":       facts.HasPhotos,
	} {
		if _, err := fn(cancelled, user.ID); !errors.Is(err, context.Canceled) {
			t.Fatalf("%s with cancelled context: err = %v, want context.Canceled", name, err)
		}
	}
}
