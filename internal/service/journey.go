package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/parallelhq/parallel/internal/model"
)

// Journey destinations.
const (
	RouteAuth             = "/auth"
	RouteMobile           = "/mobile"
	RouteOnboarding       = "/onboarding"
	RouteMobileOnboarding = "/mobile/onboarding"
	RoutePayment          = "/payment"
	RouteCreateAnalysis   = "/create-analysis"
	RouteAnalysis         = "/analysis"
	RouteGlowUpProtocol   = "/glow-up-protocol"
)

var mobileUserAgent = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

func IsMobileUserAgent(userAgent string) bool {
	return mobileUserAgent.MatchString(userAgent)
}

// JourneyFacts answers the three questions that decide where a user lands.
type JourneyFacts interface {
	HasCompletedIntake(ctx context.Context, userID string) (bool, error)
	IsSubscribed(ctx context.Context, userID string) (bool, error)
	HasPhotos(ctx context.Context, userID string) (bool, error)
}

type JourneyService struct {
	facts JourneyFacts
}

func NewJourneyService(facts JourneyFacts) *JourneyService {
	return &JourneyService{facts: facts}
}

// Destination returns the single route a visitor should be sent to. It never
// fails: lookup errors count as "no", and a panic falls back to the signed
// out destination.
func (s *JourneyService) Destination(ctx context.Context, session *model.AuthSession, currentPath, userAgent string) (dest string) {
	mobile := IsMobileUserAgent(userAgent)
	signedOut := RouteAuth
	if mobile {
		signedOut = RouteMobile
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("journey resolution panicked", "panic", r)
			dest = signedOut
		}
	}()

	if session == nil || session.User == nil {
		return signedOut
	}
	userID := session.User.ID

	var hasIntake, subscribed, hasPhotos bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.lookup(gctx, "intake", userID, s.facts.HasCompletedIntake, &hasIntake))
	g.Go(s.lookup(gctx, "subscription", userID, s.facts.IsSubscribed, &subscribed))
	g.Go(s.lookup(gctx, "photos", userID, s.facts.HasPhotos, &hasPhotos))
	if err := g.Wait(); err != nil {
		slog.Error("journey resolution failed", "user_id", userID, "error", err)
		return signedOut
	}

	return Decide(JourneyState{
		HasIntake:   hasIntake,
		Subscribed:  subscribed,
		HasPhotos:   hasPhotos,
		Mobile:      mobile,
		CurrentPath: currentPath,
	})
}

// lookup swallows the fact's error with a false default. Only a panic is
// reported to the group.
func (s *JourneyService) lookup(ctx context.Context, fact, userID string, fn func(context.Context, string) (bool, error), out *bool) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s lookup panicked: %v", fact, r)
			}
		}()

		ok, lookupErr := fn(ctx, userID)
		if lookupErr != nil {
			slog.Warn("journey lookup failed, assuming false", "fact", fact, "user_id", userID, "error", lookupErr)
			return nil
		}
		*out = ok
		return nil
	}
}

// JourneyState is the already-fetched input to Decide.
type JourneyState struct {
	HasIntake   bool
	Subscribed  bool
	HasPhotos   bool
	Mobile      bool
	CurrentPath string
}

// Decide applies the routing table for a signed in user.
func Decide(st JourneyState) string {
	switch {
	case !st.HasIntake:
		if st.Mobile {
			return RouteMobileOnboarding
		}
		return RouteOnboarding
	case !st.Subscribed:
		return RoutePayment
	case !st.HasPhotos:
		return RouteCreateAnalysis
	case st.CurrentPath == RouteGlowUpProtocol:
		return RouteGlowUpProtocol
	default:
		return RouteAnalysis
	}
}

// RepositoryJourneyFacts answers JourneyFacts from the database.
type RepositoryJourneyFacts struct {
	intakes       intakeChecker
	subscriptions *SubscriptionService
	analyses      analysisChecker
	submissions   submissionChecker
}

type intakeChecker interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type analysisChecker interface {
	ExistsForUser(ctx context.Context, userID string) (bool, error)
}

type submissionChecker interface {
	HasPending(ctx context.Context, userID string) (bool, error)
}

func NewRepositoryJourneyFacts(intakes intakeChecker, subscriptions *SubscriptionService, analyses analysisChecker, submissions submissionChecker) *RepositoryJourneyFacts {
	return &RepositoryJourneyFacts{
		intakes:       intakes,
		subscriptions: subscriptions,
		analyses:      analyses,
		submissions:   submissions,
	}
}

func (f *RepositoryJourneyFacts) HasCompletedIntake(ctx context.Context, userID string) (bool, error) {
	return f.intakes.Exists(ctx, userID)
}

func (f *RepositoryJourneyFacts) IsSubscribed(ctx context.Context, userID string) (bool, error) {
	return f.subscriptions.IsSubscribed(ctx, userID)
}

// HasPhotos is true when the user has an analysis or a pending photo submission.
func (f *RepositoryJourneyFacts) HasPhotos(ctx context.Context, userID string) (bool, error) {
	ok, err := f.analyses.ExistsForUser(ctx, userID)
	if err != nil || ok {
		return ok, err
	}
	return f.submissions.HasPending(ctx, userID)
}
