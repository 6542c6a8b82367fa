// Package discovery implements candidate search: enabled profiles within
// the caller's radius, gender and age preferences, excluding every pair
// the caller has already decided on.
package discovery

import (
	"context"
	"math"
	"time"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/repository"
)

const (
	// maxResults matches the client's swipe-deck size.
	maxResults = 25

	// maxAgePlus is the ceiling of the age slider; selecting it means
	// "this age and older", so the upper birthdate bound is dropped.
	maxAgePlus = 55

	earthRadiusKm = 6371.0
	milesPerKm    = 0.621371
)

type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	matches  *repository.MatchRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
	}
}

// Candidate is a discoverable profile as shown in the swipe deck.
type Candidate struct {
	UserID uint64   `json:"userId"`
	Name   string   `json:"name"`
	Age    int      `json:"age,omitempty"`
	Gender string   `json:"gender"`
	About  string   `json:"about,omitempty"`
	Photos []string `json:"photos"`
}

// Candidates returns new potential matches for the caller.
//
// The "already decided" exclusion is derived from action-slot presence on
// the caller's Match rows, both sides of the pair, over at most one
// 1000-row page: an unset slot means undecided, anything else (including
// the other-reject sentinel) means the pair must not resurface.
func (s *Service) Candidates(ctx context.Context, userID uint64) ([]Candidate, error) {
	own, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, svcErr.NotFound("user has no profile")
	}

	var genders []string
	if own.Guys {
		genders = append(genders, "M")
	}
	if own.Girls {
		genders = append(genders, "F")
	}
	if len(genders) == 0 {
		return []Candidate{}, nil
	}

	decided, err := s.matches.DecidedUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := append(decided, userID)

	filter := repository.CandidateFilter{
		Genders:        genders,
		ExcludeUserIDs: exclude,
	}
	now := time.Now()
	if own.AgeFrom > 0 {
		// Youngest allowed: born at most ageFrom years ago.
		to := now.AddDate(-own.AgeFrom, 0, 0)
		filter.BirthdateTo = &to
	}
	if own.AgeTo > 0 && own.AgeTo != maxAgePlus {
		from := now.AddDate(-own.AgeTo-1, 0, 0)
		filter.BirthdateFrom = &from
	}

	profiles, err := s.profiles.Candidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	radiusKm := own.Distance
	if own.DistanceType == "mi" {
		radiusKm = own.Distance / milesPerKm
	}

	candidates := make([]Candidate, 0, maxResults)
	for i := range profiles {
		p := &profiles[i]
		if haversineKm(own.Lat, own.Lng, p.Lat, p.Lng) > radiusKm {
			continue
		}
		candidates = append(candidates, toCandidate(p))
		if len(candidates) == maxResults {
			break
		}
	}
	return candidates, nil
}

func toCandidate(p *db.Profile) Candidate {
	c := Candidate{
		UserID: p.UserID,
		Name:   p.Name,
		Gender: p.Gender,
		About:  p.About,
		Photos: p.Photos,
	}
	if c.Photos == nil {
		c.Photos = []string{}
	}
	if p.Birthdate != nil {
		years := time.Now().Year() - p.Birthdate.Year()
		if time.Now().YearDay() < p.Birthdate.YearDay() {
			years--
		}
		if years > 0 {
			c.Age = years
		}
	}
	return c
}

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
