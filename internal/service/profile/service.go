// Package profile implements account registration and the profile
// lifecycle rules: creation defaults and derived preference defaults.
package profile

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/repository"
)

const (
	minimumAge = 18
	maxAge     = 55
)

type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	profiles *repository.ProfileRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
	}
}

// Register creates an account and its empty profile in one step. The
// server-controlled fields always start at their zero defaults whatever
// the client sent; exactly one profile is created per user.
func (s *Service) Register(ctx context.Context, username, email, password string) (*db.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, svcErr.Validation("username and email are required")
	}
	if len(password) < 8 {
		return nil, svcErr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &db.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Admin:        false,
		Premium:      false,
		Credits:      0,
		Status:       db.StatusActive,
		Matches:      []uint64{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, svcErr.Conflict("username or email already in use")
		}
		return nil, err
	}

	profile := &db.Profile{
		UserID:        user.ID,
		Photos:        []string{},
		Enabled:       false,
		GPS:           true,
		Distance:      25,
		DistanceType:  "km",
		NotifyMatch:   true,
		NotifyMessage: true,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		s.appCtx.Logger.Error("failed to create profile for new user", "user", user.ID, "err", err)
		return nil, svcErr.Integrity("could not create profile for new user", err)
	}

	return user, nil
}

// ProfileUpdate carries the client-writable profile fields. Pointer
// fields distinguish "not sent" from zero values.
type ProfileUpdate struct {
	Name         *string    `json:"name"`
	Birthdate    *time.Time `json:"birthdate"`
	Gender       *string    `json:"gender"`
	About        *string    `json:"about"`
	Photos       []string   `json:"photos"`
	Lat          *float64   `json:"lat"`
	Lng          *float64   `json:"lng"`
	Distance     *float64   `json:"distance"`
	DistanceType *string    `json:"distanceType"`
	Guys         *bool      `json:"guys"`
	Girls        *bool      `json:"girls"`
	AgeFrom      *int       `json:"ageFrom"`
	AgeTo        *int       `json:"ageTo"`
	Enabled      *bool      `json:"enabled"`
}

// Update applies client edits to the caller's own profile, then derives
// the preference defaults a fresh value implies: an age window of ±5
// years around a new birthdate (clamped to 18..55) and opposite-gender
// interest for a newly set gender, each only when the user has not chosen
// already.
func (s *Service) Update(ctx context.Context, userID uint64, update ProfileUpdate) (*db.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, svcErr.NotFound("user has no profile")
	}

	if update.Name != nil {
		profile.Name = *update.Name
	}
	if update.About != nil {
		profile.About = *update.About
	}
	if update.Photos != nil {
		profile.Photos = update.Photos
	}
	if update.Lat != nil {
		profile.Lat = *update.Lat
	}
	if update.Lng != nil {
		profile.Lng = *update.Lng
	}
	if update.Distance != nil {
		profile.Distance = *update.Distance
	}
	if update.DistanceType != nil {
		if *update.DistanceType != "km" && *update.DistanceType != "mi" {
			return nil, svcErr.Validation("distanceType must be km or mi")
		}
		profile.DistanceType = *update.DistanceType
	}
	if update.Guys != nil {
		profile.Guys = *update.Guys
	}
	if update.Girls != nil {
		profile.Girls = *update.Girls
	}
	if update.AgeFrom != nil {
		profile.AgeFrom = *update.AgeFrom
	}
	if update.AgeTo != nil {
		profile.AgeTo = *update.AgeTo
	}
	if update.Enabled != nil {
		profile.Enabled = *update.Enabled
	}

	if update.Birthdate != nil {
		age := ageInYears(*update.Birthdate)
		if age < minimumAge {
			return nil, svcErr.Validation("must be at least 18 years old")
		}
		profile.Birthdate = update.Birthdate

		if profile.AgeFrom == 0 {
			from := age - 5
			if from < minimumAge {
				from = minimumAge
			}
			profile.AgeFrom = from
		}
		if profile.AgeTo == 0 {
			to := age + 5
			if to > maxAge {
				to = maxAge
			}
			profile.AgeTo = to
		}
	}

	if update.Gender != nil {
		gender := strings.ToUpper(*update.Gender)
		if gender != "M" && gender != "F" {
			return nil, svcErr.Validation("gender must be M or F")
		}
		profile.Gender = gender

		if update.Guys == nil && !profile.Guys && !profile.Girls {
			profile.Guys = gender != "M"
			profile.Girls = gender != "F"
		}
	}

	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns the caller's own profile, unscrubbed.
func (s *Service) Get(ctx context.Context, userID uint64) (*db.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, svcErr.NotFound("user has no profile")
	}
	return profile, nil
}

// SetPremium flips the server-controlled premium flag; the gateway calls
// this after verifying a purchase, never a client directly.
func (s *Service) SetPremium(ctx context.Context, userID uint64, premium bool, product string) error {
	if premium && product == "" {
		return svcErr.Validation("product must be provided when setting premium")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.Premium = premium
	return s.users.Save(ctx, user)
}

func ageInYears(birthdate time.Time) int {
	years := time.Now().Year() - birthdate.Year()
	if time.Now().YearDay() < birthdate.YearDay() {
		years--
	}
	return years
}
