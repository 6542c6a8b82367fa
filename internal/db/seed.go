package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with demo users,
// profiles and matches.
//
// Behavior:
//  1. Clears users, profiles, matches and chat messages.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords and
//     enabled profiles spread around a city center.
//  3. Generates swipes between opposite-gender pairs with ~70% likes;
//     every 3rd pair is forced mutual, including profile snapshots and
//     both users' denormalized match lists.
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"chat_messages", "matches", "profiles", "users"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		database.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		database.Exec("DELETE FROM sqlite_sequence WHERE name IN ('matches', 'profiles', 'users')")
	}

	log.Println("Cleared existing data")

	// --- Users + Profiles (10 male, 10 female) ---
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gender := "M"
		if i > 10 {
			gender = "F"
		}

		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Status:       StatusActive,
			Matches:      []uint64{},
		}
		if err := database.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		birthdate := time.Now().AddDate(-(20 + r.Intn(20)), -r.Intn(12), 0)
		profile := Profile{
			UserID:       user.ID,
			Name:         fmt.Sprintf("User %d", i),
			Birthdate:    &birthdate,
			Gender:       gender,
			Photos:       []string{},
			Lat:          51.5074 + (r.Float64()-0.5)*0.2,
			Lng:          -0.1278 + (r.Float64()-0.5)*0.2,
			Distance:     25,
			DistanceType: "km",
			Guys:         gender == "F",
			Girls:        gender == "M",
			AgeFrom:      18,
			AgeTo:        55,
			Enabled:      true,
		}
		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Println("Seeded 20 users with profiles.")

	// --- Matches ---
	seen := map[[2]uint64]bool{}
	counter := 0
	for a := uint64(1); a <= 10; a++ {
		for j := 0; j < 6; j++ {
			b := uint64(r.Intn(10) + 11)
			pair := [2]uint64{a, b}
			if seen[pair] {
				continue
			}
			seen[pair] = true

			liked := r.Intn(100) < 70
			mutual := counter%3 == 0
			counter++

			match := Match{UID1: a, UID2: b}
			switch {
			case mutual:
				match.U1Action = ActionLike
				match.U2Action = ActionLike
				match.State = StateMutual
			case liked:
				match.U1Action = ActionLike
				match.State = StatePending
			default:
				match.U1Action = ActionReject
				match.U2Action = ActionOtherReject
				match.State = StateRejected
			}

			if mutual {
				var p1, p2 Profile
				if err := database.Where("user_id = ?", a).First(&p1).Error; err == nil {
					match.Profile1ID = p1.ID
				}
				if err := database.Where("user_id = ?", b).First(&p2).Error; err == nil {
					match.Profile2ID = p2.ID
				}
			}

			if err := database.Create(&match).Error; err != nil {
				return fmt.Errorf("failed to seed match: %w", err)
			}

			if mutual {
				for _, uid := range []uint64{a, b} {
					var u User
					if err := database.First(&u, uid).Error; err != nil {
						continue
					}
					u.Matches = append(u.Matches, match.ID)
					if err := database.Save(&u).Error; err != nil {
						return fmt.Errorf("failed to update match list: %w", err)
					}
				}
			}
		}
	}
	log.Printf("Seeded %d matches.", counter)

	return nil
}
