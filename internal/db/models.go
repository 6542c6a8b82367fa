package db

import (
	"time"
)

// Action is one side's swipe decision stored on a Match.
//
// ActionOtherReject is a sentinel written into the *opposite* slot when the
// first swipe on a pair is a reject. Discovery only has to test slot
// presence to know a pair is already decided; it never has to reason about
// which side rejected.
type Action string

const (
	ActionNone        Action = ""
	ActionLike        Action = "L"
	ActionReject      Action = "R"
	ActionOtherReject Action = "O"
)

// MatchState is derived purely from the two action slots, except for
// StateDeleted which is set by unmatch/ban/account-deletion paths.
type MatchState string

const (
	StatePending  MatchState = "P"
	StateRejected MatchState = "R"
	StateMutual   MatchState = "M"
	StateDeleted  MatchState = "D"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusBanned   UserStatus = "banned"
	StatusDeleting UserStatus = "deleting"
)

// User is the account record. Admin/Premium/Credits/Matches are only ever
// written by server-trusted paths; the HTTP layer rejects client writes.
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	Username     string     `gorm:"uniqueIndex;size:64;not null"`
	Email        string     `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string     `gorm:"size:255;not null"`
	Admin        bool       `gorm:"default:false"`
	Premium      bool       `gorm:"default:false"`
	Credits      int64      `gorm:"default:0"`
	Status       UserStatus `gorm:"size:16;default:'active';index"`
	// Matches is the denormalized cache of mutual-match ids. It can always
	// be rebuilt from the Match table (jobs.RebuildMatches).
	Matches   []uint64  `gorm:"serializer:json"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Profile is the discoverable half of a user. Exactly one per user,
// created automatically when the user registers.
type Profile struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `gorm:"uniqueIndex;not null"`
	Name      string     `gorm:"size:64"`
	Birthdate *time.Time `gorm:"index"`
	Gender    string     `gorm:"size:1;index"` // "M" or "F"
	About     string     `gorm:"size:1024"`
	Photos    []string   `gorm:"serializer:json"`

	// Location and discovery preferences
	Lat          float64
	Lng          float64
	GPS          bool    `gorm:"default:true"`
	Distance     float64 `gorm:"default:25"`
	DistanceType string  `gorm:"size:2;default:'km'"` // km or mi
	Guys         bool
	Girls        bool
	AgeFrom      int
	AgeTo        int

	Enabled       bool `gorm:"default:false;index"` // gates discoverability
	NotifyMatch   bool `gorm:"default:true"`
	NotifyMessage bool `gorm:"default:true"`

	// Error holds the last profile-import failure code, if any.
	Error string `gorm:"size:64"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Match is the pairwise swipe record between exactly two users. Its
// identity is the unordered user pair canonicalized so that UID1 < UID2;
// the composite unique index is the concurrency anchor for the whole swipe
// protocol: two racing first-swipes collide here and the loser falls back
// to updating the existing row.
type Match struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	UID1 uint64 `gorm:"not null;uniqueIndex:idx_match_pair,priority:1;index:idx_uid1_state"`
	UID2 uint64 `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index:idx_uid2_state"`

	U1Action Action     `gorm:"size:1"`
	U2Action Action     `gorm:"size:1"`
	State    MatchState `gorm:"size:1;index:idx_uid1_state,priority:2;index:idx_uid2_state,priority:2"`

	// Profile snapshots, populated only once the match becomes mutual.
	// Profile1 always belongs to UID1 regardless of who swiped last.
	Profile1ID uint64
	Profile2ID uint64

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// OtherUser returns the participant id that is not userID, and whether
// userID is a participant at all.
func (m *Match) OtherUser(userID uint64) (uint64, bool) {
	switch userID {
	case m.UID1:
		return m.UID2, true
	case m.UID2:
		return m.UID1, true
	}
	return 0, false
}

// ChatMessage belongs to exactly one mutual Match. UserIDs denormalizes
// both participant ids for access checks and notification fan-out.
type ChatMessage struct {
	ID         uint64   `gorm:"primaryKey;autoIncrement"`
	MatchID    uint64   `gorm:"not null;index:idx_match_created"`
	Sender     uint64   `gorm:"not null;index"`
	SenderName string   `gorm:"size:64"`
	UserIDs    []uint64 `gorm:"serializer:json"`

	// Exactly one of the payload fields is set.
	Text  string `gorm:"size:2048"`
	Image string `gorm:"size:512"`
	Audio string `gorm:"size:512"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_match_created,priority:2,sort:desc"`
}

// Report is a moderation record against a user.
type Report struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ReportedBy   uint64 `gorm:"not null;index"`
	ReportedUser uint64 `gorm:"not null;index"`
	ProfileID    uint64
	Type         string `gorm:"size:16"` // Profile, Photo, Msg
	Reason       string `gorm:"size:256"`
	ActionTaken  string `gorm:"size:32;index"` // empty while open
	ActionUser   uint64
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// DeletedUser archives a serialized snapshot of an account before the live
// records are destroyed.
type DeletedUser struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UID       uint64    `gorm:"index"`
	User      string    `gorm:"type:text"`
	Profile   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ClientLog is a flat diagnostics record uploaded by clients.
type ClientLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UID       uint64    `gorm:"index"`
	Level     string    `gorm:"size:8"`
	Message   string    `gorm:"size:2048"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
