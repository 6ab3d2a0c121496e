package models

import (
	"time"
)

// User is created on the first successful OTP verification and is never
// hard-deleted. Tags are loaded separately from user_tags.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profile_picture"`
	CoverImage     string    `json:"cover_image"`
	Location       string    `json:"location"`
	Website        string    `json:"website"`
	Bio            string    `json:"bio"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
	Tags           []string  `json:"tags,omitempty"`
}

// ProfileUpdate carries a partial profile edit. Nil fields keep their
// stored value.
type ProfileUpdate struct {
	Name           *string `json:"name"`
	ProfilePicture *string `json:"profile_picture"`
	CoverImage     *string `json:"cover_image"`
	Location       *string `json:"location"`
	Website        *string `json:"website"`
	Bio            *string `json:"bio"`
}

// Apply returns u with every non-nil field of p written over it.
func (p ProfileUpdate) Apply(u User) User {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, p.Name)
	set(&u.ProfilePicture, p.ProfilePicture)
	set(&u.CoverImage, p.CoverImage)
	set(&u.Location, p.Location)
	set(&u.Website, p.Website)
	set(&u.Bio, p.Bio)
	return u
}

type UserImage struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ImageURL   string    `json:"image_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// OTPRecord is the single active code for an email. Only a bcrypt hash
// of the code is stored.
type OTPRecord struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
}

// Chat is an unordered pair of users stored as (min, max).
type Chat struct {
	ID        int64     `json:"id"`
	User1ID   int64     `json:"user1_id"`
	User2ID   int64     `json:"user2_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one side of the chat.
func (c Chat) HasParticipant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// CanonicalPair orders two user ids the way chats are stored, so that
// starting a chat from either side finds the same row.
func CanonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ChatID         int64     `json:"chat_id"`
	PartnerID      int64     `json:"partner_id"`
	Name           string    `json:"name"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is immutable once stored.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AudiencePublic  = "public"
	AudienceFriends = "friends"
)

func ValidAudience(a string) bool {
	return a == AudiencePublic || a == AudienceFriends
}

// Event is the stored row.
type Event struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	ImageURL     string    `json:"image_url"`
	MaxAttendees *int      `json:"max_attendees"`
	Audience     string    `json:"audience"`
	Interested   int       `json:"interested"`
	UserID       int64     `json:"user_id"`
}

type Organizer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// EventCard is the listing shape produced by the event query builder.
// Counts are computed live from the join tables.
type EventCard struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	Image        string    `json:"image"`
	MaxAttendees *int      `json:"max_attendees"`
	Audience     string    `json:"audience"`
	Organizer    Organizer `json:"organizer"`
	Attendees    int       `json:"attendees"`
	Interested   int       `json:"interested"`
	Comments     int       `json:"comments"`
}

type Attendee struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Comment struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
	User      Attendee  `json:"user"`
}

// EventDetail is the single-event view.
type EventDetail struct {
	Event
	Organizer         Organizer  `json:"organizer"`
	Attendees         []Attendee `json:"attendees"`
	Comments          []Comment  `json:"comments"`
	ApplicationStatus *string    `json:"application_status"`
}

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// ValidDecision reports whether s is a terminal answer to a pending
// application or friend request.
func ValidDecision(s string) bool {
	return s == StatusAccepted || s == StatusRejected
}

type Application struct {
	UserID  int64  `json:"user_id"`
	EventID int64  `json:"event_id"`
	Status  string `json:"status,omitempty"`
}

// Friendship is directed while pending (UserID1 asked UserID2) and
// symmetric once accepted.
type Friendship struct {
	UserID1 int64  `json:"user_id1"`
	UserID2 int64  `json:"user_id2"`
	Status  string `json:"status"`
}
