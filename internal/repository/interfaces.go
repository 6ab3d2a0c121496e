package repository

import (
	"context"
	"errors"

	"github.com/lalith-99/excursia/internal/models"
)

// Every method takes ctx first: queries are cancelled with the HTTP
// request or websocket frame that started them.
//
// Single-row lookups return nil, nil when the row does not exist.
// Writes that need a row to exist return ErrNotFound instead.

var (
	ErrNotFound     = errors.New("not found")
	ErrEventFull    = errors.New("event is full")
	ErrAuthRequired = errors.New("authentication required")
)

type UserRepository interface {
	// Create inserts a user with only an email; the profile is filled in later.
	Create(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Update writes every profile column of u.
	Update(ctx context.Context, u models.User) error

	Tags(ctx context.Context, userID int64) ([]string, error)
	// AddTag is idempotent.
	AddTag(ctx context.Context, userID int64, tag string) error
	RemoveTag(ctx context.Context, userID int64, tag string) error
}

type ImageRepository interface {
	Add(ctx context.Context, userID int64, url string) (*models.UserImage, error)
	GetByID(ctx context.Context, id int64) (*models.UserImage, error)
	// ListByUser returns the gallery newest first.
	ListByUser(ctx context.Context, userID int64) ([]models.UserImage, error)
	Delete(ctx context.Context, id int64) error
}

type OTPRepository interface {
	// Upsert replaces any earlier code for the same email.
	Upsert(ctx context.Context, rec models.OTPRecord) error
	Get(ctx context.Context, email string) (*models.OTPRecord, error)
	Delete(ctx context.Context, email string) error
	// Consume deletes the code only if codeHash is still the stored one.
	// It reports false when another caller got there first.
	Consume(ctx context.Context, email, codeHash string) (bool, error)
}

type ChatRepository interface {
	// GetOrCreate returns the chat between a and b in either order,
	// creating it on first contact. created reports which happened.
	GetOrCreate(ctx context.Context, a, b int64) (chat *models.Chat, created bool, err error)
	GetByID(ctx context.Context, id int64) (*models.Chat, error)
	// ListForUser returns the user's chats, newest first.
	ListForUser(ctx context.Context, userID int64) ([]models.ChatSummary, error)
}

type MessageRepository interface {
	Create(ctx context.Context, chatID, senderID int64, content string) (*models.Message, error)
	// ListByChat returns messages oldest first.
	ListByChat(ctx context.Context, chatID int64) ([]models.Message, error)
}

// EventQuery is the option set of the event query builder. Nil
// tri-state filters are not applied.
type EventQuery struct {
	Audience   string
	Search     string
	UserID     int64
	Interested *bool
	Applied    *bool
	Descending bool
	Limit      int
}

// NeedsUser reports whether the options reference the viewer.
func (q EventQuery) NeedsUser() bool {
	return q.Audience != "" || q.Interested != nil || q.Applied != nil
}

type EventRepository interface {
	Create(ctx context.Context, e models.Event) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	// Query runs the event query builder. Fails with ErrAuthRequired
	// when the options reference the viewer but UserID is zero.
	Query(ctx context.Context, q EventQuery) ([]models.EventCard, error)
	ListByOrganizer(ctx context.Context, userID int64) ([]models.EventCard, error)
	Attendees(ctx context.Context, eventID int64) ([]models.Attendee, error)
	Organizer(ctx context.Context, userID int64) (models.Organizer, error)

	// MarkInterested and UnmarkInterested move the denormalized counter
	// in the same transaction as the join row, and only when the join
	// row actually changed.
	MarkInterested(ctx context.Context, userID, eventID int64) (changed bool, err error)
	UnmarkInterested(ctx context.Context, userID, eventID int64) (changed bool, err error)
	// InterestState returns whether the user is interested and the live count.
	InterestState(ctx context.Context, userID, eventID int64) (interested bool, count int, err error)
}

type ApplicationRepository interface {
	// Apply inserts a pending application; repeating it is a no-op.
	Apply(ctx context.Context, userID, eventID int64) error
	// Status returns the caller's application status, nil when none.
	Status(ctx context.Context, userID, eventID int64) (*string, error)
	// Respond settles a pending application. Accepting also registers the
	// attendee in the same transaction and fails with ErrEventFull when
	// the event is at capacity. ErrNotFound when nothing is pending.
	Respond(ctx context.Context, userID, eventID int64, decision string) error
	PendingForOrganizer(ctx context.Context, organizerID int64) ([]models.Application, error)
}

type CommentRepository interface {
	Create(ctx context.Context, eventID, userID int64, content string) (*models.Comment, error)
	// ListByEvent returns comments newest first.
	ListByEvent(ctx context.Context, eventID int64) ([]models.Comment, error)
}

type FriendshipRepository interface {
	// Request records a pending request from -> to unless a row already
	// links the two users in either direction.
	Request(ctx context.Context, from, to int64) error
	// Respond settles a pending from -> to request. ErrNotFound when none.
	Respond(ctx context.Context, from, to int64, decision string) error
	// PendingFor lists requesters waiting on userID.
	PendingFor(ctx context.Context, userID int64) ([]int64, error)
	Friends(ctx context.Context, userID int64) ([]models.User, error)
	AreFriends(ctx context.Context, a, b int64) (bool, error)
}
