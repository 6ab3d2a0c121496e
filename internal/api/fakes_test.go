package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
)

// store is an in-memory backing for every repository the handlers use.
// Each fake below is a thin view over it so relations stay consistent.
type store struct {
	mu sync.Mutex

	users     map[int64]*models.User
	tags      map[int64]map[string]bool
	images    map[int64]models.UserImage
	events    map[int64]models.Event
	interests map[[2]int64]bool
	attendees map[[2]int64]bool
	apps      map[[2]int64]string
	friends   map[[2]int64]string
	chats     map[[2]int64]models.Chat
	msgs      []models.Message
	comments  []models.Comment

	nextID int64
}

func newStore() *store {
	return &store{
		users:     map[int64]*models.User{},
		tags:      map[int64]map[string]bool{},
		images:    map[int64]models.UserImage{},
		events:    map[int64]models.Event{},
		interests: map[[2]int64]bool{},
		attendees: map[[2]int64]bool{},
		apps:      map[[2]int64]string{},
		friends:   map[[2]int64]string{},
		chats:     map[[2]int64]models.Chat{},
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *store) addUser(email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.id(), Email: email, Name: email, Role: "user"}
	s.users[u.ID] = u
	return u
}

func (s *store) addEvent(e models.Event) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.events[e.ID] = e
	return e.ID
}

type fakeUsers struct{ *store }

func (f fakeUsers) Create(_ context.Context, email string) (*models.User, error) {
	return f.addUser(email), nil
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) List(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeUsers) Update(_ context.Context, u models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = &u
	return nil
}

func (f fakeUsers) Tags(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0)
	for t := range f.tags[userID] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (f fakeUsers) AddTag(_ context.Context, userID int64, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tags[userID] == nil {
		f.tags[userID] = map[string]bool{}
	}
	f.tags[userID][tag] = true
	return nil
}

func (f fakeUsers) RemoveTag(_ context.Context, userID int64, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tags[userID], tag)
	return nil
}

type fakeImages struct{ *store }

func (f fakeImages) Add(_ context.Context, userID int64, url string) (*models.UserImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img := models.UserImage{ID: f.id(), UserID: userID, ImageURL: url, UploadedAt: time.Now()}
	f.images[img.ID] = img
	return &img, nil
}

func (f fakeImages) GetByID(_ context.Context, id int64) (*models.UserImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[id]
	if !ok {
		return nil, nil
	}
	return &img, nil
}

func (f fakeImages) ListByUser(_ context.Context, userID int64) ([]models.UserImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.UserImage, 0)
	for _, img := range f.images {
		if img.UserID == userID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f fakeImages) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.images, id)
	return nil
}

type fakeEvents struct {
	*store
	lastQuery repository.EventQuery
}

func (f *fakeEvents) Create(_ context.Context, e models.Event) (int64, error) {
	return f.addEvent(e), nil
}

func (f *fakeEvents) GetByID(_ context.Context, id int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Query only honours the viewer requirement; filtering is covered by
// the SQL builder tests.
func (f *fakeEvents) Query(_ context.Context, q repository.EventQuery) ([]models.EventCard, error) {
	if q.NeedsUser() && q.UserID == 0 {
		return nil, repository.ErrAuthRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	out := make([]models.EventCard, 0)
	for _, e := range f.events {
		out = append(out, models.EventCard{ID: e.ID, Title: e.Title, Audience: e.Audience})
	}
	return out, nil
}

func (f *fakeEvents) ListByOrganizer(_ context.Context, userID int64) ([]models.EventCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.EventCard, 0)
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, models.EventCard{ID: e.ID, Title: e.Title})
		}
	}
	return out, nil
}

func (f *fakeEvents) Attendees(_ context.Context, eventID int64) ([]models.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Attendee, 0)
	for k := range f.attendees {
		if k[1] == eventID {
			out = append(out, models.Attendee{ID: k[0]})
		}
	}
	return out, nil
}

func (f *fakeEvents) Organizer(_ context.Context, userID int64) (models.Organizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return models.Organizer{}, repository.ErrNotFound
	}
	return models.Organizer{ID: u.ID, Name: u.Name, Avatar: u.ProfilePicture}, nil
}

func (f *fakeEvents) MarkInterested(_ context.Context, userID, eventID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, eventID}
	if f.interests[k] {
		return false, nil
	}
	f.interests[k] = true
	e := f.events[eventID]
	e.Interested++
	f.events[eventID] = e
	return true, nil
}

func (f *fakeEvents) UnmarkInterested(_ context.Context, userID, eventID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, eventID}
	if !f.interests[k] {
		return false, nil
	}
	delete(f.interests, k)
	e := f.events[eventID]
	e.Interested--
	f.events[eventID] = e
	return true, nil
}

func (f *fakeEvents) InterestState(_ context.Context, userID, eventID int64) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for k := range f.interests {
		if k[1] == eventID {
			count++
		}
	}
	return f.interests[[2]int64{userID, eventID}], count, nil
}

type fakeApps struct{ *store }

func (f fakeApps) Apply(_ context.Context, userID, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, eventID}
	if _, ok := f.apps[k]; !ok {
		f.apps[k] = models.StatusPending
	}
	return nil
}

func (f fakeApps) Status(_ context.Context, userID, eventID int64) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.apps[[2]int64{userID, eventID}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f fakeApps) Respond(_ context.Context, userID, eventID int64, decision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{userID, eventID}
	if decision == models.StatusAccepted {
		e, ok := f.events[eventID]
		if !ok {
			return repository.ErrNotFound
		}
		if e.MaxAttendees != nil {
			count := 0
			for a := range f.attendees {
				if a[1] == eventID {
					count++
				}
			}
			if count >= *e.MaxAttendees {
				return repository.ErrEventFull
			}
		}
	}
	if f.apps[k] != models.StatusPending {
		return repository.ErrNotFound
	}
	f.apps[k] = decision
	if decision == models.StatusAccepted {
		f.attendees[k] = true
	}
	return nil
}

func (f fakeApps) PendingForOrganizer(_ context.Context, organizerID int64) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Application, 0)
	for k, s := range f.apps {
		if s == models.StatusPending && f.events[k[1]].UserID == organizerID {
			out = append(out, models.Application{UserID: k[0], EventID: k[1]})
		}
	}
	return out, nil
}

type fakeComments struct{ *store }

func (f fakeComments) Create(_ context.Context, eventID, userID int64, content string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := models.Comment{ID: f.id(), EventID: eventID, Content: content, CreatedAt: time.Now(), User: models.Attendee{ID: userID}}
	f.comments = append(f.comments, c)
	return &c, nil
}

func (f fakeComments) ListByEvent(_ context.Context, eventID int64) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Comment, 0)
	for i := len(f.comments) - 1; i >= 0; i-- {
		if f.comments[i].EventID == eventID {
			out = append(out, f.comments[i])
		}
	}
	return out, nil
}

type fakeFriends struct{ *store }

func (f fakeFriends) Request(_ context.Context, from, to int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.friends[[2]int64{to, from}]; ok {
		return nil
	}
	if _, ok := f.friends[[2]int64{from, to}]; !ok {
		f.friends[[2]int64{from, to}] = models.StatusPending
	}
	return nil
}

func (f fakeFriends) Respond(_ context.Context, from, to int64, decision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{from, to}
	if f.friends[k] != models.StatusPending {
		return repository.ErrNotFound
	}
	f.friends[k] = decision
	return nil
}

func (f fakeFriends) PendingFor(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0)
	for k, s := range f.friends {
		if k[1] == userID && s == models.StatusPending {
			out = append(out, k[0])
		}
	}
	return out, nil
}

func (f fakeFriends) Friends(_ context.Context, userID int64) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0)
	for k, s := range f.friends {
		if s != models.StatusAccepted {
			continue
		}
		switch userID {
		case k[0]:
			out = append(out, *f.users[k[1]])
		case k[1]:
			out = append(out, *f.users[k[0]])
		}
	}
	return out, nil
}

func (f fakeFriends) AreFriends(_ context.Context, a, b int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends[[2]int64{a, b}] == models.StatusAccepted || f.friends[[2]int64{b, a}] == models.StatusAccepted, nil
}

type fakeChats struct{ *store }

func (f fakeChats) GetOrCreate(_ context.Context, a, b int64) (*models.Chat, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u1, u2 := models.CanonicalPair(a, b)
	k := [2]int64{u1, u2}
	if c, ok := f.chats[k]; ok {
		return &c, false, nil
	}
	c := models.Chat{ID: f.id(), User1ID: u1, User2ID: u2, CreatedAt: time.Now()}
	f.chats[k] = c
	return &c, true, nil
}

func (f fakeChats) GetByID(_ context.Context, id int64) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeChats) ListForUser(_ context.Context, userID int64) ([]models.ChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChatSummary, 0)
	for _, c := range f.chats {
		if !c.HasParticipant(userID) {
			continue
		}
		partner := c.User1ID
		if partner == userID {
			partner = c.User2ID
		}
		out = append(out, models.ChatSummary{ChatID: c.ID, PartnerID: partner, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

type fakeMessages struct{ *store }

func (f fakeMessages) Create(_ context.Context, chatID, senderID int64, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := models.Message{ID: f.id(), ChatID: chatID, SenderID: senderID, Content: content, CreatedAt: time.Now()}
	f.msgs = append(f.msgs, m)
	return &m, nil
}

func (f fakeMessages) ListByChat(_ context.Context, chatID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (p *capturePublisher) Publish(_ context.Context, msg models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}
