package application

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// memoryStore implements every repository contract over maps. Writes are
// atomic under one mutex.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]User
	rooms       map[string]Room
	bookings    map[string]Booking
	invitations map[string]Invitation

	// failNext makes the next call of the named method return the error.
	failNext map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[string]User),
		rooms:       make(map[string]Room),
		bookings:    make(map[string]Booking),
		invitations: make(map[string]Invitation),
		failNext:    make(map[string]error),
	}
}

func (m *memoryStore) fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[method] = err
}

func (m *memoryStore) takeFailure(method string) error {
	err := m.failNext[method]
	delete(m.failNext, method)
	return err
}

func cloneBooking(b Booking) Booking {
	b.ParticipantIDs = append([]string(nil), b.ParticipantIDs...)
	return b
}

func (m *memoryStore) CreateUser(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return User{}, persistence.ErrDuplicate
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (m *memoryStore) ListUsers(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryStore) MissingUserIDs(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for _, id := range ids {
		if _, ok := m.users[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memoryStore) CreateRoom(_ context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return Room{}, persistence.ErrDuplicate
	}
	m.rooms[room.ID] = cloneRoom(room)
	return room, nil
}

func (m *memoryStore) GetRoom(_ context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("GetRoom"); err != nil {
		return Room{}, err
	}
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (m *memoryStore) UpdateRoom(_ context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; !ok {
		return Room{}, persistence.ErrNotFound
	}
	m.rooms[room.ID] = cloneRoom(room)
	return room, nil
}

func (m *memoryStore) DeleteRoom(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.rooms, id)
	for bid, b := range m.bookings {
		if b.RoomID == id {
			m.deleteBookingLocked(bid)
		}
	}
	return nil
}

func (m *memoryStore) ListRooms(context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, cloneRoom(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// overlapLocked mirrors the storage trigger on room overlap.
func (m *memoryStore) overlapLocked(b Booking) bool {
	if b.Status != BookingStatusUpcoming {
		return false
	}
	for _, other := range m.bookings {
		if other.ID == b.ID || other.RoomID != b.RoomID || other.Status != BookingStatusUpcoming || !other.Date.Equal(b.Date) {
			continue
		}
		if other.Interval().Overlaps(b.Interval()) {
			return true
		}
	}
	return false
}

func (m *memoryStore) upsertInvitationsLocked(invitations []Invitation) {
	for _, inv := range invitations {
		for id, existing := range m.invitations {
			if existing.BookingID == inv.BookingID && existing.InviteeID == inv.InviteeID {
				delete(m.invitations, id)
			}
		}
		m.invitations[inv.ID] = inv
	}
}

func (m *memoryStore) CreateBooking(_ context.Context, booking Booking, invitations []Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("CreateBooking"); err != nil {
		return err
	}
	if _, ok := m.bookings[booking.ID]; ok {
		return persistence.ErrDuplicate
	}
	if m.overlapLocked(booking) {
		return persistence.ErrOverlap
	}
	m.bookings[booking.ID] = cloneBooking(booking)
	m.upsertInvitationsLocked(invitations)
	return nil
}

func (m *memoryStore) UpdateBooking(_ context.Context, booking Booking, invitations []Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("UpdateBooking"); err != nil {
		return err
	}
	if _, ok := m.bookings[booking.ID]; !ok {
		return persistence.ErrNotFound
	}
	if m.overlapLocked(booking) {
		return persistence.ErrOverlap
	}
	m.bookings[booking.ID] = cloneBooking(booking)
	m.upsertInvitationsLocked(invitations)
	return nil
}

func (m *memoryStore) GetBooking(_ context.Context, id string) (Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *memoryStore) DeleteBooking(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return persistence.ErrNotFound
	}
	m.deleteBookingLocked(id)
	return nil
}

func (m *memoryStore) deleteBookingLocked(id string) {
	delete(m.bookings, id)
	for invID, inv := range m.invitations {
		if inv.BookingID == id {
			delete(m.invitations, invID)
		}
	}
}

func (m *memoryStore) ListRoomBookings(ctx context.Context, roomID string, date time.Time, status BookingStatus) ([]Booking, error) {
	return m.ListBookings(ctx, BookingFilter{RoomID: roomID, From: &date, To: &date, Status: status})
}

func (m *memoryStore) ListPersonBookings(ctx context.Context, personID string, date time.Time, status BookingStatus) ([]Booking, error) {
	return m.ListBookings(ctx, BookingFilter{PersonID: personID, From: &date, To: &date, Status: status})
}

func (m *memoryStore) ListBookings(_ context.Context, filter BookingFilter) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("ListBookings"); err != nil {
		return nil, err
	}
	var out []Booking
	for _, b := range m.bookings {
		switch {
		case filter.RoomID != "" && b.RoomID != filter.RoomID,
			filter.PersonID != "" && !b.Involves(filter.PersonID),
			filter.From != nil && b.Date.Before(*filter.From),
			filter.To != nil && b.Date.After(*filter.To),
			filter.Status != "" && b.Status != filter.Status,
			filter.ApprovalStatus != "" && b.ApprovalStatus != filter.ApprovalStatus:
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) GetInvitation(_ context.Context, id string) (Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return Invitation{}, persistence.ErrNotFound
	}
	return inv, nil
}

func (m *memoryStore) matchInvitation(inv Invitation, filter InvitationFilter) bool {
	switch {
	case filter.InviteeID != "" && inv.InviteeID != filter.InviteeID,
		filter.BookingID != "" && inv.BookingID != filter.BookingID,
		filter.Status != "" && inv.Status != filter.Status,
		filter.IsRead != nil && inv.IsRead != *filter.IsRead:
		return false
	}
	return true
}

func (m *memoryStore) ListInvitations(_ context.Context, filter InvitationFilter) ([]Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invitation
	for _, inv := range m.invitations {
		if m.matchInvitation(inv, filter) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryStore) CountInvitations(ctx context.Context, filter InvitationFilter) (int, error) {
	filter.Limit = 0
	invs, err := m.ListInvitations(ctx, filter)
	return len(invs), err
}

func (m *memoryStore) SaveResponse(_ context.Context, inv Invitation, removeParticipant bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.invitations[inv.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if current.Status != InvitationPending {
		return persistence.ErrStale
	}
	m.invitations[inv.ID] = inv
	if removeParticipant {
		if b, ok := m.bookings[inv.BookingID]; ok {
			b.ParticipantIDs = slices.DeleteFunc(cloneBooking(b).ParticipantIDs, func(id string) bool { return id == inv.InviteeID })
			m.bookings[b.ID] = b
		}
	}
	return nil
}

func (m *memoryStore) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	inv.IsRead = true
	m.invitations[id] = inv
	return nil
}

func (m *memoryStore) MarkAllRead(_ context.Context, inviteeID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, inv := range m.invitations {
		if inv.InviteeID == inviteeID && !inv.IsRead {
			inv.IsRead = true
			m.invitations[id] = inv
			n++
		}
	}
	return n, nil
}

// upcomingRoomIntervals returns the upcoming intervals of one room and date.
func (m *memoryStore) upcomingRoomIntervals(roomID string, date time.Time) []scheduler.Interval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []scheduler.Interval
	for _, b := range m.bookings {
		if b.RoomID == roomID && b.Date.Equal(date) && b.Status == BookingStatusUpcoming {
			out = append(out, b.Interval())
		}
	}
	return out
}

// recordingNotifier collects published events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) ofType(eventType string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// engine bundles the services over one memoryStore.
type engine struct {
	store       *memoryStore
	notifier    *recordingNotifier
	bookings    *BookingService
	batch       *BatchCoordinator
	invitations *InvitationService
	suggestions *SuggestionService
	date        time.Time
}

var testDate = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *engine {
	t.Helper()

	store := newMemoryStore()
	notifier := &recordingNotifier{}
	locks := NewKeyedLocker()

	var seq int
	var seqMu sync.Mutex
	ids := func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	now := func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }

	bookings := NewBookingService(BookingServiceDeps{
		Bookings:    store,
		Rooms:       store,
		Users:       store,
		Locks:       locks,
		Notifier:    notifier,
		IDGenerator: ids,
		Now:         now,
	})

	e := &engine{
		store:       store,
		notifier:    notifier,
		bookings:    bookings,
		batch:       NewBatchCoordinator(bookings, nil),
		invitations: NewInvitationService(store, store, locks, notifier, now, nil),
		suggestions: NewSuggestionService(store, store, bookings.Availability(), nil, nil, nil),
		date:        testDate,
	}

	for _, id := range []string{"org", "alice", "bob", "carol", "dave", "erin", "manager"} {
		if _, err := store.CreateUser(context.Background(), User{ID: id, Email: id + "@example.com", DisplayName: id, IsManager: id == "manager"}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	e.addRoom(t, Room{ID: "room-a", Name: "A", Capacity: 4, IsAvailable: true})
	e.addRoom(t, Room{ID: "room-b", Name: "B", Capacity: 10, IsAvailable: true, Amenities: []string{"projector"}})
	return e
}

func (e *engine) addRoom(t *testing.T, room Room) {
	t.Helper()
	if _, err := e.store.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("seed room %s: %v", room.ID, err)
	}
}

func tod(value string) scheduler.TimeOfDay {
	return scheduler.MustParseTimeOfDay(value)
}

func as(userID string) Principal {
	return Principal{UserID: userID, IsManager: userID == "manager"}
}

func (e *engine) book(t *testing.T, organizer, roomID, start, end string, participants ...string) Booking {
	t.Helper()
	b, err := e.bookings.Create(context.Background(), CreateBookingParams{
		Principal:      as(organizer),
		RoomID:         roomID,
		Date:           e.date,
		Start:          tod(start),
		End:            tod(end),
		ParticipantIDs: participants,
	})
	if err != nil {
		t.Fatalf("create booking %s %s-%s: %v", roomID, start, end, err)
	}
	return b
}

func (e *engine) invitationFor(t *testing.T, bookingID, inviteeID string) Invitation {
	t.Helper()
	invs, err := e.store.ListInvitations(context.Background(), InvitationFilter{BookingID: bookingID, InviteeID: inviteeID})
	if err != nil || len(invs) != 1 {
		t.Fatalf("expected one invitation for %s on %s, got %v (err %v)", inviteeID, bookingID, invs, err)
	}
	return invs[0]
}
