package application

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// KeyedLocker hands out one mutex per key. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock acquires every key and returns a function releasing them. Keys are
// de-duplicated and taken in sorted order, so two callers locking
// overlapping key sets cannot deadlock. A nil locker locks nothing.
func (l *KeyedLocker) Lock(keys ...string) (unlock func()) {
	if l == nil || len(keys) == 0 {
		return func() {}
	}

	ordered := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	held := make([]*keyedLock, 0, len(ordered))
	for _, key := range ordered {
		entry := l.acquire(key)
		entry.mu.Lock()
		held = append(held, entry)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (l *KeyedLocker) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyedLocker) acquire(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

func roomLockKey(roomID string, date time.Time) string {
	return fmt.Sprintf("room:%s:%s", roomID, scheduler.FormatDate(date))
}

func personLockKey(personID string, date time.Time) string {
	return fmt.Sprintf("person:%s:%s", personID, scheduler.FormatDate(date))
}

func bookingLockKey(bookingID string) string {
	return "booking:" + bookingID
}

func invitationLockKey(invitationID string) string {
	return "invitation:" + invitationID
}

// intervalLockKeys lists the room and person keys guarding a booking's
// check-then-write span.
func intervalLockKeys(roomID string, date time.Time, organizerID string, participantIDs []string) []string {
	keys := make([]string, 0, len(participantIDs)+2)
	keys = append(keys, roomLockKey(roomID, date), personLockKey(organizerID, date))
	for _, id := range participantIDs {
		keys = append(keys, personLockKey(id, date))
	}
	return keys
}
