package application

import (
	"context"
	"sync"
	"time"
)

// RoomCache wraps a RoomRepository and keeps room reads for a short TTL.
// Every write through the cache drops all entries, so readers sharing the
// cache never see a room older than their own writes.
type RoomCache struct {
	next       RoomRepository
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	rooms      map[string]roomCacheEntry
	catalog    *catalogCacheEntry
}

type roomCacheEntry struct {
	room      Room
	expiresAt time.Time
}

type catalogCacheEntry struct {
	rooms     []Room
	expiresAt time.Time
}

// NewRoomCache wraps next. Non-positive ttl and maxEntries use defaults.
func NewRoomCache(next RoomRepository, ttl time.Duration, maxEntries int, now func() time.Time) *RoomCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &RoomCache{
		next:       next,
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		rooms:      make(map[string]roomCacheEntry),
	}
}

// GetRoom returns the cached room or loads it.
func (c *RoomCache) GetRoom(ctx context.Context, id string) (Room, error) {
	c.mu.RLock()
	entry, ok := c.rooms[id]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return cloneRoom(entry.room), nil
	}

	room, err := c.next.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	if len(c.rooms) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.rooms[id] = roomCacheEntry{room: cloneRoom(room), expiresAt: c.now().Add(c.ttl)}
	return room, nil
}

// ListRooms returns the cached catalog or loads it.
func (c *RoomCache) ListRooms(ctx context.Context) ([]Room, error) {
	c.mu.RLock()
	catalog := c.catalog
	c.mu.RUnlock()
	if catalog != nil && c.now().Before(catalog.expiresAt) {
		return cloneRooms(catalog.rooms), nil
	}

	rooms, err := c.next.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.catalog = &catalogCacheEntry{rooms: cloneRooms(rooms), expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return rooms, nil
}

// CreateRoom writes through and invalidates.
func (c *RoomCache) CreateRoom(ctx context.Context, room Room) (Room, error) {
	defer c.Invalidate()
	return c.next.CreateRoom(ctx, room)
}

// UpdateRoom writes through and invalidates.
func (c *RoomCache) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	defer c.Invalidate()
	return c.next.UpdateRoom(ctx, room)
}

// DeleteRoom writes through and invalidates.
func (c *RoomCache) DeleteRoom(ctx context.Context, id string) error {
	defer c.Invalidate()
	return c.next.DeleteRoom(ctx, id)
}

// Invalidate drops every cached entry.
func (c *RoomCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rooms = make(map[string]roomCacheEntry)
	c.catalog = nil
	c.mu.Unlock()
}

func (c *RoomCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.rooms {
		if !now.Before(entry.expiresAt) {
			delete(c.rooms, key)
		}
	}
}

func (c *RoomCache) evictOneLocked() {
	for key := range c.rooms {
		delete(c.rooms, key)
		return
	}
}

func cloneRoom(room Room) Room {
	if room.Amenities != nil {
		room.Amenities = append([]string(nil), room.Amenities...)
	}
	return room
}

func cloneRooms(rooms []Room) []Room {
	if rooms == nil {
		return nil
	}
	out := make([]Room, len(rooms))
	for i, room := range rooms {
		out[i] = cloneRoom(room)
	}
	return out
}

var _ RoomRepository = (*RoomCache)(nil)
