package application

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type roomRepoStub struct {
	createErr error
	created   Room

	getRoom Room
	getErr  error

	updateErr error
	updated   Room

	deleteErr error
	deletedID string

	list    []Room
	listErr error
}

func (r *roomRepoStub) CreateRoom(ctx context.Context, room Room) (Room, error) {
	if r.createErr != nil {
		return Room{}, r.createErr
	}
	r.created = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id string) (Room, error) {
	if r.getErr != nil {
		return Room{}, r.getErr
	}
	if r.getRoom.ID == "" {
		return Room{}, ErrNotFound
	}
	return r.getRoom, nil
}

func (r *roomRepoStub) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	if r.updateErr != nil {
		return Room{}, r.updateErr
	}
	r.updated = room
	return room, nil
}

func (r *roomRepoStub) DeleteRoom(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deletedID = id
	return nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if len(r.list) == 0 {
		return nil, nil
	}
	out := make([]Room, len(r.list))
	copy(out, r.list)
	return out, nil
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Run("requires manager privileges", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: Principal{UserID: "user-1"},
			Input: RoomInput{
				Name:     "Conference Room",
				Capacity: 10,
			},
		})

		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("expected ErrNotAuthorized, got %v", err)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: Principal{UserID: "manager", IsManager: true},
			Input: RoomInput{
				Name:         "   ",
				Capacity:     0,
				PricePerHour: -5,
			},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}

		for _, field := range []string{"name", "capacity", "price_per_hour"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists rooms for managers", func(t *testing.T) {
		repo := &roomRepoStub{}
		now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
		description := "  Corner room  "
		svc := NewRoomService(repo, func() string { return "room-1" }, func() time.Time { return now })

		created, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: Principal{UserID: "manager", IsManager: true},
			Input: RoomInput{
				Name:         "  Sakura Hall  ",
				Description:  &description,
				Capacity:     25,
				PricePerHour: 40,
				Amenities:    []string{" projector", "whiteboard", "projector ", ""},
			},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if repo.created.ID != "room-1" {
			t.Fatalf("expected repository to receive generated ID, got %q", repo.created.ID)
		}
		if repo.created.Name != "Sakura Hall" {
			t.Fatalf("expected name to be trimmed, got %q", repo.created.Name)
		}
		if repo.created.Description == nil || *repo.created.Description != "Corner room" {
			t.Fatalf("expected description to be trimmed, got %v", repo.created.Description)
		}
		if got := repo.created.Amenities; len(got) != 2 || got[0] != "projector" || got[1] != "whiteboard" {
			t.Fatalf("expected normalized amenities, got %v", got)
		}
		if !repo.created.IsAvailable {
			t.Fatalf("expected new rooms to be available by default")
		}
		if !repo.created.CreatedAt.Equal(now) || !repo.created.UpdatedAt.Equal(now) {
			t.Fatalf("expected timestamps to use injected clock, got created=%v updated=%v", repo.created.CreatedAt, repo.created.UpdatedAt)
		}

		if created.ID != "room-1" {
			t.Fatalf("expected returned room to include generated ID, got %q", created.ID)
		}
	})

	t.Run("maps repository errors to sentinel failures", func(t *testing.T) {
		repo := &roomRepoStub{createErr: persistence.ErrDuplicate}
		svc := NewRoomService(repo, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: Principal{UserID: "manager", IsManager: true},
			Input: RoomInput{
				Name:     "Conf Room",
				Capacity: 10,
			},
		})

		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	t.Run("requires manager privileges", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: Principal{UserID: "user-1"},
			RoomID:    "room-1",
			Input:     RoomInput{Name: "Room", Capacity: 10},
		})

		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("expected ErrNotAuthorized, got %v", err)
		}
	})

	t.Run("propagates ErrNotFound when the room is missing", func(t *testing.T) {
		repo := &roomRepoStub{getErr: persistence.ErrNotFound}
		svc := NewRoomService(repo, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: Principal{UserID: "manager", IsManager: true},
			RoomID:    "missing",
			Input:     RoomInput{Name: "Room", Capacity: 10},
		})

		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("persists updated attributes for managers", func(t *testing.T) {
		existing := Room{ID: "room-1", Name: "Sakura", Capacity: 20, IsAvailable: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		repo := &roomRepoStub{getRoom: existing}
		now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
		closed := false
		svc := NewRoomService(repo, nil, func() time.Time { return now })

		updated, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: Principal{UserID: "manager", IsManager: true},
			RoomID:    "room-1",
			Input: RoomInput{
				Name:        "  Maple ",
				Capacity:    30,
				Amenities:   []string{"video"},
				IsAvailable: &closed,
			},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if repo.updated.Name != "Maple" {
			t.Fatalf("expected name to be trimmed, got %q", repo.updated.Name)
		}
		if repo.updated.Capacity != 30 {
			t.Fatalf("expected capacity to be updated, got %d", repo.updated.Capacity)
		}
		if repo.updated.IsAvailable {
			t.Fatalf("expected availability flag to be cleared")
		}
		if !repo.updated.UpdatedAt.Equal(now) {
			t.Fatalf("expected updated timestamp to use injected clock, got %v", repo.updated.UpdatedAt)
		}
		if repo.updated.CreatedAt != existing.CreatedAt {
			t.Fatalf("expected created timestamp to remain unchanged")
		}

		if updated.ID != existing.ID {
			t.Fatalf("expected returned room to include ID, got %q", updated.ID)
		}
	})
}

func TestRoomService_SetAvailability(t *testing.T) {
	t.Run("requires manager privileges", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, nil)

		_, err := svc.SetAvailability(context.Background(), Principal{UserID: "user-1"}, "room-1", false)
		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("expected ErrNotAuthorized, got %v", err)
		}
	})

	t.Run("skips the write when the flag already matches", func(t *testing.T) {
		repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "A", Capacity: 4, IsAvailable: true}}
		svc := NewRoomService(repo, nil, nil)

		room, err := svc.SetAvailability(context.Background(), Principal{UserID: "manager", IsManager: true}, "room-1", true)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !room.IsAvailable || repo.updated.ID != "" {
			t.Fatalf("expected no update, got %+v", repo.updated)
		}
	})

	t.Run("closes the room", func(t *testing.T) {
		repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "A", Capacity: 4, IsAvailable: true}}
		svc := NewRoomService(repo, nil, nil)

		room, err := svc.SetAvailability(context.Background(), Principal{UserID: "manager", IsManager: true}, "room-1", false)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if room.IsAvailable || repo.updated.IsAvailable {
			t.Fatalf("expected room to be closed, got %+v", room)
		}
	})
}

func TestRoomService_DeleteRoom(t *testing.T) {
	t.Run("requires manager privileges", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil)

		err := svc.DeleteRoom(context.Background(), Principal{UserID: "user-1"}, "room-1")
		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("expected ErrNotAuthorized, got %v", err)
		}
	})

	t.Run("propagates ErrNotFound when the room is missing", func(t *testing.T) {
		repo := &roomRepoStub{deleteErr: persistence.ErrNotFound}
		svc := NewRoomService(repo, nil, nil)

		err := svc.DeleteRoom(context.Background(), Principal{UserID: "manager", IsManager: true}, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("allows managers to delete rooms", func(t *testing.T) {
		repo := &roomRepoStub{}
		svc := NewRoomService(repo, nil, nil)

		if err := svc.DeleteRoom(context.Background(), Principal{UserID: "manager", IsManager: true}, "room-1"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if repo.deletedID != "room-1" {
			t.Fatalf("expected repository to receive room ID, got %q", repo.deletedID)
		}
	})
}

func TestRoomService_ListRooms(t *testing.T) {
	t.Run("returns rooms in deterministic order", func(t *testing.T) {
		repo := &roomRepoStub{list: []Room{
			{ID: "room-2", Name: "Beta", Capacity: 10},
			{ID: "room-3", Name: "alpha", Capacity: 8},
			{ID: "room-1", Name: "Alpha", Capacity: 6},
		}}
		svc := NewRoomService(repo, nil, nil)

		got, err := svc.ListRooms(context.Background(), ListRoomsParams{Principal: Principal{UserID: "user-1"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(got) != 3 {
			t.Fatalf("expected three rooms, got %d", len(got))
		}

		if got[0].ID != "room-1" || got[1].ID != "room-3" || got[2].ID != "room-2" {
			t.Fatalf("expected case-insensitive ordering, got %+v", got)
		}
	})

	t.Run("wraps repository faults", func(t *testing.T) {
		repo := &roomRepoStub{listErr: errors.New("database is closed")}
		svc := NewRoomService(repo, nil, nil)

		if _, err := svc.ListRooms(context.Background(), ListRoomsParams{Principal: Principal{UserID: "user-1"}}); !IsSystemFailure(err) {
			t.Fatalf("expected SystemFailure, got %v", err)
		}
	})

	t.Run("filters by capacity, amenities and availability", func(t *testing.T) {
		repo := &roomRepoStub{list: []Room{
			{ID: "room-1", Name: "Atrium", Capacity: 12, Amenities: []string{"projector", "whiteboard"}, IsAvailable: true},
			{ID: "room-2", Name: "Booth", Capacity: 2, Amenities: []string{"projector"}, IsAvailable: true},
			{ID: "room-3", Name: "Cellar", Capacity: 20, Amenities: []string{"projector"}},
			{ID: "room-4", Name: "Den", Capacity: 8, Amenities: []string{"whiteboard"}, IsAvailable: true},
		}}
		svc := NewRoomService(repo, nil, nil)
		user := Principal{UserID: "user-1"}

		cases := []struct {
			name   string
			params ListRoomsParams
			want   []string
		}{
			{name: "no filter", params: ListRoomsParams{Principal: user}, want: []string{"room-1", "room-2", "room-3", "room-4"}},
			{name: "capacity", params: ListRoomsParams{Principal: user, MinCapacity: 8}, want: []string{"room-1", "room-3", "room-4"}},
			{name: "amenity", params: ListRoomsParams{Principal: user, Amenities: []string{" projector "}}, want: []string{"room-1", "room-2", "room-3"}},
			{name: "combined", params: ListRoomsParams{Principal: user, MinCapacity: 8, Amenities: []string{"projector"}, AvailableOnly: true}, want: []string{"room-1"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := svc.ListRooms(context.Background(), tc.params)
				if err != nil {
					t.Fatalf("list rooms: %v", err)
				}
				ids := make([]string, 0, len(got))
				for _, room := range got {
					ids = append(ids, room.ID)
				}
				if !slices.Equal(ids, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, ids)
				}
			})
		}
	})

	t.Run("negative capacity is a validation error", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, nil)

		_, err := svc.ListRooms(context.Background(), ListRoomsParams{Principal: Principal{UserID: "user-1"}, MinCapacity: -1})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestMapRoomRepoError(t *testing.T) {
	unexpected := errors.New("boom")

	tests := map[string]struct {
		err      error
		expected error
	}{
		"nil":                   {err: nil, expected: nil},
		"application not found": {err: ErrNotFound, expected: ErrNotFound},
		"persistence not found": {err: persistence.ErrNotFound, expected: ErrNotFound},
		"duplicate":             {err: persistence.ErrDuplicate, expected: ErrAlreadyExists},
		"constraint":            {err: persistence.ErrConstraintViolation, expected: &ValidationError{}},
		"unexpected":            {err: unexpected, expected: unexpected},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			result := mapRoomRepoError(tc.err)

			switch expected := tc.expected.(type) {
			case nil:
				if result != nil {
					t.Fatalf("expected nil, got %v", result)
				}
			case *ValidationError:
				vErr, ok := result.(*ValidationError)
				if !ok {
					t.Fatalf("expected ValidationError, got %T", result)
				}
				if msg, ok := vErr.FieldErrors["capacity"]; !ok || msg == "" {
					t.Fatalf("expected capacity validation message, got %v", vErr.FieldErrors)
				}
			default:
				if !errors.Is(result, expected) {
					t.Fatalf("expected %v, got %v", expected, result)
				}
			}
		})
	}
}
