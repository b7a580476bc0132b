package application

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLocker(t *testing.T) {
	t.Run("duplicate keys do not deadlock", func(t *testing.T) {
		l := NewKeyedLocker()
		unlock := l.Lock("a", "b", "a")
		if l.Len() != 2 {
			t.Fatalf("expected 2 held keys, got %d", l.Len())
		}
		unlock()
		unlock()
		if l.Len() != 0 {
			t.Fatalf("expected entries to be dropped, got %d", l.Len())
		}
	})

	t.Run("opposite orders serialize", func(t *testing.T) {
		l := NewKeyedLocker()
		var wg sync.WaitGroup
		var mu sync.Mutex
		inside := 0
		maxInside := 0

		for i := 0; i < 20; i++ {
			keys := []string{"room:x", "person:y"}
			if i%2 == 1 {
				keys = []string{"person:y", "room:x"}
			}
			wg.Add(1)
			go func(keys []string) {
				defer wg.Done()
				unlock := l.Lock(keys...)
				defer unlock()

				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
			}(keys)
		}
		wg.Wait()

		if maxInside != 1 {
			t.Fatalf("expected one holder at a time, saw %d", maxInside)
		}
		if l.Len() != 0 {
			t.Fatalf("expected no leftover entries, got %d", l.Len())
		}
	})

	t.Run("disjoint keys do not block", func(t *testing.T) {
		l := NewKeyedLocker()
		unlock := l.Lock("a")
		defer unlock()

		done := make(chan struct{})
		go func() {
			l.Lock("b")()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on a disjoint key blocked")
		}
	})

	t.Run("nil locker", func(t *testing.T) {
		var l *KeyedLocker
		l.Lock("a")()
		if l.Len() != 0 {
			t.Fatal("expected zero length")
		}
	})
}

func TestIntervalLockKeys(t *testing.T) {
	keys := intervalLockKeys("room-a", testDate, "org", []string{"alice"})
	want := []string{"room:room-a:2025-06-02", "person:org:2025-06-02", "person:alice:2025-06-02"}
	if !sameOrder(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}
