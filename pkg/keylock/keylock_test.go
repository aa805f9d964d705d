package keylock

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			tbl := NewWithShards(tt.input)
			if len(tbl.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, len(tbl.shards), tt.expected)
			}
		})
	}
}

func TestLock_SerializesSameKey(t *testing.T) {
	tbl := New()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tbl.Lock("acct:pk1")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100 (lost updates)", counter)
	}
	if n := tbl.Len(); n != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", n)
	}
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	tbl := New()

	unlockA := tbl.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := tbl.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock(b) blocked while a was held")
	}
}

func TestLock_UnlockIsIdempotent(t *testing.T) {
	tbl := New()

	unlock := tbl.Lock("k")
	unlock()
	unlock() // must not panic or double-decrement

	if n := tbl.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}

	unlock = tbl.Lock("k")
	unlock()
}

func TestLockMany(t *testing.T) {
	tbl := New()

	unlock := tbl.LockMany("b", "a", "b")
	if n := tbl.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}

	// Opposite order from another goroutine must not deadlock.
	done := make(chan struct{})
	go func() {
		u := tbl.LockMany("a", "b")
		u()
		close(done)
	}()

	unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LockMany deadlocked")
	}
	if n := tbl.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}
