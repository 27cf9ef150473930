package summary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockManagerConcurrentCallersConverge(t *testing.T) {
	m := NewLockManager(10 * time.Millisecond)

	var invocations atomic.Int32
	release := make(chan struct{})
	work := func() (*Result, error) {
		invocations.Add(1)
		<-release
		return &Result{Title: "shared"}, nil
	}

	const callers = 8
	handles := make([]*Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], _ = m.AcquireOrJoin("conv-1", work)
		}(i)
	}
	wg.Wait()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, h := range handles {
		result, err := h.Wait(ctx)
		if err != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, err)
		}
		if result.Title != "shared" {
			t.Fatalf("caller %d: got %q", i, result.Title)
		}
	}

	if n := invocations.Load(); n != 1 {
		t.Errorf("work invoked %d times, want 1", n)
	}
}

func TestLockManagerFailureSharedByJoiners(t *testing.T) {
	m := NewLockManager(10 * time.Millisecond)

	wantErr := errors.New("provider down")
	release := make(chan struct{})
	h1, joined1 := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		<-release
		return nil, wantErr
	})
	if joined1 {
		t.Fatal("first caller must not join")
	}

	h2, joined2 := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		t.Error("joiner must not start new work")
		return nil, nil
	})
	if !joined2 {
		t.Fatal("second caller must join the in-flight operation")
	}
	if h1 != h2 {
		t.Fatal("joiner must receive the same handle")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h2.Wait(ctx); !errors.Is(err, wantErr) {
		t.Errorf("joiner error = %v, want %v", err, wantErr)
	}
}

func TestLockManagerGraceWindow(t *testing.T) {
	grace := 30 * time.Millisecond
	m := NewLockManager(grace)

	h, _ := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		return &Result{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	// Completed but inside the grace window: still held, trailing callers join.
	if !m.Held("conv-1") {
		t.Fatal("lock must remain held during the grace window")
	}
	if _, joined := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		t.Error("grace-window caller must join, not restart")
		return nil, nil
	}); !joined {
		t.Fatal("expected join inside grace window")
	}

	deadline := time.Now().Add(time.Second)
	for m.Held("conv-1") {
		if time.Now().After(deadline) {
			t.Fatal("lock was not released after the grace window")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, joined := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		return &Result{}, nil
	}); joined {
		t.Error("after the grace window a caller must start fresh work")
	}
}

func TestLockManagerHeldDuringWork(t *testing.T) {
	m := NewLockManager(10 * time.Millisecond)

	if m.Held("conv-1") {
		t.Fatal("lock must not be held before acquisition")
	}

	release := make(chan struct{})
	h, _ := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		<-release
		return &Result{}, nil
	})

	if !m.Held("conv-1") {
		t.Error("lock must be held while work runs")
	}
	if m.Held("conv-2") {
		t.Error("locks are per conversation")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestLockManagerRelease(t *testing.T) {
	m := NewLockManager(time.Hour)

	h, _ := m.AcquireOrJoin("conv-1", func() (*Result, error) {
		return &Result{}, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	m.Release("conv-1")
	if m.Held("conv-1") {
		t.Error("Release must remove the entry immediately")
	}
}
