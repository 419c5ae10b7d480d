package reorder

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestNextDeliversInIndexOrder(t *testing.T) {
	buf := New[int64](4)
	for _, idx := range []int64{2, 0, 3, 1} {
		if err := buf.Put(idx, idx*10); err != nil {
			t.Fatalf("Put(%d) returned error: %v", idx, err)
		}
	}
	buf.CloseAt(4)

	ctx := context.Background()
	for want := int64(0); want < 4; want++ {
		got, ok, err := buf.Next(ctx)
		if err != nil || !ok {
			t.Fatalf("Next returned %v %v", ok, err)
		}
		if got != want*10 {
			t.Fatalf("expected %d, got %d", want*10, got)
		}
	}
	if _, ok, err := buf.Next(ctx); ok || err != nil {
		t.Fatalf("expected end of sequence, got ok=%v err=%v", ok, err)
	}
}

func TestPutRejectsIndexOutsideWindow(t *testing.T) {
	buf := New[string](2)
	if err := buf.Put(2, "late"); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected ErrOutOfWindow, got %v", err)
	}
	if err := buf.Put(0, "a"); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := buf.Put(0, "again"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, _, err := buf.Next(context.Background()); err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if err := buf.Put(0, "stale"); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("expected ErrOutOfWindow for delivered index, got %v", err)
	}
	if err := buf.Put(2, "now fits"); err != nil {
		t.Fatalf("expected window to slide, got %v", err)
	}
}

func TestPutAfterCloseFails(t *testing.T) {
	buf := New[int](4)
	buf.CloseAt(1)
	if err := buf.Put(1, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNextHonorsContext(t *testing.T) {
	buf := New[int](2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok, err := buf.Next(ctx); ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got ok=%v err=%v", ok, err)
	}
}

func TestCloseAtZeroEndsImmediately(t *testing.T) {
	buf := New[int](2)
	buf.CloseAt(0)
	if _, ok, err := buf.Next(context.Background()); ok || err != nil {
		t.Fatalf("expected empty sequence, got ok=%v err=%v", ok, err)
	}
}

func TestConcurrentProducersKeepOrder(t *testing.T) {
	const total = 500
	const capacity = 8
	buf := New[int64](capacity)
	tokens := make(chan struct{}, capacity)
	jobs := make(chan int64)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for idx := range jobs {
				time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
				if err := buf.Put(idx, idx); err != nil {
					t.Errorf("Put(%d) returned error: %v", idx, err)
					return
				}
			}
		}(int64(w))
	}

	go func() {
		for i := int64(0); i < total; i++ {
			tokens <- struct{}{}
			jobs <- i
		}
		close(jobs)
		buf.CloseAt(total)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var want int64
	for {
		got, ok, err := buf.Next(ctx)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if !ok {
			break
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
		want++
		<-tokens
	}
	wg.Wait()
	if want != total {
		t.Fatalf("expected %d items, got %d", total, want)
	}
	if buf.Pending() != 0 || buf.Delivered() != total {
		t.Fatalf("unexpected final state pending=%d delivered=%d", buf.Pending(), buf.Delivered())
	}
}
