package containers

import (
	"errors"
	"slices"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("dequeue on empty queue: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Errorf("enqueue on full queue: %v", err)
	}
	if v, _ := rq.Peek(); v != 1 {
		t.Errorf("peek = %d, want 1", v)
	}

	for want := 1; want <= 3; want++ {
		v, err := rq.Dequeue()
		if err != nil || v != want {
			t.Errorf("dequeue = %d, %v, want %d", v, err, want)
		}
	}
	if !rq.IsEmpty() {
		t.Error("queue not empty")
	}
}

func TestRingQueuePushDropsOldest(t *testing.T) {
	rq := NewRingQueue[int](3)
	for i := 1; i <= 5; i++ {
		rq.Push(i)
	}

	var got []int
	rq.Each(func(v int) { got = append(got, v) })
	if !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("contents = %v, want [3 4 5]", got)
	}
	if rq.Len() != 3 || !rq.IsFull() {
		t.Errorf("len = %d, full = %t", rq.Len(), rq.IsFull())
	}
}

func TestRingQueueZeroSize(t *testing.T) {
	rq := NewRingQueue[string](0)
	rq.Push("dropped")
	if rq.Len() != 0 {
		t.Errorf("len = %d, want 0", rq.Len())
	}
}
