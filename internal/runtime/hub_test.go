package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestStreamHubFanOut(t *testing.T) {
	hub := NewStreamHub(8)

	first := hub.Publish(Segment{Payload: []byte("one")})
	second := hub.Publish(Segment{Payload: []byte("two")})
	if first != 1 || second != 2 {
		t.Fatalf("sequences %d,%d, want 1,2", first, second)
	}

	// Two viewers fetching from the start both see everything.
	for viewer := 0; viewer < 2; viewer++ {
		segments, next, err := hub.Fetch(context.Background(), 0, 10)
		if err != nil {
			t.Fatalf("viewer %d fetch: %v", viewer, err)
		}
		if len(segments) != 2 || next != 2 {
			t.Fatalf("viewer %d got %d segments next=%d", viewer, len(segments), next)
		}
		if string(segments[0].Payload) != "one" {
			t.Fatalf("viewer %d first payload %q", viewer, segments[0].Payload)
		}
	}
}

func TestStreamHubFetchBlocksUntilPublish(t *testing.T) {
	hub := NewStreamHub(8)

	type result struct {
		segments []Segment
		err      error
	}
	got := make(chan result, 1)
	go func() {
		segments, _, err := hub.Fetch(context.Background(), 0, 10)
		got <- result{segments, err}
	}()

	// Let the fetch block before publishing.
	time.Sleep(20 * time.Millisecond)
	hub.Publish(Segment{Payload: []byte("late")})

	select {
	case r := <-got:
		if r.err != nil {
			t.Fatalf("fetch: %v", r.err)
		}
		if len(r.segments) != 1 || string(r.segments[0].Payload) != "late" {
			t.Fatalf("unexpected segments %v", r.segments)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never woke")
	}
}

func TestStreamHubFetchHonorsContext(t *testing.T) {
	hub := NewStreamHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10)
	if err == nil {
		t.Fatal("expected context error from empty fetch")
	}
}

func TestStreamHubEvictsOldestAtCapacity(t *testing.T) {
	hub := NewStreamHub(4)
	for i := 0; i < 6; i++ {
		hub.Publish(Segment{Payload: []byte(fmt.Sprintf("seg-%d", i))})
	}

	segments, next := hub.Tail(10)
	if len(segments) != 4 {
		t.Fatalf("buffered %d segments, want capacity 4", len(segments))
	}
	if segments[0].Sequence != 3 || next != 6 {
		t.Fatalf("oldest seq %d next %d, want 3 and 6", segments[0].Sequence, next)
	}

	// A viewer behind the eviction point resumes at the oldest retained
	// segment rather than erroring.
	resumed, _, err := hub.Fetch(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("fetch behind eviction: %v", err)
	}
	if resumed[0].Sequence != 3 {
		t.Fatalf("resumed at seq %d, want 3", resumed[0].Sequence)
	}
}
