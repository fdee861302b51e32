package runtime

import (
	"context"
	"sync"
	"time"
)

// Segment is one unit of produced stream output. All viewers of a channel
// receive the same segments; a producer swap continues the sequence so
// viewers never observe a reset.
type Segment struct {
	Sequence      uint64    `json:"seq"`
	Mode          Mode      `json:"mode"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"ts"`
	Payload       []byte    `json:"payload"`
}

// StreamHub stores recent segments and wakes waiting viewers when new
// segments arrive. It outlives producer swaps: the hub belongs to the
// channel, not to any one producer.
type StreamHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Segment
	nextSeq  uint64
}

// NewStreamHub constructs a bounded in-memory segment fan-out buffer.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &StreamHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Publish appends a segment, assigning its sequence number, and wakes
// all blocked viewers.
func (h *StreamHub) Publish(seg Segment) uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	seg.Sequence = h.nextSeq
	if seg.Timestamp.IsZero() {
		seg.Timestamp = time.Now().UTC()
	}

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, seg)
	h.cond.Broadcast()
	return seg.Sequence
}

// Fetch returns segments with sequence greater than since, blocking until
// at least one is available or the context ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int) ([]Segment, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		segments, next := h.snapshotLocked(since, limit)
		if len(segments) > 0 {
			return segments, next, nil
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit segments without blocking.
func (h *StreamHub) Tail(limit int) ([]Segment, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Segment, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// LastSequence reports the most recently assigned sequence number.
func (h *StreamHub) LastSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *StreamHub) snapshotLocked(since uint64, limit int) ([]Segment, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := -1
	for i, seg := range h.buffer {
		if seg.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Segment, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
