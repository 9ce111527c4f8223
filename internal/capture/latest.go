package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame is returned when no frame has been published yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed is returned by a closed Latest.
	ErrClosed = errors.New("frame source closed")
)

// LatestStats counts mailbox traffic.
type LatestStats struct {
	Published uint64 `json:"published"`
	Read      uint64 `json:"read"`
	// Dropped counts frames overwritten before any reader saw them.
	Dropped uint64 `json:"dropped"`
}

// Latest is a single-slot mailbox holding the most recent frame.
//
// A background producer calls Publish; readers get a copy of whatever frame
// is current and never wait for a new one. Publishing overwrites the slot.
type Latest struct {
	mu     sync.Mutex
	frame  *gocv.Mat
	seen   bool
	seq    uint64
	stats  LatestStats
	closed bool
}

// NewLatest creates an empty mailbox.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish stores frame as the current frame and takes ownership of it.
// After Close the frame is released immediately.
func (l *Latest) Publish(frame gocv.Mat) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		frame.Close()
		return
	}

	if l.frame != nil {
		if !l.seen {
			l.stats.Dropped++
		}
		l.frame.Close()
	}

	l.frame = &frame
	l.seen = false
	l.seq++
	l.stats.Published++
}

// ReadFrame returns a copy of the current frame, or ErrNoFrame when
// nothing has been published yet.
func (l *Latest) ReadFrame() (*gocv.Mat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if l.frame == nil {
		return nil, ErrNoFrame
	}

	clone := l.frame.Clone()
	l.seen = true
	l.stats.Read++
	return &clone, nil
}

// Seq returns the sequence number of the current frame. It is zero
// before the first Publish.
func (l *Latest) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Stats returns a snapshot of the counters.
func (l *Latest) Stats() LatestStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Close releases the current frame. It is safe to call more than once.
func (l *Latest) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame != nil {
		l.frame.Close()
		l.frame = nil
	}
	l.closed = true
	return nil
}
