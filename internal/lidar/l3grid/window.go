package l3grid

import (
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
)

const defaultWindowCapacity = 1024

// Entry is one accepted point held in the window.
type Entry struct {
	At    time.Time
	Point l1samples.NormalizedPoint
	Cell  l1samples.GridCell
	Step  float64 // grid step Cell was computed with
}

// Window is a FIFO of entries in arrival order backed by a growable ring
// buffer. Push and front removal are O(1) amortised. Not safe for concurrent
// use; it belongs to the pipeline goroutine.
type Window struct {
	buf  []Entry
	head int
	n    int
}

// NewWindow returns an empty window with room for capacity entries before
// its first growth.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = defaultWindowCapacity
	}
	return &Window{buf: make([]Entry, capacity)}
}

// Push appends an entry at the back.
func (w *Window) Push(e Entry) {
	if w.n == len(w.buf) {
		w.grow()
	}
	w.buf[(w.head+w.n)%len(w.buf)] = e
	w.n++
}

// Add quantises p with step and pushes it.
func (w *Window) Add(at time.Time, p l1samples.NormalizedPoint, step float64) {
	w.Push(Entry{At: at, Point: p, Cell: l1samples.Quantize(p, step), Step: step})
}

func (w *Window) grow() {
	size := len(w.buf) * 2
	if size == 0 {
		size = defaultWindowCapacity
	}
	next := make([]Entry, size)
	for i := 0; i < w.n; i++ {
		next[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	w.buf = next
	w.head = 0
}

// Purge removes entries older than window relative to now, from the front,
// and returns how many were removed. An entry exactly window old is kept.
func (w *Window) Purge(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	removed := 0
	for w.n > 0 {
		e := &w.buf[w.head]
		if !e.At.Before(cutoff) {
			break
		}
		*e = Entry{}
		w.head = (w.head + 1) % len(w.buf)
		w.n--
		removed++
	}
	if w.n == 0 {
		w.head = 0
	}
	return removed
}

// Len returns the number of entries.
func (w *Window) Len() int {
	return w.n
}

// At returns the i-th entry in arrival order.
func (w *Window) At(i int) Entry {
	return w.buf[(w.head+i)%len(w.buf)]
}

// Points appends the window's points to dst in arrival order.
func (w *Window) Points(dst []l1samples.NormalizedPoint) []l1samples.NormalizedPoint {
	for i := 0; i < w.n; i++ {
		dst = append(dst, w.At(i).Point)
	}
	return dst
}

// Reset empties the window, keeping its storage.
func (w *Window) Reset() {
	clear(w.buf)
	w.head = 0
	w.n = 0
}
