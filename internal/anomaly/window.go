package anomaly

import (
	"math"
	"sort"

	"NetScope/internal/model"
)

// RollingWindow holds the most recent per-second traffic buckets, bounded by
// a fixed capacity. The oldest bucket is evicted when the capacity is
// exceeded, so insertion order is always chronological order.
//
// RollingWindow is not safe for concurrent use; the owning detector
// serializes access to it.
type RollingWindow struct {
	buckets  []model.TrafficBucket
	capacity int
}

// NewRollingWindow creates an empty window with the given capacity.
func NewRollingWindow(capacity int) *RollingWindow {
	return &RollingWindow{
		buckets:  make([]model.TrafficBucket, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a finalized bucket, evicting the oldest one if the window
// is full.
func (w *RollingWindow) Push(b model.TrafficBucket) {
	if len(w.buckets) >= w.capacity {
		n := copy(w.buckets, w.buckets[len(w.buckets)-w.capacity+1:])
		w.buckets = w.buckets[:n]
	}
	w.buckets = append(w.buckets, b)
}

// Len returns the number of buckets currently held.
func (w *RollingWindow) Len() int {
	return len(w.buckets)
}

// Capacity returns the maximum number of buckets the window can hold.
func (w *RollingWindow) Capacity() int {
	return w.capacity
}

// Resize changes the window capacity. When shrinking, the most recent
// buckets are retained, consistent with the eviction policy.
func (w *RollingWindow) Resize(capacity int) {
	if capacity == w.capacity {
		return
	}
	if len(w.buckets) > capacity {
		kept := make([]model.TrafficBucket, capacity)
		copy(kept, w.buckets[len(w.buckets)-capacity:])
		w.buckets = kept
	}
	w.capacity = capacity
}

// Snapshot returns a copy of the current buckets in chronological order.
func (w *RollingWindow) Snapshot() []model.TrafficBucket {
	out := make([]model.TrafficBucket, len(w.buckets))
	copy(out, w.buckets)
	return out
}

// Start returns the epoch second of the oldest bucket. The boolean is false
// when the window is empty.
func (w *RollingWindow) Start() (int64, bool) {
	if len(w.buckets) == 0 {
		return 0, false
	}
	return w.buckets[0].Second, true
}

// Mean returns the average packet count over all held buckets, or 0 for an
// empty window.
func (w *RollingWindow) Mean() float64 {
	if len(w.buckets) == 0 {
		return 0
	}
	sum := 0
	for _, b := range w.buckets {
		sum += b.PacketCount
	}
	return float64(sum) / float64(len(w.buckets))
}

// StdDev returns the sample standard deviation of the held packet counts.
// The boolean is false when fewer than two samples are held, in which case
// the statistic is undefined.
func (w *RollingWindow) StdDev() (float64, bool) {
	n := len(w.buckets)
	if n < 2 {
		return 0, false
	}
	mean := w.Mean()
	var ss float64
	for _, b := range w.buckets {
		d := float64(b.PacketCount) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}

// Median returns the median packet count, averaging the two middle values
// for an even number of samples. Returns 0 for an empty window.
func (w *RollingWindow) Median() float64 {
	n := len(w.buckets)
	if n == 0 {
		return 0
	}
	counts := make([]int, n)
	for i, b := range w.buckets {
		counts[i] = b.PacketCount
	}
	sort.Ints(counts)
	if n%2 == 1 {
		return float64(counts[n/2])
	}
	return float64(counts[n/2-1]+counts[n/2]) / 2
}

// MinMax returns the smallest and largest packet counts held. The boolean is
// false when the window is empty.
func (w *RollingWindow) MinMax() (min, max int, ok bool) {
	if len(w.buckets) == 0 {
		return 0, 0, false
	}
	min, max = w.buckets[0].PacketCount, w.buckets[0].PacketCount
	for _, b := range w.buckets[1:] {
		if b.PacketCount < min {
			min = b.PacketCount
		}
		if b.PacketCount > max {
			max = b.PacketCount
		}
	}
	return min, max, true
}
