package history

import "github.com/AzizK97/VarGuard/internal/models"

// ring keeps the most recent capacity alerts in arrival order.
type ring struct {
	data     []models.Alert
	capacity int
	head     int  // next write position
	full     bool // whether the buffer has wrapped
}

func newRing(capacity int) *ring {
	return &ring{
		data:     make([]models.Alert, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

func (r *ring) add(a models.Alert) {
	if len(r.data) < r.capacity {
		r.data = append(r.data, a)
		r.head = len(r.data) % r.capacity
		r.full = len(r.data) == r.capacity
		return
	}
	r.data[r.head] = a
	r.head = (r.head + 1) % r.capacity
}

func (r *ring) len() int {
	return len(r.data)
}

// newestFirst returns the retained alerts, most recent first.
func (r *ring) newestFirst() []models.Alert {
	n := len(r.data)
	out := make([]models.Alert, n)
	start := 0
	if r.full {
		start = r.head
	}
	for i := 0; i < n; i++ {
		out[n-1-i] = r.data[(start+i)%r.capacity]
	}
	return out
}
