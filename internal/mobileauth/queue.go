package mobileauth

import (
	"sync"

	"idshowcase/internal/identity"
)

// Request is one transaction escalated to a concrete authenticator. Exactly
// one of Confirm, Pin, or Biometric is set. It references a pending
// transaction by ID; it is not the transaction itself.
type Request struct {
	TransactionID string
	Confirm       func(accepted bool)
	Pin           identity.PinChallenge
	Biometric     identity.BiometricChallenge
}

// Queue serializes escalated requests: FIFO, at most one active at a time.
// The Identity Service serializes authenticator interaction per session, so
// issuing two escalations concurrently is undefined behavior at the service
// boundary.
type Queue struct {
	mu    sync.Mutex
	items []*Request
	begin func(*Request)
}

// NewQueue creates a queue that calls begin each time a request becomes the
// active head.
func NewQueue(begin func(*Request)) *Queue {
	return &Queue{begin: begin}
}

// Enqueue appends the request; if the queue was empty it becomes active
// immediately.
func (q *Queue) Enqueue(r *Request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	active := len(q.items) == 1
	q.mu.Unlock()
	if active {
		q.begin(r)
	}
}

// Dequeue removes the active head; the next request, if any, becomes active.
// Called on completion of the head so the queue cannot stall.
func (q *Queue) Dequeue() {
	q.mu.Lock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	var next *Request
	if len(q.items) > 0 {
		next = q.items[0]
	}
	q.mu.Unlock()
	if next != nil {
		q.begin(next)
	}
}

// ActiveID returns the transaction ID of the active head, or "" when idle.
func (q *Queue) ActiveID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return ""
	}
	return q.items[0].TransactionID
}

// Len returns the number of queued requests including the active one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
