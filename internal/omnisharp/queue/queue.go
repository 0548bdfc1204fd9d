// Package queue implements the prioritized, concurrency limited request
// queues that sit between OmniSharp callers and the server's stdin.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/logger"
)

// Request is a call waiting to be sent to, or answered by, the server.
type Request struct {
	Command   string
	Data      interface{}
	OnSuccess func(body json.RawMessage)
	OnError   func(err error)
	StartTime time.Time
}

// CancelledError is passed to OnError when a pending request is cancelled.
type CancelledError struct {
	Command string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("Pending request cancelled: %v", e.Command)
}

// TransmitFunc sends a request to the server and returns its sequence id.
type TransmitFunc func(*Request) int

// RequestQueue holds the pending and in-flight requests of one tier.
// At most maxSize requests are in flight at a time.
type RequestQueue struct {
	name     string
	maxSize  int
	logger   *logger.Logger
	transmit TransmitFunc

	pending []*Request
	waiting map[int]*Request
}

// NewRequestQueue returns an empty queue.
func NewRequestQueue(name string, maxSize int, logger *logger.Logger, transmit TransmitFunc) *RequestQueue {
	return &RequestQueue{
		name:     name,
		maxSize:  maxSize,
		logger:   logger,
		transmit: transmit,
		waiting:  make(map[int]*Request),
	}
}

// Name returns the queue name used in log output.
func (q *RequestQueue) Name() string { return q.name }

// MaxSize returns the maximum number of in-flight requests.
func (q *RequestQueue) MaxSize() int { return q.maxSize }

// Enqueue appends r to the pending requests.
func (q *RequestQueue) Enqueue(r *Request) {
	q.logger.AppendLinef("Enqueue %v request for %v.", q.name, r.Command)
	q.pending = append(q.pending, r)
}

// Dequeue removes and returns the in-flight request with sequence id seq,
// or nil if there is none.
func (q *RequestQueue) Dequeue(seq int) *Request {
	r, ok := q.waiting[seq]
	if !ok {
		return nil
	}
	delete(q.waiting, seq)
	q.logger.AppendLinef("Dequeue %v request for %v (%v).", q.name, r.Command, seq)
	return r
}

// CancelRequest removes r from the pending requests and fails it with a
// *CancelledError. Requests already sent to the server are left alone.
func (q *RequestQueue) CancelRequest(r *Request) {
	for i, p := range q.pending {
		if p != r {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		if r.OnError != nil {
			r.OnError(&CancelledError{Command: r.Command})
		}
		return
	}
	// TODO: tell the server to abandon requests that are already in flight.
}

// HasPending reports whether any request is waiting to be sent.
func (q *RequestQueue) HasPending() bool {
	return len(q.pending) > 0
}

// IsFull reports whether no more requests may be sent.
func (q *RequestQueue) IsFull() bool {
	return len(q.waiting) >= q.maxSize
}

// PendingLen returns the number of requests waiting to be sent.
func (q *RequestQueue) PendingLen() int { return len(q.pending) }

// WaitingLen returns the number of requests in flight.
func (q *RequestQueue) WaitingLen() int { return len(q.waiting) }

// ProcessPending sends pending requests, oldest first, until the queue is
// full or nothing is pending.
func (q *RequestQueue) ProcessPending() {
	if len(q.pending) == 0 {
		return
	}

	q.logger.AppendLinef("Processing %v queue", q.name)
	q.logger.IncreaseIndent()
	defer q.logger.DecreaseIndent()

	for !q.IsFull() && len(q.pending) > 0 {
		r := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]

		r.StartTime = time.Now()
		id := q.transmit(r)
		q.waiting[id] = r
	}
}
