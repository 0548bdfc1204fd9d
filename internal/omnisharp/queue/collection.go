package queue

import (
	"github.com/fhs/omnisharp-client/internal/omnisharp/logger"
)

// DefaultConcurrency is the normal queue size used when none is given.
const DefaultConcurrency = 8

// RequestQueueCollection routes requests to the priority, normal and
// deferred queues and drains them against a shared transmit function.
//
// It is not safe for concurrent use. The owner serializes all calls,
// including the transmit callback, which runs synchronously inside Enqueue
// and Drain.
type RequestQueueCollection struct {
	classifier   *Classifier
	isProcessing bool

	priority *RequestQueue
	normal   *RequestQueue
	deferred *RequestQueue
}

// NewRequestQueueCollection returns a collection whose normal queue allows
// concurrency in-flight requests. A non-positive concurrency selects
// DefaultConcurrency.
func NewRequestQueueCollection(logger *logger.Logger, concurrency int, transmit TransmitFunc) *RequestQueueCollection {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	deferredSize := concurrency / 4
	if deferredSize < 2 {
		deferredSize = 2
	}
	return &RequestQueueCollection{
		classifier: defaultClassifier,
		priority:   NewRequestQueue("Priority", 1, logger, transmit),
		normal:     NewRequestQueue("Normal", concurrency, logger, transmit),
		deferred:   NewRequestQueue("Deferred", deferredSize, logger, transmit),
	}
}

// Queue returns the queue serving tier t.
func (c *RequestQueueCollection) Queue(t Tier) *RequestQueue {
	switch t {
	case Priority:
		return c.priority
	case Normal:
		return c.normal
	}
	return c.deferred
}

func (c *RequestQueueCollection) queueFor(command string) *RequestQueue {
	return c.Queue(c.classifier.Classify(command))
}

// IsEmpty reports whether no request is pending in any queue. In-flight
// requests are not counted.
func (c *RequestQueueCollection) IsEmpty() bool {
	return !c.priority.HasPending() &&
		!c.normal.HasPending() &&
		!c.deferred.HasPending()
}

// Enqueue adds r to the queue for its command and drains.
func (c *RequestQueueCollection) Enqueue(r *Request) {
	c.queueFor(r.Command).Enqueue(r)
	c.Drain()
}

// Dequeue removes the in-flight request for command with sequence id seq.
// It returns nil if there is no such request.
func (c *RequestQueueCollection) Dequeue(command string, seq int) *Request {
	return c.queueFor(command).Dequeue(seq)
}

// CancelRequest cancels r if it has not been sent yet.
func (c *RequestQueueCollection) CancelRequest(r *Request) {
	c.queueFor(r.Command).CancelRequest(r)
}

// Drain sends as many pending requests as the queue limits allow. Pending
// priority requests hold back the other tiers until they have been sent.
func (c *RequestQueueCollection) Drain() {
	if c.isProcessing {
		return
	}
	if c.priority.IsFull() {
		return
	}
	if c.normal.IsFull() && c.deferred.IsFull() {
		return
	}

	c.isProcessing = true
	defer func() { c.isProcessing = false }()

	if c.priority.HasPending() {
		c.priority.ProcessPending()
		return
	}
	if c.normal.HasPending() {
		c.normal.ProcessPending()
	}
	if c.deferred.HasPending() {
		c.deferred.ProcessPending()
	}
}
