package queue

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/fhs/omnisharp-client/internal/omnisharp/logger"
	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// fakeTransport records transmitted requests and hands out sequence ids.
type fakeTransport struct {
	seq  int
	sent []string
	reqs map[int]*Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reqs: make(map[int]*Request)}
}

func (f *fakeTransport) transmit(r *Request) int {
	f.seq++
	f.sent = append(f.sent, r.Command)
	f.reqs[f.seq] = r
	return f.seq
}

func newCollection(t *testing.T, concurrency int) (*RequestQueueCollection, *fakeTransport) {
	t.Helper()
	f := newFakeTransport()
	return NewRequestQueueCollection(logger.New(io.Discard, ""), concurrency, f.transmit), f
}

func TestClassify(t *testing.T) {
	for cmd, want := range map[string]Tier{
		protocol.UpdateBuffer:         Priority,
		protocol.ChangeBuffer:         Priority,
		protocol.FormatAfterKeystroke: Priority,
		protocol.FormatRange:          Priority,
		protocol.AutoComplete:         Normal,
		protocol.FilesChanged:         Normal,
		protocol.TypeLookup:           Normal,
		protocol.SignatureHelp:        Normal,
		protocol.CodeCheck:            Deferred,
		protocol.Projects:             Deferred,
		"/v2/getcodeactions":          Deferred,
	} {
		if got := Classify(cmd); got != want {
			t.Errorf("Classify(%q) is %v; want %v", cmd, got, want)
		}
	}
}

func TestClassifierDeferredMemo(t *testing.T) {
	c := NewClassifier()
	if c.IsDeferredCommand(protocol.UpdateBuffer) {
		t.Errorf("%v is deferred", protocol.UpdateBuffer)
	}
	if !c.IsDeferredCommand("/custom") {
		t.Errorf("/custom is not deferred")
	}
	if !c.deferred["/custom"] {
		t.Errorf("/custom was not remembered")
	}
	if c.deferred[protocol.UpdateBuffer] {
		t.Errorf("%v was remembered as deferred", protocol.UpdateBuffer)
	}
}

func TestQueueSizes(t *testing.T) {
	for _, tc := range []struct {
		concurrency            int
		normal, deferred, prio int
	}{
		{0, 8, 2, 1},
		{2, 2, 2, 1},
		{8, 8, 2, 1},
		{12, 12, 3, 1},
		{16, 16, 4, 1},
	} {
		c, _ := newCollection(t, tc.concurrency)
		got := []int{c.Queue(Priority).MaxSize(), c.Queue(Normal).MaxSize(), c.Queue(Deferred).MaxSize()}
		want := []int{tc.prio, tc.normal, tc.deferred}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("concurrency %v: queue sizes mismatch (-want +got):\n%s", tc.concurrency, diff)
		}
	}
}

func TestPriorityHoldsBackOtherTiers(t *testing.T) {
	c, f := newCollection(t, 8)

	c.Enqueue(&Request{Command: protocol.UpdateBuffer})
	c.Enqueue(&Request{Command: protocol.AutoComplete})
	c.Enqueue(&Request{Command: protocol.CodeCheck})

	if diff := cmp.Diff([]string{protocol.UpdateBuffer}, f.sent); diff != "" {
		t.Fatalf("sent mismatch (-want +got):\n%s", diff)
	}
	if c.IsEmpty() {
		t.Fatalf("collection is empty with requests pending")
	}

	if r := c.Dequeue(protocol.UpdateBuffer, 1); r == nil {
		t.Fatalf("in-flight %v not found", protocol.UpdateBuffer)
	}
	c.Drain()

	want := []string{protocol.UpdateBuffer, protocol.AutoComplete, protocol.CodeCheck}
	if diff := cmp.Diff(want, f.sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	if !c.IsEmpty() {
		t.Errorf("collection not empty after drain")
	}
}

func TestPriorityPreemptsPending(t *testing.T) {
	c, f := newCollection(t, 2)

	for i := 0; i < 3; i++ {
		c.Enqueue(&Request{Command: protocol.AutoComplete})
	}
	c.Enqueue(&Request{Command: protocol.ChangeBuffer})

	want := []string{protocol.AutoComplete, protocol.AutoComplete, protocol.ChangeBuffer}
	if diff := cmp.Diff(want, f.sent); diff != "" {
		t.Fatalf("sent mismatch (-want +got):\n%s", diff)
	}
	if n := c.Queue(Normal).PendingLen(); n != 1 {
		t.Errorf("normal queue has %v pending; want 1", n)
	}
}

func TestNormalQueueLimit(t *testing.T) {
	c, f := newCollection(t, 2)

	for i := 0; i < 3; i++ {
		c.Enqueue(&Request{Command: protocol.FindUsages})
	}
	normal := c.Queue(Normal)
	if w, p := normal.WaitingLen(), normal.PendingLen(); w != 2 || p != 1 {
		t.Fatalf("after enqueue: %v waiting, %v pending; want 2 waiting, 1 pending", w, p)
	}

	if c.Dequeue(protocol.FindUsages, 2) == nil {
		t.Fatalf("request 2 not in flight")
	}
	c.Drain()
	if w, p := normal.WaitingLen(), normal.PendingLen(); w != 2 || p != 0 {
		t.Errorf("after drain: %v waiting, %v pending; want 2 waiting, 0 pending", w, p)
	}
	if len(f.sent) != 3 {
		t.Errorf("sent %v requests; want 3", len(f.sent))
	}
}

func TestDequeueOnce(t *testing.T) {
	c, _ := newCollection(t, 8)

	r := &Request{Command: protocol.TypeLookup}
	c.Enqueue(r)
	if r.StartTime.IsZero() {
		t.Errorf("start time not stamped on dispatch")
	}
	if got := c.Dequeue(protocol.TypeLookup, 1); got != r {
		t.Fatalf("Dequeue returned %v; want the enqueued request", got)
	}
	if got := c.Dequeue(protocol.TypeLookup, 1); got != nil {
		t.Errorf("second Dequeue returned %v; want nil", got)
	}
	if got := c.Dequeue(protocol.TypeLookup, 42); got != nil {
		t.Errorf("Dequeue of unknown id returned %v; want nil", got)
	}
}

func TestCancelRequest(t *testing.T) {
	c, f := newCollection(t, 8)

	var errs []error
	onError := func(err error) { errs = append(errs, err) }

	block := &Request{Command: protocol.UpdateBuffer, OnError: onError}
	pending := &Request{Command: protocol.AutoComplete, OnError: onError}
	c.Enqueue(block)
	c.Enqueue(pending)

	c.CancelRequest(pending)
	if len(errs) != 1 {
		t.Fatalf("got %v errors; want 1", len(errs))
	}
	var ce *CancelledError
	if !errors.As(errs[0], &ce) {
		t.Fatalf("error %v is not a *CancelledError", errs[0])
	}
	if got, want := errs[0].Error(), "Pending request cancelled: /autocomplete"; got != want {
		t.Errorf("error is %q; want %q", got, want)
	}

	// Requests in flight are not cancelled.
	c.CancelRequest(block)
	if len(errs) != 1 {
		t.Errorf("cancelling an in-flight request produced an error")
	}
	if c.Dequeue(protocol.UpdateBuffer, 1) != block {
		t.Errorf("in-flight request lost after cancel")
	}

	c.Drain()
	if diff := cmp.Diff([]string{protocol.UpdateBuffer}, f.sent); diff != "" {
		t.Errorf("cancelled request was sent (-want +got):\n%s", diff)
	}
}

func TestQueueLog(t *testing.T) {
	var buf bytes.Buffer
	f := newFakeTransport()
	c := NewRequestQueueCollection(logger.New(&buf, ""), 8, func(r *Request) int {
		buf.WriteString("transmit\n")
		return f.transmit(r)
	})

	c.Enqueue(&Request{Command: protocol.AutoComplete, Data: json.RawMessage(`{}`)})
	c.Dequeue(protocol.AutoComplete, 1)

	want := "Enqueue Normal request for /autocomplete.\n" +
		"Processing Normal queue\n" +
		"transmit\n" +
		"Dequeue Normal request for /autocomplete (1).\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}
