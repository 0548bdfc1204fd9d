package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBusOrder(t *testing.T) {
	var b Bus
	var got []string
	b.Subscribe("ProjectAdded", func(p interface{}) { got = append(got, "a:"+p.(string)) })
	b.Subscribe("ProjectAdded", func(p interface{}) { got = append(got, "b:"+p.(string)) })
	b.Subscribe("ProjectRemoved", func(p interface{}) { got = append(got, "c:"+p.(string)) })

	b.Publish("ProjectAdded", "x")
	b.Publish("ProjectRemoved", "y")
	b.Publish("started", "z")

	want := []string{"a:x", "b:x", "c:y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBusDispose(t *testing.T) {
	var b Bus
	n := 0
	d := b.Subscribe("log", func(interface{}) { n++ })
	other := 0
	b.Subscribe("log", func(interface{}) { other++ })

	b.Publish("log", nil)
	d.Dispose()
	d.Dispose()
	b.Publish("log", nil)

	if n != 1 {
		t.Errorf("disposed handler called %v times; want 1", n)
	}
	if other != 2 {
		t.Errorf("remaining handler called %v times; want 2", other)
	}
}

func TestBusReentrant(t *testing.T) {
	var b Bus
	var got []string
	var d Disposable
	d = b.Subscribe("stdout", func(p interface{}) {
		got = append(got, p.(string))
		d.Dispose()
		b.Publish("stderr", "nested")
	})
	b.Subscribe("stderr", func(p interface{}) { got = append(got, p.(string)) })

	b.Publish("stdout", "first")
	b.Publish("stdout", "second")

	want := []string{"first", "nested"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}
	if b.HasSubscribers("stdout") {
		t.Errorf("stdout still has subscribers")
	}
}

func TestDisposables(t *testing.T) {
	var order []int
	var ds Disposables
	for i := 1; i <= 3; i++ {
		i := i
		ds.Add(DisposableFunc(func() { order = append(order, i) }))
	}
	ds.Dispose()
	ds.Dispose()

	if diff := cmp.Diff([]int{3, 2, 1}, order); diff != "" {
		t.Errorf("dispose order mismatch (-want +got):\n%s", diff)
	}
}
