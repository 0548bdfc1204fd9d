package telemetry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestDelayTrackerBands(t *testing.T) {
	tr := NewDelayTracker("/autocomplete")
	for _, d := range []time.Duration{
		0,
		25 * time.Millisecond,
		26 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		400 * time.Millisecond,
		1 * time.Second,
		1500 * time.Millisecond,
		2 * time.Second,
		3 * time.Second,
		3001 * time.Millisecond,
		time.Minute,
	} {
		tr.ReportDelay(d)
	}
	want := map[string]float64{
		ImmediateDelays:     2,
		NearImmediateDelays: 2,
		ShortDelays:         2,
		MediumDelays:        1,
		IdleDelays:          2,
		NonFocusDelays:      2,
		BigDelays:           2,
	}
	if got := tr.Measures(); !cmp.Equal(got, want) {
		t.Errorf("measures mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
	if !tr.HasMeasures() {
		t.Errorf("HasMeasures is false after reporting delays")
	}
	tr.ClearMeasures()
	if tr.HasMeasures() {
		t.Errorf("HasMeasures is true after ClearMeasures")
	}
	if got, want := tr.Name(), "/autocomplete"; got != want {
		t.Errorf("name is %q after clear; want %q", got, want)
	}
}

func TestDelaysFlush(t *testing.T) {
	d := NewDelays()
	d.Record("/typelookup", 10*time.Millisecond)
	d.Record("/typelookup", 600*time.Millisecond)
	d.Record("/autocomplete", 5*time.Second)

	events := d.Flush()
	if len(events) != 2 {
		t.Fatalf("Flush returned %v events; want 2", len(events))
	}
	if got, want := events[0].Name, "omnisharp/autocomplete"; got != want {
		t.Errorf("first event is %q; want %q", got, want)
	}
	if got, want := events[1].Measures[IdleDelays], 1.0; got != want {
		t.Errorf("typelookup idle delays is %v; want %v", got, want)
	}
	if events := d.Flush(); len(events) != 0 {
		t.Errorf("second Flush returned %v; want nothing", events)
	}
	if d.Tracker("/typelookup") == nil {
		t.Errorf("tracker was removed by Flush")
	}
}

func TestPrometheusReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusReporter(reg)
	if err != nil {
		t.Fatalf("NewPrometheusReporter failed: %v", err)
	}
	d := NewDelays()
	d.Record("/findusages", time.Millisecond)
	d.Record("/findusages", 2*time.Millisecond)
	Send(r, d.Flush())
	d.Record("/findusages", 3*time.Millisecond)
	Send(r, d.Flush())

	got := testutil.ToFloat64(r.delays.WithLabelValues("omnisharp/findusages", ImmediateDelays))
	if got != 3 {
		t.Errorf("immediate delay counter is %v; want 3", got)
	}

	// Registering twice reuses the existing counter.
	r2, err := NewPrometheusReporter(reg)
	if err != nil {
		t.Fatalf("second NewPrometheusReporter failed: %v", err)
	}
	if r2.delays != r.delays {
		t.Errorf("second reporter did not reuse the registered counter")
	}
}

func TestLogReporter(t *testing.T) {
	log, hook := logrustest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	r := MultiReporter{&LogReporter{Log: log}}
	r.SendTelemetryEvent("omnisharp/gotodefinition", map[string]string{"kind": "test"}, map[string]float64{ShortDelays: 4})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("no log entry written")
	}
	if got, want := e.Message, "telemetry omnisharp/gotodefinition"; got != want {
		t.Errorf("message is %q; want %q", got, want)
	}
	if got := e.Data[ShortDelays]; got != 4.0 {
		t.Errorf("shortDelays field is %v; want 4", got)
	}
	if got := e.Data["kind"]; got != "test" {
		t.Errorf("kind field is %v; want test", got)
	}
}
