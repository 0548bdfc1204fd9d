// Package telemetry aggregates request round-trip latencies and reports
// them periodically.
package telemetry

import (
	"sort"
	"time"
)

// Upper bounds of the delay bands.
const (
	immediateDelayMax     = 25 * time.Millisecond
	nearImmediateDelayMax = 50 * time.Millisecond
	shortDelayMax         = 250 * time.Millisecond
	mediumDelayMax        = 500 * time.Millisecond
	idleDelayMax          = 1500 * time.Millisecond
	nonFocusDelayMax      = 3000 * time.Millisecond
)

// Measure names, as reported by DelayTracker.Measures.
const (
	ImmediateDelays     = "immediateDelays"
	NearImmediateDelays = "nearImmediateDelays"
	ShortDelays         = "shortDelays"
	MediumDelays        = "mediumDelays"
	IdleDelays          = "idleDelays"
	NonFocusDelays      = "nonFocusDelays"
	BigDelays           = "bigDelays"
)

// DelayTracker is a histogram of round-trip delays for one command.
type DelayTracker struct {
	name string

	immediate     int // 0 - 25ms
	nearImmediate int // 26 - 50ms
	short         int // 51 - 250ms
	medium        int // 251 - 500ms
	idle          int // 501 - 1500ms
	nonFocus      int // 1501 - 3000ms
	big           int // 3000ms+
}

// NewDelayTracker returns an empty tracker for the named command.
func NewDelayTracker(name string) *DelayTracker {
	return &DelayTracker{name: name}
}

// Name returns the command name the tracker was created for.
func (t *DelayTracker) Name() string {
	return t.name
}

// ReportDelay counts elapsed in its band.
func (t *DelayTracker) ReportDelay(elapsed time.Duration) {
	switch {
	case elapsed <= immediateDelayMax:
		t.immediate++
	case elapsed <= nearImmediateDelayMax:
		t.nearImmediate++
	case elapsed <= shortDelayMax:
		t.short++
	case elapsed <= mediumDelayMax:
		t.medium++
	case elapsed <= idleDelayMax:
		t.idle++
	case elapsed <= nonFocusDelayMax:
		t.nonFocus++
	default:
		t.big++
	}
}

// HasMeasures reports whether any delay was counted since the last clear.
func (t *DelayTracker) HasMeasures() bool {
	return t.immediate > 0 ||
		t.nearImmediate > 0 ||
		t.short > 0 ||
		t.medium > 0 ||
		t.idle > 0 ||
		t.nonFocus > 0 ||
		t.big > 0
}

// ClearMeasures resets every band to zero.
func (t *DelayTracker) ClearMeasures() {
	*t = DelayTracker{name: t.name}
}

// Measures returns the band counters keyed by measure name.
func (t *DelayTracker) Measures() map[string]float64 {
	return map[string]float64{
		ImmediateDelays:     float64(t.immediate),
		NearImmediateDelays: float64(t.nearImmediate),
		ShortDelays:         float64(t.short),
		MediumDelays:        float64(t.medium),
		IdleDelays:          float64(t.idle),
		NonFocusDelays:      float64(t.nonFocus),
		BigDelays:           float64(t.big),
	}
}

// Delays holds one DelayTracker per command name. It is owned by a single
// server and is not safe for concurrent use.
type Delays struct {
	trackers map[string]*DelayTracker
}

// NewDelays returns an empty set of trackers.
func NewDelays() *Delays {
	return &Delays{trackers: make(map[string]*DelayTracker)}
}

// Record adds elapsed to the tracker for command, creating it if needed.
func (d *Delays) Record(command string, elapsed time.Duration) {
	t, ok := d.trackers[command]
	if !ok {
		t = NewDelayTracker(command)
		d.trackers[command] = t
	}
	t.ReportDelay(elapsed)
}

// Tracker returns the tracker for command, or nil.
func (d *Delays) Tracker(command string) *DelayTracker {
	return d.trackers[command]
}

// Event is one telemetry event produced by Flush.
type Event struct {
	Name     string
	Measures map[string]float64
}

// Flush returns an event for every tracker that has measures, named
// "omnisharp" followed by the command, and clears those trackers.
// Events are sorted by name.
func (d *Delays) Flush() []Event {
	var events []Event
	for name, t := range d.trackers {
		if !t.HasMeasures() {
			continue
		}
		events = append(events, Event{
			Name:     "omnisharp" + name,
			Measures: t.Measures(),
		})
		t.ClearMeasures()
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Name < events[j].Name
	})
	return events
}
