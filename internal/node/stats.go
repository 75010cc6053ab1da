package node

import (
	"fmt"
	"sync/atomic"
	"time"
)

// stats are updated by the loops and read from anywhere.
type stats struct {
	lines           atomic.Uint64
	dropped         atomic.Uint64
	events          atomic.Uint64
	samples         atomic.Uint64
	published       atomic.Uint64
	redraws         atomic.Uint64
	sensorErrors    atomic.Uint64
	stripErrors     atomic.Uint64
	displayErrors   atomic.Uint64
	telemetryErrors atomic.Uint64

	// Unix nanoseconds of each loop's last tick
	sampleTick    atomic.Int64
	animationTick atomic.Int64
	renderTick    atomic.Int64
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	LinesReceived   uint64 `json:"lines_received"`
	LinesDropped    uint64 `json:"lines_dropped"`
	EventsQueued    uint64 `json:"events_queued"`
	Samples         uint64 `json:"samples"`
	Published       uint64 `json:"published"`
	Redraws         uint64 `json:"redraws"`
	SensorErrors    uint64 `json:"sensor_errors"`
	StripErrors     uint64 `json:"strip_errors"`
	DisplayErrors   uint64 `json:"display_errors"`
	TelemetryErrors uint64 `json:"telemetry_errors"`
	QueueLength     int    `json:"queue_length"`

	LastSample    time.Time `json:"last_sample"`
	LastAnimation time.Time `json:"last_animation"`
	LastRender    time.Time `json:"last_render"`
}

func (s Stats) String() string {
	return fmt.Sprintf("lines=%d dropped=%d events=%d samples=%d published=%d redraws=%d errors(sensor=%d strip=%d display=%d telemetry=%d) queue=%d",
		s.LinesReceived, s.LinesDropped, s.EventsQueued, s.Samples, s.Published, s.Redraws,
		s.SensorErrors, s.StripErrors, s.DisplayErrors, s.TelemetryErrors, s.QueueLength)
}

// Stats returns the current counters. Safe for concurrent use.
func (e *Engine) Stats() Stats {
	return Stats{
		LinesReceived:   e.stats.lines.Load(),
		LinesDropped:    e.stats.dropped.Load(),
		EventsQueued:    e.stats.events.Load(),
		Samples:         e.stats.samples.Load(),
		Published:       e.stats.published.Load(),
		Redraws:         e.stats.redraws.Load(),
		SensorErrors:    e.stats.sensorErrors.Load(),
		StripErrors:     e.stats.stripErrors.Load(),
		DisplayErrors:   e.stats.displayErrors.Load(),
		TelemetryErrors: e.stats.telemetryErrors.Load(),
		QueueLength:     e.deps.Queue.Len(),
		LastSample:      unixNano(e.stats.sampleTick.Load()),
		LastAnimation:   unixNano(e.stats.animationTick.Load()),
		LastRender:      unixNano(e.stats.renderTick.Load()),
	}
}

// Stalled returns the names of loops that have not ticked within maxAge of now.
// Loops that never ticked count as stalled.
func (s Stats) Stalled(now time.Time, maxAge time.Duration) []string {
	var out []string
	for _, l := range []struct {
		name string
		at   time.Time
	}{
		{"sampler", s.LastSample},
		{"animator", s.LastAnimation},
		{"renderer", s.LastRender},
	} {
		if l.at.IsZero() || now.Sub(l.at) > maxAge {
			out = append(out, l.name)
		}
	}
	return out
}

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
