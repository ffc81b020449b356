// Package sim replays a route geometry as a timed stream of location fixes,
// standing in for a GPS receiver during development and demos.
package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
)

// Deviation describes an injected detour: starting at the fix with index
// After, fixes are shifted east by OffsetDegrees for Count updates. Used to
// exercise off-route detection from the CLI.
type Deviation struct {
	After         int
	Count         int
	OffsetDegrees float64
}

// Stream emits fixes along a path at a fixed ground speed, one per tick.
type Stream struct {
	log      *zap.Logger
	interval time.Duration
	fixes    []geo.Point

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewStream precomputes the fix sequence for the given path. speedKmh and
// interval together determine the arc-length step between fixes. A nil
// deviation replays the path exactly.
func NewStream(log *zap.Logger, path []geo.Point, speedKmh float64, interval time.Duration, dev *Deviation) *Stream {
	if speedKmh <= 0 {
		speedKmh = 50
	}
	if interval <= 0 {
		interval = time.Second
	}

	stepMeters := speedKmh / 3.6 * interval.Seconds()
	total := geo.PathLength(path)

	var fixes []geo.Point
	for traveled := 0.0; traveled < total; traveled += stepMeters {
		prefix := geo.SlicePath(path, traveled)
		fixes = append(fixes, prefix[len(prefix)-1])
	}
	if len(path) > 0 {
		fixes = append(fixes, path[len(path)-1])
	}

	if dev != nil {
		for i := 0; i < dev.Count; i++ {
			idx := dev.After + i
			if idx < 0 || idx >= len(fixes) {
				break
			}
			fixes[idx].Longitude += dev.OffsetDegrees
		}
	}

	return &Stream{
		log:      log,
		interval: interval,
		fixes:    fixes,
	}
}

// Start begins emitting fixes to the handler on the stream's own goroutine.
// The stream stops by itself after the last fix.
func (s *Stream) Start(handler func(fix geo.Point)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(handler, s.done, s.stopped)

	s.log.Info("location simulation started",
		zap.Int("fixes", len(s.fixes)),
		zap.Duration("interval", s.interval))
	return nil
}

func (s *Stream) run(handler func(fix geo.Point), done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for _, fix := range s.fixes {
		select {
		case <-done:
			return
		case <-ticker.C:
			handler(fix)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Stop halts emission. It does not wait for an in-flight handler call and is
// safe to invoke from within one.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.done)
}

// Done reports a channel closed once the replay finishes or is stopped
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
