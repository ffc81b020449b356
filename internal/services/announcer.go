package services

import (
	"errors"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/tracking"
	"github.com/YoannChhang/4proj-nav-engine/internal/metrics"
)

var errNoLocationStream = errors.New("no location stream configured")

// CountingAnnouncer forwards speech to the wrapped announcer and counts
// every announcement made.
type CountingAnnouncer struct {
	next      tracking.Announcer
	collector *metrics.Collector
}

func NewCountingAnnouncer(next tracking.Announcer, collector *metrics.Collector) *CountingAnnouncer {
	return &CountingAnnouncer{next: next, collector: collector}
}

func (a *CountingAnnouncer) Speak(text string, significant bool) {
	a.collector.Announcements.Inc()
	a.next.Speak(text, significant)
}
