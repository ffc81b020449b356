package tracking

import (
	"time"

	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

// State is the tracker's lifecycle state
type State int

const (
	StateIdle State = iota
	StateActive
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateArrived:
		return "arrived"
	default:
		return "idle"
	}
}

// Announcer is the text-to-speech sink. Speak is fire-and-forget; the
// tracker never waits for speech completion.
type Announcer interface {
	Speak(text string, significant bool)
}

// Config holds the tracker's guidance thresholds. The values are
// empirically chosen defaults, kept configurable.
type Config struct {
	OffRouteThresholdMeters   float64
	OffRouteConfirmationCount int
	ArrivalThresholdMeters    float64
	ActivationBufferMeters    float64
	ToleranceMeters           float64
}

// DefaultConfig returns the standard guidance thresholds
func DefaultConfig() Config {
	return Config{
		OffRouteThresholdMeters:   50,
		OffRouteConfirmationCount: 3,
		ArrivalThresholdMeters:    20,
		ActivationBufferMeters:    30,
		ToleranceMeters:           10,
	}
}

const arrivalAnnouncement = "You have arrived at your destination"

type announcementKey struct {
	stepIndex int
	text      string
}

// Status is the tracker's externally visible navigation state
type Status struct {
	State                  State
	CurrentStepIndex       int
	DisplayedInstruction   string
	DistanceToNextManeuver float64
	RemainingDistance      float64
	RemainingDuration      float64
	EstimatedArrival       time.Time
	TraveledPath           []geo.Point
}

// Tracker is the navigation state machine: it consumes the selected route
// plus a live coordinate stream and produces step index, instruction text,
// distances and arrival/off-route signals.
//
// The tracker is not internally synchronized; the owning session delivers
// events one at a time (run-to-completion).
type Tracker struct {
	log       *zap.Logger
	cfg       Config
	announcer Announcer
	now       func() time.Time

	onOffRoute func(fix geo.Point)
	onArrive   func()

	state      State
	route      *routing.Route
	steps      []routing.Step
	stepStarts []float64 // cumulative route distance before each step

	currentStepIndex       int
	announcementsMade      map[announcementKey]struct{}
	traveledPath           []geo.Point
	displayedInstruction   string
	distanceToNextManeuver float64
	remainingDistance      float64
	remainingDuration      float64
	estimatedArrival       time.Time
	progressFraction       float64
	consecutiveOffRoute    int
}

// NewTracker creates an idle Tracker
func NewTracker(log *zap.Logger, cfg Config, announcer Announcer) *Tracker {
	return &Tracker{
		log:       log,
		cfg:       cfg,
		announcer: announcer,
		now:       time.Now,
		state:     StateIdle,
	}
}

// SetOffRouteHandler registers the callback fired when sustained deviation
// is confirmed. The tracker stays Active; rerouting is the handler's job.
func (t *Tracker) SetOffRouteHandler(handler func(fix geo.Point)) {
	t.onOffRoute = handler
}

// SetArrivalHandler registers the callback fired on the Active → Arrived
// transition.
func (t *Tracker) SetArrivalHandler(handler func()) {
	t.onArrive = handler
}

// Start begins tracking against a route from its origin
func (t *Tracker) Start(route *routing.Route) {
	t.Restart(route, 0)
}

// Restart atomically resets the tracker against a new route. The
// previousFraction is the progress fraction reached on the route being
// replaced; remaining distance/duration are the new route's totals scaled by
// (1 - previousFraction) so a reroute does not jump the ETA beyond the
// actual route-shape change.
func (t *Tracker) Restart(route *routing.Route, previousFraction float64) {
	if previousFraction < 0 {
		previousFraction = 0
	} else if previousFraction > 1 {
		previousFraction = 1
	}

	t.route = route
	t.steps = route.Steps()
	t.stepStarts = cumulativeStepStarts(t.steps)
	t.currentStepIndex = 0
	t.announcementsMade = make(map[announcementKey]struct{})
	t.consecutiveOffRoute = 0
	t.progressFraction = previousFraction

	if len(route.Geometry) > 0 {
		t.traveledPath = []geo.Point{route.Geometry[0]}
	} else {
		t.traveledPath = nil
	}

	t.remainingDistance = route.DistanceMeters * (1 - previousFraction)
	t.remainingDuration = route.DurationSeconds * (1 - previousFraction)
	t.estimatedArrival = t.now().Add(time.Duration(t.remainingDuration * float64(time.Second)))

	t.state = StateActive
	t.speakInitialInstruction()

	t.log.Info("tracking started",
		zap.Int("steps", len(t.steps)),
		zap.Float64("remaining_m", t.remainingDistance),
		zap.Float64("remaining_s", t.remainingDuration))
}

// speakInitialInstruction announces the first step: its zero-distance voice
// instruction when one exists, the maneuver instruction otherwise.
func (t *Tracker) speakInitialInstruction() {
	if len(t.steps) == 0 {
		return
	}

	first := t.steps[0]
	text := first.Maneuver.Instruction
	for _, vi := range first.VoiceInstructions {
		if vi.DistanceAlongGeometry == 0 {
			text = vi.Announcement
			break
		}
	}
	if text == "" {
		return
	}

	t.displayedInstruction = text
	t.announcementsMade[announcementKey{0, text}] = struct{}{}
	t.announcer.Speak(text, true)
}

// Stop returns the tracker to Idle and clears the presentation state
func (t *Tracker) Stop() {
	t.state = StateIdle
	t.route = nil
	t.steps = nil
	t.stepStarts = nil
	t.currentStepIndex = 0
	t.announcementsMade = nil
	t.traveledPath = nil
	t.displayedInstruction = ""
	t.distanceToNextManeuver = 0
	t.remainingDistance = 0
	t.remainingDuration = 0
	t.estimatedArrival = time.Time{}
	t.progressFraction = 0
	t.consecutiveOffRoute = 0
}

// Update processes one location fix while Active. Fixes are snapped to the
// route; the traveled path is always the snapped prefix of the route
// geometry so the rendered line never leaves the road.
func (t *Tracker) Update(fix geo.Point) {
	if t.state != StateActive || t.route == nil {
		return
	}

	proj, err := geo.ProjectOntoPath(fix, t.route.Geometry)
	if err != nil {
		t.log.Warn("failed to snap location fix", zap.Error(err))
		return
	}

	t.traveledPath = geo.SlicePath(t.route.Geometry, proj.DistanceAlongPath)

	// Off-route confirmation window: no step/instruction/ETA processing
	// while deviation is accumulating or once flagged.
	if proj.DistanceFromPath > t.cfg.OffRouteThresholdMeters {
		t.consecutiveOffRoute++
		if t.consecutiveOffRoute >= t.cfg.OffRouteConfirmationCount {
			t.consecutiveOffRoute = 0
			t.log.Info("off-route confirmed",
				zap.Float64("distance_from_route_m", proj.DistanceFromPath))
			if t.onOffRoute != nil {
				t.onOffRoute(fix)
			}
		}
		return
	}
	t.consecutiveOffRoute = 0

	spoke := t.advanceStep(proj.DistanceAlongPath)
	if !spoke {
		t.speakDueInstruction(proj.DistanceAlongPath)
	}

	if t.updateManeuverDistance(fix) {
		return // arrived, session state is being torn down
	}

	t.updateEstimates(proj.DistanceAlongPath)
}

// advanceStep finds the step whose cumulative-distance interval contains the
// progress point. Intervals are half-open [start, start+distance), so at an
// exact shared boundary the lower step wins. The step index never moves
// backwards within one route instance. Returns true when a step transition
// was announced.
func (t *Tracker) advanceStep(progress float64) bool {
	found := t.currentStepIndex
	for i, step := range t.steps {
		if progress >= t.stepStarts[i] && progress < t.stepStarts[i]+step.DistanceMeters {
			found = i
			break
		}
		if i == len(t.steps)-1 && progress >= t.stepStarts[i] {
			found = i
		}
	}

	if found <= t.currentStepIndex {
		return false
	}

	t.currentStepIndex = found
	t.announcementsMade = make(map[announcementKey]struct{})

	instruction := t.steps[found].Maneuver.Instruction
	if instruction != "" {
		t.displayedInstruction = instruction
		t.announcementsMade[announcementKey{found, instruction}] = struct{}{}
		t.announcer.Speak(instruction, true)
	}

	t.log.Debug("step advanced", zap.Int("step", found), zap.String("instruction", instruction))
	return true
}

// speakDueInstruction speaks at most one pending voice instruction whose
// trigger distance falls inside the activation window around the current
// progress within the step.
func (t *Tracker) speakDueInstruction(progress float64) {
	if t.currentStepIndex >= len(t.steps) {
		return
	}
	step := t.steps[t.currentStepIndex]
	progressInStep := progress - t.stepStarts[t.currentStepIndex]

	lower := progressInStep - t.cfg.ActivationBufferMeters
	upper := progressInStep + t.cfg.ToleranceMeters

	for _, vi := range step.VoiceInstructions {
		key := announcementKey{t.currentStepIndex, vi.Announcement}
		if _, done := t.announcementsMade[key]; done {
			continue
		}
		if vi.DistanceAlongGeometry >= lower && vi.DistanceAlongGeometry <= upper {
			t.displayedInstruction = vi.Announcement
			t.announcementsMade[key] = struct{}{}
			t.announcer.Speak(vi.Announcement, false)
			return
		}
	}
}

// updateManeuverDistance recomputes the distance to the next maneuver, or to
// the destination on the last step. Returns true when arrival was detected.
func (t *Tracker) updateManeuverDistance(fix geo.Point) bool {
	if t.currentStepIndex < len(t.steps)-1 {
		next := t.steps[t.currentStepIndex+1]
		t.distanceToNextManeuver = geo.Distance(fix, next.Maneuver.Location)
		return false
	}

	if len(t.route.Geometry) == 0 {
		return false
	}
	final := t.route.Geometry[len(t.route.Geometry)-1]
	t.distanceToNextManeuver = geo.Distance(fix, final)

	if t.distanceToNextManeuver < t.cfg.ArrivalThresholdMeters {
		t.state = StateArrived
		t.remainingDistance = 0
		t.remainingDuration = 0
		t.announcer.Speak(arrivalAnnouncement, true)
		t.log.Info("arrived at destination")
		if t.onArrive != nil {
			t.onArrive()
		}
		return true
	}
	return false
}

// updateEstimates recomputes remaining distance/duration and the ETA from
// the arc-length progress along the route.
func (t *Tracker) updateEstimates(progress float64) {
	if t.route.DistanceMeters <= 0 {
		return
	}

	t.remainingDistance = t.route.DistanceMeters - progress
	if t.remainingDistance < 0 {
		t.remainingDistance = 0
	}

	t.progressFraction = progress / t.route.DistanceMeters
	if t.progressFraction > 1 {
		t.progressFraction = 1
	}

	t.remainingDuration = t.route.DurationSeconds * (1 - t.progressFraction)
	if t.remainingDuration < 0 {
		t.remainingDuration = 0
	}
	t.estimatedArrival = t.now().Add(time.Duration(t.remainingDuration * float64(time.Second)))
}

// State returns the tracker's lifecycle state
func (t *Tracker) State() State {
	return t.state
}

// ProgressFraction returns the fraction of the current route already
// covered, in [0, 1]. Used to re-base estimates across a route swap.
func (t *Tracker) ProgressFraction() float64 {
	return t.progressFraction
}

// Route returns the route currently being tracked, nil when idle
func (t *Tracker) Route() *routing.Route {
	return t.route
}

// Status returns a copy of the externally visible navigation state
func (t *Tracker) Status() Status {
	path := make([]geo.Point, len(t.traveledPath))
	copy(path, t.traveledPath)

	return Status{
		State:                  t.state,
		CurrentStepIndex:       t.currentStepIndex,
		DisplayedInstruction:   t.displayedInstruction,
		DistanceToNextManeuver: t.distanceToNextManeuver,
		RemainingDistance:      t.remainingDistance,
		RemainingDuration:      t.remainingDuration,
		EstimatedArrival:       t.estimatedArrival,
		TraveledPath:           path,
	}
}

// cumulativeStepStarts computes the route distance covered before each step
func cumulativeStepStarts(steps []routing.Step) []float64 {
	starts := make([]float64, len(steps))
	total := 0.0
	for i, step := range steps {
		starts[i] = total
		total += step.DistanceMeters
	}
	return starts
}
