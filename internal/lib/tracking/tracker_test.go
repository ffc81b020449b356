package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YoannChhang/4proj-nav-engine/internal/lib/geo"
	"github.com/YoannChhang/4proj-nav-engine/internal/lib/routing"
)

// fakeAnnouncer records everything spoken
type fakeAnnouncer struct {
	spoken []string
}

func (f *fakeAnnouncer) Speak(text string, _ bool) {
	f.spoken = append(f.spoken, text)
}

// northboundRoute builds a two-step route running due north from
// 48.8500,2.3500: eleven geometry points 0.001° of latitude apart
// (~111 m per segment, ~1112 m total).
func northboundRoute() *routing.Route {
	var geometry []geo.Point
	for i := 0; i <= 10; i++ {
		geometry = append(geometry, geo.Point{Longitude: 2.3500, Latitude: 48.8500 + float64(i)*0.001})
	}

	step0Geom := geometry[:6]
	step1Geom := geometry[5:]

	steps := []routing.Step{
		{
			Maneuver: routing.Maneuver{
				Type:        "depart",
				Instruction: "Head north on Rue de Vaugirard",
				Location:    geometry[0],
			},
			Geometry:       step0Geom,
			DistanceMeters: geo.PathLength(step0Geom),
			VoiceInstructions: []routing.VoiceInstruction{
				{DistanceAlongGeometry: 400, Announcement: "In 150 meters, turn right"},
			},
		},
		{
			Maneuver: routing.Maneuver{
				Type:        "turn",
				Modifier:    "right",
				Instruction: "Turn right onto Boulevard Saint-Michel",
				Location:    geometry[5],
			},
			Geometry:       step1Geom,
			DistanceMeters: geo.PathLength(step1Geom),
		},
	}

	return &routing.Route{
		Legs:            []routing.Leg{{Steps: steps}},
		Geometry:        geometry,
		DistanceMeters:  geo.PathLength(geometry),
		DurationSeconds: 600,
	}
}

// pointAtFraction returns the on-route point the given fraction of the way
// along the route's geometry
func pointAtFraction(route *routing.Route, fraction float64) geo.Point {
	sliced := geo.SlicePath(route.Geometry, fraction*geo.PathLength(route.Geometry))
	return sliced[len(sliced)-1]
}

func newTestTracker(announcer *fakeAnnouncer) *Tracker {
	return NewTracker(zap.NewNop(), DefaultConfig(), announcer)
}

func TestStart_InitialState(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return start }

	tracker.Start(route)

	assert.Equal(t, StateActive, tracker.State())
	status := tracker.Status()
	assert.Equal(t, 0, status.CurrentStepIndex)
	assert.Equal(t, []geo.Point{route.Geometry[0]}, status.TraveledPath)
	assert.InDelta(t, route.DistanceMeters, status.RemainingDistance, 0.001)
	assert.InDelta(t, 600, status.RemainingDuration, 0.001)
	assert.Equal(t, start.Add(600*time.Second), status.EstimatedArrival)

	require.Equal(t, []string{"Head north on Rue de Vaugirard"}, announcer.spoken)
	assert.Equal(t, "Head north on Rue de Vaugirard", status.DisplayedInstruction)
}

func TestStart_PrefersZeroDistanceVoiceInstruction(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()
	route.Legs[0].Steps[0].VoiceInstructions = append(route.Legs[0].Steps[0].VoiceInstructions,
		routing.VoiceInstruction{DistanceAlongGeometry: 0, Announcement: "Drive north, then turn right"})

	tracker.Start(route)

	require.Equal(t, []string{"Drive north, then turn right"}, announcer.spoken)
}

func TestUpdate_ProgressAndEstimates(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()
	tracker.Start(route)

	fix := pointAtFraction(route, 0.3)
	tracker.Update(fix)

	status := tracker.Status()
	assert.Equal(t, 0, status.CurrentStepIndex, "30%% of the route is still within step 0")
	assert.InDelta(t, 0.7*route.DistanceMeters, status.RemainingDistance, 5)
	assert.InDelta(t, 0.7*600, status.RemainingDuration, 5)
	assert.InDelta(t, 0.3*route.DistanceMeters, geo.PathLength(status.TraveledPath), 5)
	assert.InDelta(t, 0.3, tracker.ProgressFraction(), 0.01)

	// Distance to the next maneuver is measured to step 1's maneuver point
	wantManeuverDist := geo.Distance(fix, route.Legs[0].Steps[1].Maneuver.Location)
	assert.InDelta(t, wantManeuverDist, status.DistanceToNextManeuver, 1)
}

func TestUpdate_StepTransitionAnnouncesImmediately(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()
	tracker.Start(route)

	tracker.Update(pointAtFraction(route, 0.6))

	status := tracker.Status()
	assert.Equal(t, 1, status.CurrentStepIndex)
	assert.Equal(t, "Turn right onto Boulevard Saint-Michel", status.DisplayedInstruction)
	assert.Equal(t, []string{
		"Head north on Rue de Vaugirard",
		"Turn right onto Boulevard Saint-Michel",
	}, announcer.spoken, "A step transition always produces exactly one announcement")
}

func TestUpdate_StepIndexNeverMovesBackwards(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	route := northboundRoute()
	tracker.Start(route)

	tracker.Update(pointAtFraction(route, 0.6))
	require.Equal(t, 1, tracker.Status().CurrentStepIndex)

	// A jittery fix behind the maneuver must not rewind the step
	tracker.Update(pointAtFraction(route, 0.45))
	assert.Equal(t, 1, tracker.Status().CurrentStepIndex)
}

func TestUpdate_VoiceInstructionWindow(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()
	tracker.Start(route)

	// Step 0's voice instruction triggers at 400 m along the step. A fix at
	// ~390 m progress puts the trigger inside [progress-30, progress+10].
	tracker.Update(pointAtFraction(route, 390/route.DistanceMeters))

	status := tracker.Status()
	require.Equal(t, 0, status.CurrentStepIndex)
	assert.Equal(t, "In 150 meters, turn right", status.DisplayedInstruction)
	assert.Contains(t, announcer.spoken, "In 150 meters, turn right")

	// The same instruction is never spoken twice within the step
	spokenBefore := len(announcer.spoken)
	tracker.Update(pointAtFraction(route, 395/route.DistanceMeters))
	assert.Len(t, announcer.spoken, spokenBefore)
}

func TestUpdate_VoiceInstructionOutsideWindowStaysSilent(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)
	route := northboundRoute()
	tracker.Start(route)

	// 200 m progress: the 400 m trigger is far outside [170, 210]
	tracker.Update(pointAtFraction(route, 200/route.DistanceMeters))
	assert.Equal(t, []string{"Head north on Rue de Vaugirard"}, announcer.spoken)
}

func TestUpdate_OffRouteConfirmation(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	route := northboundRoute()
	tracker.Start(route)

	var offRouteFires int
	tracker.SetOffRouteHandler(func(geo.Point) { offRouteFires++ })

	// ~150 m east of the route
	offRoute := geo.Point{Longitude: 2.3520, Latitude: 48.8520}

	tracker.Update(offRoute)
	assert.Equal(t, 0, offRouteFires, "First off-route fix only accumulates")
	tracker.Update(offRoute)
	assert.Equal(t, 0, offRouteFires, "Second off-route fix only accumulates")
	tracker.Update(offRoute)
	assert.Equal(t, 1, offRouteFires, "Third consecutive off-route fix confirms")

	assert.Equal(t, StateActive, tracker.State(), "Off-route does not change the tracker state")
}

func TestUpdate_InThresholdFixResetsOffRouteCounter(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	route := northboundRoute()
	tracker.Start(route)

	var offRouteFires int
	tracker.SetOffRouteHandler(func(geo.Point) { offRouteFires++ })

	offRoute := geo.Point{Longitude: 2.3520, Latitude: 48.8520}

	tracker.Update(offRoute)
	tracker.Update(offRoute)
	tracker.Update(pointAtFraction(route, 0.2)) // back on the road
	tracker.Update(offRoute)
	tracker.Update(offRoute)
	assert.Equal(t, 0, offRouteFires, "In-threshold fix resets the confirmation counter")

	tracker.Update(offRoute)
	assert.Equal(t, 1, offRouteFires)
}

func TestUpdate_OffRouteSkipsEstimateProcessing(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	route := northboundRoute()
	tracker.Start(route)

	tracker.Update(pointAtFraction(route, 0.3))
	remainingBefore := tracker.Status().RemainingDistance

	tracker.Update(geo.Point{Longitude: 2.3520, Latitude: 48.8560})
	assert.Equal(t, remainingBefore, tracker.Status().RemainingDistance,
		"No ETA update while the off-route window accumulates")
}

func TestUpdate_Arrival(t *testing.T) {
	announcer := &fakeAnnouncer{}
	tracker := newTestTracker(announcer)

	// Single-step route ending at 2.3522, 48.8566
	geometry := []geo.Point{
		{Longitude: 2.3500, Latitude: 48.8566},
		{Longitude: 2.3511, Latitude: 48.8566},
		{Longitude: 2.3522, Latitude: 48.8566},
	}
	route := &routing.Route{
		Legs: []routing.Leg{{Steps: []routing.Step{{
			Maneuver:       routing.Maneuver{Type: "arrive", Instruction: "You have arrived", Location: geometry[2]},
			Geometry:       geometry,
			DistanceMeters: geo.PathLength(geometry),
		}}}},
		Geometry:        geometry,
		DistanceMeters:  geo.PathLength(geometry),
		DurationSeconds: 120,
	}
	tracker.Start(route)

	var arrived bool
	tracker.SetArrivalHandler(func() { arrived = true })

	// ~37 m short of the destination: still active
	tracker.Update(geo.Point{Longitude: 2.3526, Latitude: 48.8568})
	assert.Equal(t, StateActive, tracker.State())
	assert.False(t, arrived)

	// ~13 m away: arrival
	tracker.Update(geo.Point{Longitude: 2.3523, Latitude: 48.8567})
	assert.Equal(t, StateArrived, tracker.State())
	assert.True(t, arrived)
	assert.Contains(t, announcer.spoken, arrivalAnnouncement)
	assert.Zero(t, tracker.Status().RemainingDistance)

	// Arrived sessions ignore further fixes
	tracker.Update(geo.Point{Longitude: 2.3500, Latitude: 48.8566})
	assert.Equal(t, StateArrived, tracker.State())
}

func TestRestart_RebasesEstimates(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	oldRoute := northboundRoute()
	oldRoute.DistanceMeters = geo.PathLength(oldRoute.Geometry)
	tracker.Start(oldRoute)

	// Drive 40% of the old route
	tracker.Update(pointAtFraction(oldRoute, 0.4))
	require.InDelta(t, 0.4, tracker.ProgressFraction(), 0.005)

	newRoute := northboundRoute()
	newRoute.DistanceMeters = 6500
	newRoute.DurationSeconds = 700

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return start }
	tracker.Restart(newRoute, tracker.ProgressFraction())

	status := tracker.Status()
	assert.InDelta(t, 3900, status.RemainingDistance, 40, "6500 × (1−0.4)")
	assert.InDelta(t, 420, status.RemainingDuration, 5, "700 × 0.6")
	assert.Equal(t, 0, status.CurrentStepIndex, "Step index resets with the new route instance")
	assert.Equal(t, []geo.Point{newRoute.Geometry[0]}, status.TraveledPath)
	assert.WithinDuration(t, start.Add(420*time.Second), status.EstimatedArrival, 5*time.Second)
}

func TestStop_ClearsState(t *testing.T) {
	tracker := newTestTracker(&fakeAnnouncer{})
	route := northboundRoute()
	tracker.Start(route)
	tracker.Update(pointAtFraction(route, 0.3))

	tracker.Stop()

	assert.Equal(t, StateIdle, tracker.State())
	status := tracker.Status()
	assert.Empty(t, status.TraveledPath)
	assert.Empty(t, status.DisplayedInstruction)
	assert.Zero(t, status.DistanceToNextManeuver)
	assert.Nil(t, tracker.Route())
}
