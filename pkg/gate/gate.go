// Package gate tracks the single application state of an editing session
// and answers capability queries that keep long-running operations from
// overlapping or running out of order. The discipline is cooperative:
// callers consult the predicates before invoking work, the gate does not
// lock any data structures itself.
package gate

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInvalidState is returned when Transition is asked to enter a state
// outside the closed enumeration. This is a programming error: it cannot
// happen if callers honor the capability predicates.
var ErrInvalidState = errors.New("gate: invalid state")

// State is one of the closed set of session states. Exactly one state is
// active at a time; the machine is cyclic and re-enterable for the life
// of a session.
type State int

const (
	// Initial is the state before any volume has been loaded.
	Initial State = iota
	// VolumeLoaded means a volume is present and ROIs may be drawn.
	VolumeLoaded
	// Roi1Defined means the first rectangle exists; the second may now
	// be drawn. There is deliberately no Roi2Defined counterpart: the
	// machine goes straight to RoiDefined once both rectangles exist.
	Roi1Defined
	// RoiDefined means both rectangles exist and segmentation may run.
	RoiDefined
	// Segmenting means a segmentation job is in flight.
	Segmenting
	// MaskReady means a mask exists; refinement, saving and
	// re-segmentation are available.
	MaskReady
	// Refining means a refinement job is in flight.
	Refining
	// Saving means the mask is being persisted.
	Saving

	numStates // sentinel, keep last
)

var stateNames = [...]string{
	Initial:      "initial",
	VolumeLoaded: "volume_loaded",
	Roi1Defined:  "roi1_defined",
	RoiDefined:   "roi_defined",
	Segmenting:   "segmenting",
	MaskReady:    "mask_ready",
	Refining:     "refining",
	Saving:       "saving",
}

func (s State) String() string {
	if s < 0 || s >= numStates {
		return "invalid"
	}
	return stateNames[s]
}

// Affordance names used in capability snapshots. The rendering layer
// maps these to whatever widgets it owns; the gate knows nothing about
// presentation.
const (
	AffordanceLoad         = "load"
	AffordanceDrawRoi1     = "drawRoi1"
	AffordanceDrawRoi2     = "drawRoi2"
	AffordanceResetRoi     = "resetRoi"
	AffordanceSegment      = "segment"
	AffordanceRefine       = "refine"
	AffordanceResetMask    = "resetMask"
	AffordanceSave         = "save"
	AffordanceBrowseSlices = "browseSlices"
	AffordanceAdjustParams = "adjustParams"
)

// Capabilities maps affordance names to their enablement in a state.
type Capabilities map[string]bool

// Gate is the operation-gating state machine. It is safe for concurrent
// use: job completions typically transition it from worker goroutines.
type Gate struct {
	mu         sync.Mutex
	state      State
	callbacks  map[State]func()
	subscriber func(State, Capabilities)
	log        zerolog.Logger
}

// New returns a gate in the Initial state.
func New(log zerolog.Logger) *Gate {
	return &Gate{
		state:     Initial,
		callbacks: make(map[State]func()),
		log:       log,
	}
}

// Current returns the active state.
func (g *Gate) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnEnter registers a callback invoked exactly once per effective
// transition into the given state. It is not invoked when Transition is
// a no-op (target equals the current state).
func (g *Gate) OnEnter(s State, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks[s] = fn
}

// Subscribe registers a single subscriber that receives the new state
// and its capability snapshot after every effective transition.
func (g *Gate) Subscribe(fn func(State, Capabilities)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriber = fn
}

// Transition moves the gate to the target state. Transitioning to the
// current state is an idempotent no-op. An out-of-enum target fails with
// ErrInvalidState; there is no silent fallback.
func (g *Gate) Transition(target State) error {
	g.mu.Lock()
	if target < 0 || target >= numStates {
		g.mu.Unlock()
		return ErrInvalidState
	}
	if target == g.state {
		g.mu.Unlock()
		return nil
	}
	from := g.state
	g.state = target
	subscriber := g.subscriber
	callback := g.callbacks[target]
	g.mu.Unlock()

	g.log.Debug().
		Stringer("from", from).
		Stringer("to", target).
		Msg("state transition")

	if subscriber != nil {
		subscriber(target, capabilitiesFor(target))
	}
	if callback != nil {
		callback()
	}
	return nil
}

// CanLoadVolume reports whether loading a new volume is permitted: true
// in every state except while a job or save is in flight.
func (g *Gate) CanLoadVolume() bool {
	switch g.Current() {
	case Segmenting, Refining, Saving:
		return false
	}
	return true
}

// CanSegment reports whether a segmentation job may start. True only
// with a complete ROI or an existing mask (re-segmentation).
func (g *Gate) CanSegment() bool {
	s := g.Current()
	return s == RoiDefined || s == MaskReady
}

// CanRefine reports whether a refinement job may start.
func (g *Gate) CanRefine() bool {
	return g.Current() == MaskReady
}

// CanSave reports whether the mask may be persisted.
func (g *Gate) CanSave() bool {
	return g.Current() == MaskReady
}

// Snapshot returns the capability snapshot for the current state.
func (g *Gate) Snapshot() Capabilities {
	return capabilitiesFor(g.Current())
}

// capabilitiesFor derives the named-affordance enablement for a state.
// Busy states (Segmenting, Refining, Saving) disable everything except
// slice browsing, which stays available so the user can inspect data
// while work runs.
func capabilitiesFor(s State) Capabilities {
	caps := Capabilities{
		AffordanceLoad:         false,
		AffordanceDrawRoi1:     false,
		AffordanceDrawRoi2:     false,
		AffordanceResetRoi:     false,
		AffordanceSegment:      false,
		AffordanceRefine:       false,
		AffordanceResetMask:    false,
		AffordanceSave:         false,
		AffordanceBrowseSlices: false,
		AffordanceAdjustParams: false,
	}
	switch s {
	case Initial:
		caps[AffordanceLoad] = true
	case VolumeLoaded:
		caps[AffordanceLoad] = true
		caps[AffordanceDrawRoi1] = true
		caps[AffordanceResetRoi] = true
		caps[AffordanceBrowseSlices] = true
	case Roi1Defined:
		caps[AffordanceLoad] = true
		caps[AffordanceDrawRoi1] = true
		caps[AffordanceDrawRoi2] = true
		caps[AffordanceResetRoi] = true
		caps[AffordanceBrowseSlices] = true
	case RoiDefined:
		caps[AffordanceLoad] = true
		caps[AffordanceDrawRoi1] = true
		caps[AffordanceDrawRoi2] = true
		caps[AffordanceResetRoi] = true
		caps[AffordanceSegment] = true
		caps[AffordanceBrowseSlices] = true
	case MaskReady:
		caps[AffordanceLoad] = true
		caps[AffordanceDrawRoi1] = true
		caps[AffordanceDrawRoi2] = true
		caps[AffordanceResetRoi] = true
		caps[AffordanceSegment] = true
		caps[AffordanceRefine] = true
		caps[AffordanceResetMask] = true
		caps[AffordanceSave] = true
		caps[AffordanceBrowseSlices] = true
		caps[AffordanceAdjustParams] = true
	case Segmenting, Refining, Saving:
		caps[AffordanceBrowseSlices] = true
	}
	return caps
}
