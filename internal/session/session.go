// Package session ties the editing-session collaborators together: the
// operation gate, the ROI combiner, the refinement pipeline, the job
// runner and the segmentation backends. It owns the long-lived gate and
// enforces the one-job-at-a-time discipline by checking capability
// predicates before launching work and transitioning the gate around
// job start, completion and failure.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"volseg/pkg/gate"
	"volseg/pkg/refine"
	"volseg/pkg/roi"
	"volseg/pkg/segment"
	"volseg/pkg/volume"
	"volseg/pkg/worker"
)

// ErrNotAllowed is returned when an operation is requested in a state
// that does not permit it.
var ErrNotAllowed = errors.New("session: operation not permitted in current state")

// ErrRectTooSmall is returned for ROI rectangles below the minimum
// drawing size; they are rejected before reaching the combiner.
var ErrRectTooSmall = errors.New("session: ROI rectangle below minimum size")

// ErrNoVolume is returned when an operation needs a loaded volume.
var ErrNoVolume = errors.New("session: no volume loaded")

// Session is one mask-editing session over a single volume.
type Session struct {
	log      zerolog.Logger
	gate     *gate.Gate
	rois     *roi.Combiner
	pipeline *refine.Pipeline
	runner   *worker.Runner

	mu               sync.Mutex
	vol              *volume.Volume
	mask             *volume.Mask
	baseMask         *volume.Mask
	lastRefinement   *refine.Result
	lastSegmentation *segment.Stats
}

// New returns a session in the initial state.
func New(log zerolog.Logger) *Session {
	return &Session{
		log:      log,
		gate:     gate.New(log),
		rois:     &roi.Combiner{},
		pipeline: refine.NewPipeline(),
		runner:   worker.New(log),
	}
}

// Gate exposes the operation gate for capability queries and snapshot
// subscriptions.
func (s *Session) Gate() *gate.Gate { return s.gate }

// Volume returns the loaded volume, or nil.
func (s *Session) Volume() *volume.Volume {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vol
}

// Mask returns the current mask, or nil.
func (s *Session) Mask() *volume.Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}

// LastRefinement returns the statistics of the most recent refinement,
// or nil.
func (s *Session) LastRefinement() *refine.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefinement
}

// LastSegmentation returns the statistics of the most recent
// segmentation, or nil.
func (s *Session) LastSegmentation() *segment.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSegmentation
}

// DescribeRois returns the human-readable ROI summary.
func (s *Session) DescribeRois() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rois.Describe()
}

// LoadVolume installs a new volume, discarding any mask and ROIs from a
// previous one.
func (s *Session) LoadVolume(v *volume.Volume) error {
	if !s.gate.CanLoadVolume() {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	s.mu.Lock()
	s.vol = v
	s.mask = nil
	s.baseMask = nil
	s.lastRefinement = nil
	s.lastSegmentation = nil
	s.rois.Reset()
	s.mu.Unlock()

	s.log.Info().Stringer("shape", v.Shape).Msg("volume loaded")
	return s.gate.Transition(gate.VolumeLoaded)
}

// SetFirstRoi records the first rectangle. Rectangles below the minimum
// drawing size are rejected here, mirroring the interactive drawing
// layer's guard.
func (s *Session) SetFirstRoi(r roi.Rect) error {
	if !s.gate.Snapshot()[gate.AffordanceDrawRoi1] {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	if !r.LargeEnough() {
		return fmt.Errorf("%w: %s", ErrRectTooSmall, r)
	}
	s.mu.Lock()
	s.rois.SetFirst(r)
	both := s.rois.HasBoth()
	s.mu.Unlock()

	if both {
		return s.gate.Transition(gate.RoiDefined)
	}
	return s.gate.Transition(gate.Roi1Defined)
}

// SetSecondRoi records the second rectangle; once both exist the gate
// moves to RoiDefined.
func (s *Session) SetSecondRoi(r roi.Rect) error {
	if !s.gate.Snapshot()[gate.AffordanceDrawRoi2] {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	if !r.LargeEnough() {
		return fmt.Errorf("%w: %s", ErrRectTooSmall, r)
	}
	s.mu.Lock()
	s.rois.SetSecond(r)
	both := s.rois.HasBoth()
	s.mu.Unlock()

	if both {
		return s.gate.Transition(gate.RoiDefined)
	}
	return nil
}

// ResetRois forgets both rectangles and returns the gate to
// VolumeLoaded.
func (s *Session) ResetRois() error {
	if !s.gate.Snapshot()[gate.AffordanceResetRoi] {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	s.mu.Lock()
	s.rois.Reset()
	s.mu.Unlock()
	return s.gate.Transition(gate.VolumeLoaded)
}

// AdoptMask installs an externally produced mask (for example one loaded
// from disk by an I/O collaborator) and moves the session to MaskReady.
func (s *Session) AdoptMask(m *volume.Mask) error {
	if !s.gate.CanLoadVolume() {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	s.mu.Lock()
	if s.vol == nil {
		s.mu.Unlock()
		return ErrNoVolume
	}
	if !m.Shape.Equal(s.vol.Shape) {
		shape := s.vol.Shape
		s.mu.Unlock()
		return fmt.Errorf("%w: mask %s, volume %s", volume.ErrShapeMismatch, m.Shape, shape)
	}
	s.mask = m
	s.baseMask = nil
	s.mu.Unlock()
	return s.gate.Transition(gate.MaskReady)
}

// Segment launches a segmentation job on the runner. When both ROI
// rectangles exist their combined box restricts the backend to that
// sub-volume; otherwise the whole volume is segmented. On success the
// session adopts the produced mask and the gate moves to MaskReady; on
// failure the gate returns to the pre-job state.
func (s *Session) Segment(backend segment.Segmenter) (*worker.Handle, error) {
	if !s.gate.CanSegment() {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}

	s.mu.Lock()
	vol := s.vol
	var box *roi.Box
	if s.rois.HasBoth() {
		combined, err := s.rois.Combine(vol.Shape)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		box = &combined
	}
	s.mu.Unlock()

	prev := s.gate.Current()
	if err := s.gate.Transition(gate.Segmenting); err != nil {
		return nil, err
	}

	inner := worker.SegmentationJob(backend, vol, vol.Spacing, vol.Origin, vol.Direction, box)
	job := func(sink refine.ProgressSink) (worker.Outcome, error) {
		out, err := inner(sink)
		if err != nil {
			s.failSegmentation(err)
			return out, err
		}
		s.adoptSegmentation(out)
		return out, nil
	}

	handle, err := s.runner.Submit("segmentation", job)
	if err != nil {
		s.gate.Transition(prev)
		return nil, err
	}
	return handle, nil
}

// Refine launches a refinement job over the current mask. On success the
// refined mask replaces the current one (the previous mask is kept for
// ResetMask) and the gate returns to MaskReady.
func (s *Session) Refine(params refine.Params) (*worker.Handle, error) {
	if !s.gate.CanRefine() {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}

	s.mu.Lock()
	vol := s.vol
	mask := s.mask
	s.mu.Unlock()

	if err := s.gate.Transition(gate.Refining); err != nil {
		return nil, err
	}

	inner := worker.RefinementJob(s.pipeline, mask, vol, vol.Spacing, params)
	job := func(sink refine.ProgressSink) (worker.Outcome, error) {
		out, err := inner(sink)
		if err != nil {
			s.failRefinement(err)
			return out, err
		}
		s.adoptRefinement(mask, out)
		return out, nil
	}

	handle, err := s.runner.Submit("refinement", job)
	if err != nil {
		s.gate.Transition(gate.MaskReady)
		return nil, err
	}
	return handle, nil
}

// ResetMask restores the mask that was current before the last
// refinement.
func (s *Session) ResetMask() error {
	if !s.gate.Snapshot()[gate.AffordanceResetMask] {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseMask == nil {
		return errors.New("session: no previous mask to restore")
	}
	s.mask = s.baseMask
	s.baseMask = nil
	s.lastRefinement = nil
	s.log.Info().Msg("mask reset to pre-refinement state")
	return nil
}

// Save hands the current mask to a persistence collaborator while the
// gate is in Saving, then returns to MaskReady. The mask format and
// destination are entirely the collaborator's concern.
func (s *Session) Save(persist func(*volume.Mask) error) error {
	if !s.gate.CanSave() {
		return fmt.Errorf("%w: %s", ErrNotAllowed, s.gate.Current())
	}
	if err := s.gate.Transition(gate.Saving); err != nil {
		return err
	}

	s.mu.Lock()
	mask := s.mask
	s.mu.Unlock()

	err := persist(mask)
	if terr := s.gate.Transition(gate.MaskReady); terr != nil {
		return terr
	}
	if err != nil {
		return fmt.Errorf("session: save failed: %w", err)
	}
	s.log.Info().Int("voxels", mask.Count()).Msg("mask saved")
	return nil
}

// MaskDifference compares the pre-refinement mask with the current one.
func (s *Session) MaskDifference() (volume.Difference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseMask == nil || s.mask == nil {
		return volume.Difference{}, errors.New("session: need a refined mask to compare")
	}
	return volume.Compare(s.baseMask, s.mask)
}

func (s *Session) adoptSegmentation(out worker.Outcome) {
	s.mu.Lock()
	s.mask = out.Mask
	s.baseMask = nil
	s.lastSegmentation = out.Segmentation
	s.lastRefinement = nil
	s.mu.Unlock()
	s.gate.Transition(gate.MaskReady)
}

func (s *Session) failSegmentation(err error) {
	s.log.Error().Err(err).Msg("segmentation failed")
	s.mu.Lock()
	hasMask := s.mask != nil
	hasRois := s.rois.HasBoth()
	s.mu.Unlock()
	switch {
	case hasMask:
		s.gate.Transition(gate.MaskReady)
	case hasRois:
		s.gate.Transition(gate.RoiDefined)
	default:
		s.gate.Transition(gate.VolumeLoaded)
	}
}

func (s *Session) adoptRefinement(previous *volume.Mask, out worker.Outcome) {
	s.mu.Lock()
	s.baseMask = previous
	s.mask = out.Mask
	s.lastRefinement = out.Refinement
	s.mu.Unlock()
	s.gate.Transition(gate.MaskReady)
}

func (s *Session) failRefinement(err error) {
	s.log.Error().Err(err).Msg("refinement failed")
	s.gate.Transition(gate.MaskReady)
}
