// Package segment defines the segmentation capability the rest of the
// system depends on. Backends are polymorphic over a single function
// contract, so classical and learned models sit behind the same
// signature; the package also keeps a registry of named backends and a
// built-in classical HU-threshold backend.
package segment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"volseg/pkg/refine"
	"volseg/pkg/roi"
	"volseg/pkg/volume"
)

// Stats describes one segmentation run.
type Stats struct {
	VoxelCount int
	Elapsed    time.Duration
	Backend    string

	// RoiShape is the shape of the sub-volume actually processed; Roi is
	// nil when the whole volume was segmented.
	RoiShape volume.Shape
	Roi      *roi.Box
}

// Segmenter is the segmentation capability. Segment produces a binary
// mask with the same shape as the input volume; when box is non-nil only
// that sub-volume is processed and the rest of the mask stays background.
// Progress is reported through sink, which may be nil.
type Segmenter interface {
	Name() string
	Segment(vol *volume.Volume, spacing volume.Spacing, origin volume.Origin,
		direction volume.Direction, box *roi.Box, sink refine.ProgressSink) (*volume.Mask, Stats, error)
}

// ExternalError wraps a failure bubbling up from a segmentation backend
// (for example an out-of-memory condition in an inference runtime). The
// core applies no retry or fallback policy; that belongs to the backend.
type ExternalError struct {
	Backend string
	Err     error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("segment: backend %q failed: %v", e.Backend, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// Factory constructs a fresh backend instance.
type Factory func() Segmenter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under its name. Typically called
// from a backend package's init. Registering a duplicate name panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("segment: backend %q registered twice", name))
	}
	registry[name] = factory
}

// New instantiates the named backend.
func New(name string) (Segmenter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("segment: unknown backend %q (available: %v)", name, Backends())
	}
	return factory(), nil
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
