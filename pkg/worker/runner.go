// Package worker executes long-running segmentation and refinement jobs
// off the calling goroutine and forwards progress, result and error
// events over channels. One runner admits a single job at a time,
// matching the session discipline of one in-flight operation per mask.
package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"volseg/pkg/refine"
	"volseg/pkg/roi"
	"volseg/pkg/segment"
	"volseg/pkg/volume"
)

// ErrBusy is returned by Submit while a previous job is still running.
var ErrBusy = errors.New("worker: a job is already in flight")

// Progress is one progress event from a running job.
type Progress struct {
	Percentage int
	Message    string
}

// Outcome is the result of a finished job. Exactly one of Refinement or
// Segmentation is set, according to the job kind.
type Outcome struct {
	Mask         *volume.Mask
	Refinement   *refine.Result
	Segmentation *segment.Stats
	Elapsed      time.Duration
}

// Job computes an outcome, reporting progress through the supplied sink.
// Jobs expose no cancellation point: a caller that loses interest simply
// stops reading the handle, and the eventual result is discarded.
type Job func(sink refine.ProgressSink) (Outcome, error)

// Handle exposes the event streams of a submitted job. Progress events
// may be dropped if the receiver lags; Done and Err each deliver at most
// one value, and Progress is closed when the job finishes.
type Handle struct {
	Progress <-chan Progress
	Done     <-chan Outcome
	Err      <-chan error
}

// Wait blocks until the job finishes and returns the outcome or error.
// Progress may be consumed concurrently (it is closed on completion) or
// ignored entirely; senders drop events once the buffer fills.
func (h *Handle) Wait() (Outcome, error) {
	select {
	case out := <-h.Done:
		return out, nil
	case err := <-h.Err:
		return Outcome{}, err
	}
}

// Runner executes jobs on dedicated goroutines, one at a time.
type Runner struct {
	log  zerolog.Logger
	mu   sync.Mutex
	busy bool
}

// New returns an idle runner.
func New(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

// Busy reports whether a job is currently in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Submit starts the job on a new goroutine and returns its handle.
// Fails with ErrBusy if a job is already running.
func (r *Runner) Submit(name string, job Job) (*Handle, error) {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.busy = true
	r.mu.Unlock()

	progress := make(chan Progress, 16)
	done := make(chan Outcome, 1)
	errs := make(chan error, 1)
	handle := &Handle{Progress: progress, Done: done, Err: errs}

	go func() {
		start := time.Now()
		r.log.Info().Str("job", name).Msg("job started")

		sink := refine.ProgressFunc(func(pct int, msg string) {
			// Drop events rather than stall the job on a slow receiver.
			select {
			case progress <- Progress{Percentage: pct, Message: msg}:
			default:
			}
		})

		outcome, err := job(sink)
		close(progress)
		elapsed := time.Since(start)

		// Release the runner before delivering the result, so a caller
		// that waited on the handle can submit again right away.
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()

		if err != nil {
			r.log.Error().Str("job", name).Dur("elapsed", elapsed).Err(err).Msg("job failed")
			errs <- err
			return
		}
		if outcome.Elapsed == 0 {
			outcome.Elapsed = elapsed
		}
		r.log.Info().Str("job", name).Dur("elapsed", elapsed).Msg("job finished")
		done <- outcome
	}()

	return handle, nil
}

// RefinementJob wraps one pipeline invocation as a Job.
func RefinementJob(pipeline *refine.Pipeline, mask *volume.Mask, vol *volume.Volume,
	spacing volume.Spacing, params refine.Params) Job {
	return func(sink refine.ProgressSink) (Outcome, error) {
		refined, result, err := pipeline.Refine(mask, vol, spacing, params, sink)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Mask: refined, Refinement: &result, Elapsed: result.Elapsed}, nil
	}
}

// SegmentationJob wraps one backend invocation as a Job. Backend errors
// are wrapped in segment.ExternalError.
func SegmentationJob(backend segment.Segmenter, vol *volume.Volume, spacing volume.Spacing,
	origin volume.Origin, direction volume.Direction, box *roi.Box) Job {
	return func(sink refine.ProgressSink) (Outcome, error) {
		mask, stats, err := backend.Segment(vol, spacing, origin, direction, box, sink)
		if err != nil {
			return Outcome{}, &segment.ExternalError{Backend: backend.Name(), Err: err}
		}
		return Outcome{Mask: mask, Segmentation: &stats, Elapsed: stats.Elapsed}, nil
	}
}
