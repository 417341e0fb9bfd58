package refine

// ProgressSink receives progress notifications from long-running
// operations. Percentage is in [0, 100] and non-decreasing within one
// operation; the message is a human-readable stage description.
type ProgressSink interface {
	Report(percentage int, message string)
}

// ProgressFunc adapts a plain function to the ProgressSink interface.
type ProgressFunc func(percentage int, message string)

// Report implements ProgressSink.
func (f ProgressFunc) Report(percentage int, message string) {
	f(percentage, message)
}

// stageRunner wraps a ProgressSink with the pipeline's reporting
// contract: percentages are clamped to [0, 100] and never decrease, and
// a nil sink is tolerated so callers that do not care about progress can
// pass nothing.
type stageRunner struct {
	sink ProgressSink
	last int
}

func (r *stageRunner) report(percentage int, message string) {
	if r.sink == nil {
		return
	}
	if percentage < r.last {
		percentage = r.last
	}
	if percentage > 100 {
		percentage = 100
	}
	r.last = percentage
	r.sink.Report(percentage, message)
}
