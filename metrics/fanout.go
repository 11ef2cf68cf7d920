package metrics

import "medextract/pipeline"

// Fanout forwards every summary to each recorder in order.
type Fanout []pipeline.RunRecorder

// RecordRun implements pipeline.RunRecorder.
func (f Fanout) RecordRun(summary pipeline.RunSummary) {
	for _, r := range f {
		if r != nil {
			r.RecordRun(summary)
		}
	}
}
