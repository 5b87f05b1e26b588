package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/inspect-cli/internal/model"
)

// Sink receives progress events during a run. The sink is fire-and-forget:
// it is invoked synchronously but its failures never affect pipeline state.
type Sink func(model.ProgressEvent)

// emit appends a line to the progress log and notifies the sink.
func (p *Pipeline) emit(st *State, sink Sink, msg string) {
	st.AppendLog(msg)
	notify(sink, model.ProgressEvent{Message: msg})
}

// notify invokes the sink, absorbing panics so a misbehaving observer cannot
// take down the run.
func notify(sink Sink, ev model.ProgressEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("pipeline: progress sink panicked", zap.Any("panic", r))
		}
	}()
	sink(ev)
}
