// Package pipeline implements the inspection-report analysis pipeline: text
// extraction, finding extraction, batched cost research, and report
// compilation, sequenced by an explicit state machine.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/inspect-cli/internal/config"
	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/internal/ocr"
	"github.com/sells-group/inspect-cli/internal/store"
	"github.com/sells-group/inspect-cli/pkg/anthropic"
	"github.com/sells-group/inspect-cli/pkg/google"
	"github.com/sells-group/inspect-cli/pkg/jina"
)

// stage identifies one state of the analysis state machine.
type stage string

// Pipeline stages. done is the post-terminal sentinel; finish always runs.
const (
	stageStart           stage = "start"
	stageExtractText     stage = "extract_text"
	stageExtractFindings stage = "extract_findings"
	stageResearch        stage = "research_findings"
	stageCompile         stage = "compile_report"
	stageFinish          stage = "finish"
	stageDone            stage = ""
)

// handler runs one stage against the state and returns the next stage.
type handler func(ctx context.Context, st *State, sink Sink) stage

// Pipeline orchestrates the analysis of one inspection document.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	ocr    ocr.Extractor
	ai     anthropic.Client
	search jina.Client
	places google.Client

	// sleep paces inter-batch delays; replaced in tests.
	sleep func(time.Duration)
}

// New creates a Pipeline. search and places may be nil; the research stage
// degrades accordingly. st may be nil, in which case the final report is not
// persisted.
func New(cfg *config.Config, st store.Store, extractor ocr.Extractor, aiClient anthropic.Client, searchClient jina.Client, placesClient google.Client) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		ocr:    extractor,
		ai:     aiClient,
		search: searchClient,
		places: placesClient,
		sleep:  time.Sleep,
	}
}

// handlers is the state transition table.
func (p *Pipeline) handlers() map[stage]handler {
	return map[stage]handler{
		stageStart:           p.handleStart,
		stageExtractText:     p.handleExtractText,
		stageExtractFindings: p.handleExtractFindings,
		stageResearch:        p.handleResearch,
		stageCompile:         p.handleCompile,
		stageFinish:          p.handleFinish,
	}
}

// Run analyzes one document. Stage faults are absorbed into the progress log
// per the degraded-mode design, so Run has no error return; completion is
// signaled through the sink by exactly one event with IsComplete set. The
// final state is returned for callers that want direct access to the report
// and log.
func (p *Pipeline) Run(ctx context.Context, doc []byte, runID string, sink Sink) *State {
	st := NewState(runID, doc)
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting analysis", zap.Int("doc_bytes", len(doc)))

	table := p.handlers()
	for s := stageStart; s != stageDone; {
		next := table[s](ctx, st, sink)
		log.Debug("pipeline: transition",
			zap.String("from", string(s)),
			zap.String("to", string(next)),
		)
		s = next
	}

	log.Info("pipeline: analysis finished",
		zap.Int("findings", len(st.Findings)),
		zap.Bool("report_produced", st.FinalReport != ""),
	)
	return st
}

func (p *Pipeline) handleStart(_ context.Context, st *State, sink Sink) stage {
	p.emit(st, sink, fmt.Sprintf("Starting analysis run %s", st.RunID))
	return stageExtractText
}

func (p *Pipeline) handleExtractText(ctx context.Context, st *State, sink Sink) stage {
	if len(st.Document) == 0 {
		p.emit(st, sink, "Text extraction failed: document buffer is empty")
		return stageExtractFindings
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.CallTimeout())
	defer cancel()

	text, err := p.ocr.ExtractText(callCtx, st.Document)
	if err != nil {
		zap.L().Warn("pipeline: text extraction failed", zap.String("run_id", st.RunID), zap.Error(err))
		p.emit(st, sink, "Text extraction failed: "+err.Error())
		return stageExtractFindings
	}

	st.ExtractedText = text
	p.emit(st, sink, fmt.Sprintf("Extracted %d characters of text", len(text)))
	return stageExtractFindings
}

func (p *Pipeline) handleExtractFindings(ctx context.Context, st *State, sink Sink) stage {
	p.extractFindings(ctx, st, sink)
	if len(st.Findings) == 0 {
		// Zero findings: no report body is compiled; route straight to the
		// terminal stage with FinalReport left empty.
		return stageFinish
	}
	return stageResearch
}

func (p *Pipeline) handleResearch(ctx context.Context, st *State, sink Sink) stage {
	p.researchFindings(ctx, st, sink)
	return stageCompile
}

func (p *Pipeline) handleCompile(_ context.Context, st *State, sink Sink) stage {
	st.FinalReport = CompileReport(st.PropertyAddress, st.InspectionDate, st.Findings, st.Research())
	p.emit(st, sink, "Report compiled")
	return stageFinish
}

func (p *Pipeline) handleFinish(ctx context.Context, st *State, sink Sink) stage {
	status := model.RunStatusComplete
	switch {
	case st.FinalReport == "":
		status = model.RunStatusNoReport
	case st.Degraded():
		status = model.RunStatusDegraded
	}

	if p.store != nil {
		rec := model.ReportRecord{
			RunID:           st.RunID,
			FinalReport:     st.FinalReport,
			PropertyAddress: st.PropertyAddress,
			InspectionDate:  st.InspectionDate,
			Status:          status,
		}
		if err := p.store.SaveReport(ctx, rec); err != nil {
			// A sink failure is logged but never unwinds the run's own
			// success state: analysis itself finished.
			zap.L().Error("pipeline: failed to persist report",
				zap.String("run_id", st.RunID),
				zap.Error(err),
			)
			st.AppendLog("Warning: failed to save report: " + err.Error())
		}
	}

	st.AppendLog("Analysis complete")
	notify(sink, model.ProgressEvent{
		Message:     "Analysis complete",
		IsComplete:  true,
		FinalReport: st.FinalReport,
	})
	return stageDone
}
