package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/pkg/anthropic"
	"github.com/sells-group/inspect-cli/pkg/jina"
)

// fullRunAI answers the extraction prompt with findings and every other
// prompt with a synthesis judgment.
func fullRunAI() *mockAI {
	return &mockAI{respond: func(req anthropic.MessageRequest) string {
		if strings.Contains(req.System, "inspection report") {
			return findingsReply
		}
		return synthesisReply("$500 - $2,000", "High", "Medium")
	}}
}

// collectEvents returns a sink that appends under a lock; research-stage
// events arrive from concurrent goroutines.
func collectEvents(events *[]model.ProgressEvent) Sink {
	var mu sync.Mutex
	return func(ev model.ProgressEvent) {
		mu.Lock()
		*events = append(*events, ev)
		mu.Unlock()
	}
}

func TestRunEmitsExactlyOneCompletionEvent(t *testing.T) {
	store := &mockStore{}
	search := &mockSearch{results: []jina.SearchResult{{Title: "t", URL: "https://example.com", Description: "d"}}}
	p, _ := newTestPipeline(testConfig(), store, nil, fullRunAI(), search, nil)

	var events []model.ProgressEvent
	st := p.Run(context.Background(), []byte("%PDF-1.4 fake"), "run-1", collectEvents(&events))

	var complete []model.ProgressEvent
	for _, ev := range events {
		if ev.IsComplete {
			complete = append(complete, ev)
		}
	}
	require.Len(t, complete, 1)
	assert.Equal(t, st.FinalReport, complete[0].FinalReport)
	assert.NotEmpty(t, st.FinalReport)
	assert.Contains(t, st.FinalReport, "# Inspection Repair Cost Report")
}

func TestRunPersistsReport(t *testing.T) {
	store := &mockStore{}
	search := &mockSearch{}
	p, _ := newTestPipeline(testConfig(), store, nil, fullRunAI(), search, nil)

	st := p.Run(context.Background(), []byte("doc"), "run-1", nil)

	require.Len(t, store.saved, 1)
	rec := store.saved[0]
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, st.FinalReport, rec.FinalReport)
	assert.Equal(t, "123 Main St", rec.PropertyAddress)
	assert.Equal(t, model.RunStatusComplete, rec.Status)
}

func TestRunZeroFindingsSkipsResearchAndCompile(t *testing.T) {
	store := &mockStore{}
	ai := &mockAI{respond: func(req anthropic.MessageRequest) string {
		if strings.Contains(req.System, "inspection report") {
			return `{"property_address":"","inspection_date":"","issues":[]}`
		}
		t.Error("synthesis should not run with zero findings")
		return "{}"
	}}
	search := &mockSearch{}
	p, _ := newTestPipeline(testConfig(), store, nil, ai, search, nil)

	var events []model.ProgressEvent
	st := p.Run(context.Background(), []byte("doc"), "run-1", collectEvents(&events))

	assert.Empty(t, st.FinalReport)
	assert.Equal(t, 0, search.queryCount())

	require.Len(t, store.saved, 1)
	assert.Equal(t, model.RunStatusNoReport, store.saved[0].Status)

	last := events[len(events)-1]
	assert.True(t, last.IsComplete)
	assert.Empty(t, last.FinalReport)
}

func TestRunDegradesThroughEveryStageFault(t *testing.T) {
	// OCR fails, so extraction has no text, so there are no findings; the run
	// still reaches its terminal event.
	store := &mockStore{}
	extractor := &mockOCR{err: errors.New("pdftotext not installed")}
	ai := &mockAI{}
	p, _ := newTestPipeline(testConfig(), store, extractor, ai, nil, nil)

	var events []model.ProgressEvent
	st := p.Run(context.Background(), []byte("doc"), "run-1", collectEvents(&events))

	assert.Equal(t, 0, ai.callCount())
	assert.Empty(t, st.FinalReport)
	assert.True(t, events[len(events)-1].IsComplete)

	log := st.ProgressLog()
	assert.Contains(t, log[1], "Text extraction failed")
	assert.Equal(t, "Analysis complete", log[len(log)-1])
}

func TestRunEmptyDocumentBuffer(t *testing.T) {
	p, _ := newTestPipeline(testConfig(), nil, nil, &mockAI{}, nil, nil)

	var events []model.ProgressEvent
	st := p.Run(context.Background(), nil, "run-1", collectEvents(&events))

	assert.Empty(t, st.FinalReport)
	assert.True(t, events[len(events)-1].IsComplete)
	assert.Contains(t, st.ProgressLog()[1], "document buffer is empty")
}

func TestRunStoreFailureDoesNotBlockCompletion(t *testing.T) {
	store := &mockStore{saveErr: errors.New("disk full")}
	search := &mockSearch{}
	p, _ := newTestPipeline(testConfig(), store, nil, fullRunAI(), search, nil)

	var events []model.ProgressEvent
	st := p.Run(context.Background(), []byte("doc"), "run-1", collectEvents(&events))

	last := events[len(events)-1]
	assert.True(t, last.IsComplete)
	assert.NotEmpty(t, last.FinalReport)

	var warned bool
	for _, line := range st.ProgressLog() {
		if strings.Contains(line, "failed to save report") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunDegradedStatusWhenResearchSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Jina.Key = ""

	store := &mockStore{}
	p, _ := newTestPipeline(cfg, store, nil, fullRunAI(), nil, nil)

	st := p.Run(context.Background(), []byte("doc"), "run-1", nil)

	assert.NotEmpty(t, st.FinalReport)
	require.Len(t, store.saved, 1)
	assert.Equal(t, model.RunStatusDegraded, store.saved[0].Status)
}

func TestRunProgressLogOrdering(t *testing.T) {
	search := &mockSearch{}
	p, _ := newTestPipeline(testConfig(), nil, nil, fullRunAI(), search, nil)

	st := p.Run(context.Background(), []byte("doc"), "run-1", nil)

	log := st.ProgressLog()
	idx := func(substr string) int {
		for i, line := range log {
			if strings.Contains(line, substr) {
				return i
			}
		}
		t.Fatalf("log missing %q: %v", substr, log)
		return -1
	}

	start := idx("Starting analysis")
	extracted := idx("characters of text")
	analyzed := idx("Extracted 2 findings")
	research := idx("Researching 2 findings")
	compiled := idx("Report compiled")
	done := idx("Analysis complete")
	assert.True(t, start < extracted && extracted < analyzed && analyzed < research && research < compiled && compiled < done)
}

func TestRunPanickingSinkDoesNotAbort(t *testing.T) {
	search := &mockSearch{}
	p, _ := newTestPipeline(testConfig(), nil, nil, fullRunAI(), search, nil)

	st := p.Run(context.Background(), []byte("doc"), "run-1", func(model.ProgressEvent) {
		panic("observer bug")
	})

	assert.NotEmpty(t, st.FinalReport)
	assert.Equal(t, "Analysis complete", st.ProgressLog()[len(st.ProgressLog())-1])
}
