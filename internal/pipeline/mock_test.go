package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/inspect-cli/internal/config"
	"github.com/sells-group/inspect-cli/internal/model"
	"github.com/sells-group/inspect-cli/internal/store"
	"github.com/sells-group/inspect-cli/pkg/anthropic"
	"github.com/sells-group/inspect-cli/pkg/google"
	"github.com/sells-group/inspect-cli/pkg/jina"
)

// mockOCR returns fixed text for any document.
type mockOCR struct {
	text string
	err  error
}

func (m *mockOCR) ExtractText(context.Context, []byte) (string, error) {
	return m.text, m.err
}

// mockAI returns canned replies per request, or an error.
type mockAI struct {
	mu      sync.Mutex
	calls   int
	err     error
	respond func(req anthropic.MessageRequest) string
}

func (m *mockAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	text := "{}"
	if m.respond != nil {
		text = m.respond(req)
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

func (m *mockAI) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSearch records queries and returns a fixed result set, or fails for
// queries matched by failFor.
type mockSearch struct {
	mu      sync.Mutex
	queries []string
	err     error
	failFor func(query string) error
	results []jina.SearchResult
}

func (m *mockSearch) Search(_ context.Context, query string) (*jina.SearchResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.failFor != nil {
		if err := m.failFor(query); err != nil {
			return nil, err
		}
	}
	return &jina.SearchResponse{Code: 200, Data: m.results}, nil
}

func (m *mockSearch) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// mockPlaces returns fixed contractor hits.
type mockPlaces struct {
	mu     sync.Mutex
	calls  int
	err    error
	places []google.Place
}

func (m *mockPlaces) TextSearch(_ context.Context, _ string) (*google.TextSearchResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &google.TextSearchResponse{Places: m.places}, nil
}

// mockStore records saved reports.
type mockStore struct {
	mu      sync.Mutex
	saveErr error
	saved   []model.ReportRecord
}

func (m *mockStore) Migrate(context.Context) error { return nil }

func (m *mockStore) SaveReport(_ context.Context, rec model.ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *mockStore) GetReport(context.Context, string) (*model.ReportRecord, error) {
	return nil, nil
}

func (m *mockStore) ListReports(context.Context, int) ([]model.ReportRecord, error) {
	return nil, nil
}

func (m *mockStore) Close() error { return nil }

// sleepRecorder captures inter-batch delays instead of sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
}

func (r *sleepRecorder) delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.slept))
	copy(out, r.slept)
	return out
}

// testConfig returns a config with the production batch tuning and a search
// key set, so research runs its normal path against mocks.
func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 2048},
		Jina:      config.JinaConfig{Key: "test-key"},
		Extract:   config.ExtractConfig{MaxDocChars: 15000},
		Research: config.ResearchConfig{
			SearchBatchSize:       5,
			SearchBatchDelayMS:    2000,
			SynthesisBatchSize:    10,
			SynthesisBatchDelayMS: 500,
			SnippetCharBudget:     4000,
			CallTimeoutSecs:       60,
			MaxContractors:        3,
		},
	}
}

// newTestPipeline wires a pipeline over mocks with a recorded sleep.
func newTestPipeline(cfg *config.Config, st *mockStore, extractor *mockOCR, ai *mockAI, search jina.Client, places google.Client) (*Pipeline, *sleepRecorder) {
	rec := &sleepRecorder{}
	ex := extractor
	if ex == nil {
		ex = &mockOCR{text: "inspection text"}
	}
	// A typed nil *mockStore must become a nil interface, or the finish
	// stage would call methods on a nil receiver.
	var sink store.Store
	if st != nil {
		sink = st
	}
	p := New(cfg, sink, ex, ai, search, places)
	p.sleep = rec.sleep
	return p, rec
}

// findingsOf builds n synthetic findings.
func findingsOf(n int) []model.Finding {
	out := make([]model.Finding, n)
	for i := range out {
		out[i] = model.Finding{
			ID:          "finding-" + string(rune('a'+i)),
			Description: "issue " + string(rune('a'+i)),
		}
	}
	return out
}
