package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/inspect-cli/internal/ocr"
	"github.com/sells-group/inspect-cli/internal/pipeline"
	"github.com/sells-group/inspect-cli/internal/store"
	anthropicpkg "github.com/sells-group/inspect-cli/pkg/anthropic"
	"github.com/sells-group/inspect-cli/pkg/google"
	"github.com/sells-group/inspect-cli/pkg/jina"
)

// initStore opens the configured report store.
func initStore() (store.Store, error) {
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// pipelineEnv bundles a constructed pipeline with its closable resources.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initPipeline builds the full pipeline from config. The search and places
// clients are optional; without them the research stage degrades.
func initPipeline() (*pipelineEnv, error) {
	st, err := initStore()
	if err != nil {
		return nil, err
	}

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init ocr")
	}

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var searchClient jina.Client
	if cfg.Jina.Key != "" {
		searchClient = jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}

	var placesClient google.Client
	if cfg.Google.Key != "" {
		placesClient = google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
	}

	p := pipeline.New(cfg, st, extractor, aiClient, searchClient, placesClient)
	return &pipelineEnv{Pipeline: p, Store: st}, nil
}
