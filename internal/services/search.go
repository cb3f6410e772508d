package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"searchbot/internal/markdown"
	"searchbot/internal/metrics"
	"searchbot/internal/search"
	"searchbot/internal/vectara"
)

// Searcher runs a search against the remote corpus.
type Searcher interface {
	Search(ctx context.Context, p vectara.SearchParams) (*vectara.QueryRequest, *vectara.QueryResponse, error)
}

// SearchService runs the query pipeline: build the query, search, and pick
// the result to show.
type SearchService struct {
	searcher    Searcher
	useReranker bool
}

// QueryResult is the result picked for a conversation state. Found is false
// when the backend returned nothing usable.
type QueryResult struct {
	State  search.ConversationState
	Found  bool
	Rerank bool

	Text      string
	Poster    string
	Channel   string
	Link      string
	Timestamp string
}

// NewSearchService creates a search service. When useReranker is set every
// search is reranked.
func NewSearchService(searcher Searcher, useReranker bool) *SearchService {
	return &SearchService{
		searcher:    searcher,
		useReranker: useReranker,
	}
}

// Query searches for state and picks the result to display.
func (s *SearchService) Query(ctx context.Context, state search.ConversationState) (*QueryResult, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	if state.NumResults < 1 {
		state.NumResults = 1
	}
	rerank := state.Rerank || s.useReranker

	slog.Info("Search query started",
		"query", state.Query,
		"num_results", state.NumResults,
		"rerank", rerank,
		"filters", len(state.Filters.Predicates()))

	_, resp, err := s.searcher.Search(ctx, vectara.SearchParams{
		Query:      state.Query,
		NumResults: state.NumResults,
		Rerank:     rerank,
		Filters:    state.Filters.Predicates(),
	})
	if err != nil && !errors.Is(err, vectara.ErrMalformedResponse) {
		metrics.QueriesProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if err != nil {
		slog.Warn("Search returned a malformed response", "error", err)
	}

	result := &QueryResult{State: state, Rerank: rerank}

	response, document, ok := pickResult(resp, state.NumResults, rerank)
	if !ok {
		slog.Info("No relevant results found", "query", state.Query)
		metrics.QueriesProcessed.WithLabelValues("empty").Inc()
		return result, nil
	}

	result.Found = true
	result.Text = markdown.Escape(response.Text)
	result.Link = vectara.MetadataValue(document.Metadata, "message_link")
	result.Poster = vectara.MetadataValue(document.Metadata, "poster")
	result.Channel = vectara.MetadataValue(document.Metadata, "channel")
	result.Timestamp = vectara.MetadataValue(document.Metadata, "timestamp")

	metrics.QueriesProcessed.WithLabelValues("success").Inc()
	return result, nil
}

// pickResult selects the response item to show. Asking for "more results"
// raises the requested count by one, so the newest result is the last item.
// A reranked search always returns a full page, so there the item is
// addressed by position instead.
func pickResult(resp *vectara.QueryResponse, numResults int, rerank bool) (vectara.Response, vectara.Document, bool) {
	if resp == nil || len(resp.ResponseSet) == 0 || len(resp.ResponseSet[0].Response) == 0 {
		return vectara.Response{}, vectara.Document{}, false
	}

	set := resp.ResponseSet[0]
	idx := len(set.Response) - 1
	if rerank && numResults < len(set.Response) {
		idx = numResults - 1
	}
	response := set.Response[idx]

	var document vectara.Document
	switch {
	case response.DocumentIndex >= 0 && response.DocumentIndex < len(set.Document):
		document = set.Document[response.DocumentIndex]
	case len(set.Document) > 0:
		document = set.Document[len(set.Document)-1]
	}

	return response, document, true
}
