package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"searchbot/internal/logging"
	"searchbot/internal/search"
	"searchbot/internal/services"
)

// maxNumResults caps the result number an API caller can ask for; the
// backend's page size when reranking.
const maxNumResults = 100

type Querier interface {
	Query(ctx context.Context, state search.ConversationState) (*services.QueryResult, error)
}

type QueryHandler struct {
	querier Querier
	timeout time.Duration
}

type QueryFilters struct {
	Channel   string `json:"channel,omitempty"`
	User      string `json:"user,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type QueryRequest struct {
	Query      string       `json:"query"`
	NumResults int          `json:"num_results,omitempty"`
	Rerank     bool         `json:"rerank,omitempty"`
	Filters    QueryFilters `json:"filters"`
}

type QueryResponse struct {
	Query     string `json:"query"`
	Found     bool   `json:"found"`
	Rerank    bool   `json:"rerank"`
	Result    int    `json:"result"`
	Text      string `json:"text,omitempty"`
	Poster    string `json:"poster,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Link      string `json:"link,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func NewQueryHandler(querier Querier, timeout time.Duration) *QueryHandler {
	return &QueryHandler{querier: querier, timeout: timeout}
}

// HandleQuery runs the same query pipeline as the Slack bot and returns the
// picked result as JSON.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	logger := logging.LoggerFromContext(r.Context())

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("Error decoding query request", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if req.Query == "" {
		http.Error(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}

	state, err := req.conversationState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.querier.Query(ctx, state)
	if err != nil {
		logger.Error("Error processing query", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	response := QueryResponse{
		Query:  state.Query,
		Found:  result.Found,
		Rerank: result.Rerank,
		Result: state.NumResults,
	}
	if result.Found {
		response.Text = result.Text
		response.Poster = result.Poster
		response.Channel = result.Channel
		response.Link = result.Link
		response.Timestamp = result.Timestamp
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

func (req QueryRequest) conversationState() (search.ConversationState, error) {
	state := search.NewConversationState(req.Query)
	state.Rerank = req.Rerank
	if req.NumResults > 0 {
		state.NumResults = min(req.NumResults, maxNumResults)
	}

	state.Filters.Channel = req.Filters.Channel
	state.Filters.User = req.Filters.User
	if req.Filters.StartDate != "" {
		start, err := search.ParseDate(req.Filters.StartDate)
		if err != nil {
			return state, err
		}
		state.Filters.Start = &start
	}
	if req.Filters.EndDate != "" {
		end, err := search.ParseDate(req.Filters.EndDate)
		if err != nil {
			return state, err
		}
		state.Filters.End = &end
	}
	return state, nil
}
