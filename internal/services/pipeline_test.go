package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchbot/internal/search"
	"searchbot/internal/vectara"
)

// newVectaraServer serves the token, query and index endpoints. Indexed
// messages are answered back by the query endpoint, most recent last.
func newVectaraServer(t *testing.T) (*httptest.Server, *[]vectara.IndexRequest, *[]vectara.QueryRequest) {
	t.Helper()

	var indexed []vectara.IndexRequest
	var queries []vectara.QueryRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/index", func(w http.ResponseWriter, r *http.Request) {
		var req vectara.IndexRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		indexed = append(indexed, req)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req vectara.QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		queries = append(queries, req)

		set := vectara.ResponseSet{}
		for i, doc := range indexed {
			if i >= req.Query[0].NumResults {
				break
			}
			var metadata map[string]any
			assert.NoError(t, json.Unmarshal([]byte(doc.Document.MetadataJSON), &metadata))
			var parsed []vectara.Metadata
			for name, value := range metadata {
				parsed = append(parsed, vectara.Metadata{Name: name, Value: fmt.Sprint(value)})
			}
			set.Response = append(set.Response, vectara.Response{Text: doc.Document.Section[0].Text, DocumentIndex: i})
			set.Document = append(set.Document, vectara.Document{ID: doc.Document.DocumentID, Metadata: parsed})
		}

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(vectara.QueryResponse{ResponseSet: []vectara.ResponseSet{set}}))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &indexed, &queries
}

func TestIndexThenSearch(t *testing.T) {
	server, indexed, queries := newVectaraServer(t)
	client := vectara.NewClient(vectara.Config{
		AppID:       "app",
		AppSecret:   "secret",
		CustomerID:  1234,
		CorpusID:    7,
		AuthURL:     server.URL,
		ServingURL:  server.URL,
		IndexingURL: server.URL,
		Timeout:     5 * time.Second,
	})

	indexer := NewIndexService(client, client.CustomerID(), client.CorpusID(), "acme")
	for i, text := range []string{"flying to *Hawaii*", "back from Maui"} {
		ok, err := indexer.IndexMessage(context.Background(), InboundMessage{
			Channel:     "C1",
			ChannelType: "channel",
			User:        "U1",
			Text:        text,
			ClientMsgID: []string{"m1", "m2"}[i],
			EventTS:     []string{"1662000000.000100", "1662000100.000200"}[i],
			Type:        "message",
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Len(t, *indexed, 2)

	searcher := NewSearchService(client, false)

	state := search.NewConversationState("hawaii")
	result, err := searcher.Query(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, `flying to \*Hawaii\*`, result.Text)
	assert.Equal(t, "U1", result.Poster)
	assert.Equal(t, "https://acme.slack.com/archives/C1/p1662000000000100", result.Link)

	state.NumResults = 2
	result, err = searcher.Query(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "back from Maui", result.Text)
	assert.Equal(t, "https://acme.slack.com/archives/C1/p1662000100000200", result.Link)

	require.Len(t, *queries, 2)
	assert.Equal(t, 2, (*queries)[1].Query[0].NumResults)
}
