package vectara

import (
	"bytes"
	"encoding/json"
)

// CorpusKey addresses one corpus of one customer.
type CorpusKey struct {
	CustomerID     int64  `json:"customer_id"`
	CorpusID       int64  `json:"corpus_id"`
	MetadataFilter string `json:"metadata_filter,omitempty"`
}

// RerankingConfig selects a backend reranker.
type RerankingConfig struct {
	RerankerID int64 `json:"reranker_id"`
}

// Query is a single query of a /v1/query request.
type Query struct {
	Query           string           `json:"query"`
	NumResults      int              `json:"num_results"`
	CorpusKey       []CorpusKey      `json:"corpus_key"`
	RerankingConfig *RerankingConfig `json:"rerankingConfig,omitempty"`
	Start           *int             `json:"start,omitempty"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query []Query `json:"query"`
}

// Metadata is a name/value pair attached to responses and documents.
type Metadata struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts non-string values, keeping their JSON text.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Name = raw.Name
	m.Value = ""
	if len(raw.Value) == 0 || bytes.Equal(raw.Value, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw.Value, &m.Value); err != nil {
		m.Value = string(raw.Value)
	}
	return nil
}

// Response is one matching text section.
type Response struct {
	Text          string     `json:"text"`
	Score         float64    `json:"score"`
	Metadata      []Metadata `json:"metadata"`
	DocumentIndex int        `json:"documentIndex"`
}

// Document is a document referenced by responses.
type Document struct {
	ID       string     `json:"id"`
	Metadata []Metadata `json:"metadata"`
}

// Status is a backend status entry.
type Status struct {
	Code         string `json:"code"`
	StatusDetail string `json:"statusDetail"`
}

// ResponseSet holds the results of one query.
type ResponseSet struct {
	Response []Response `json:"response"`
	Status   []Status   `json:"status"`
	Document []Document `json:"document"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	ResponseSet []ResponseSet `json:"responseSet"`
	Status      []Status      `json:"status"`
}

// Section is one text section of an indexed document.
type Section struct {
	Text string `json:"text"`
}

// IndexDocument is a document uploaded through /v1/index. DocumentID must be
// unique within a corpus; the backend enforces it.
type IndexDocument struct {
	DocumentID   string    `json:"document_id"`
	Title        string    `json:"title"`
	MetadataJSON string    `json:"metadata_json"`
	Section      []Section `json:"section"`
}

// IndexRequest is the body of POST /v1/index.
type IndexRequest struct {
	CustomerID int64         `json:"customer_id"`
	CorpusID   int64         `json:"corpus_id"`
	Document   IndexDocument `json:"document"`
}
