// Package vectara is a small client for the Vectara query and indexing REST
// APIs, authenticated with OAuth2 client credentials.
package vectara

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"searchbot/internal/metrics"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultServingURL  = "https://h.serving.vectara.io"
	DefaultIndexingURL = "https://h.indexing.vectara.io"
	DefaultRerankerID  = 272725717
	DefaultTimeout     = 15 * time.Second

	// rerankPageSize is how many results are requested whenever reranking
	// is on; the caller picks the result it wants from the full page.
	rerankPageSize = 100
)

// ErrMalformedResponse is returned when the query endpoint answers with
// something that is not a JSON query response.
var ErrMalformedResponse = errors.New("malformed query response")

// DefaultAuthURL is the token host for a customer.
func DefaultAuthURL(customerID int64) string {
	return fmt.Sprintf("https://vectara-prod-%d.auth.us-west-2.amazoncognito.com", customerID)
}

// Config configures a Client.
type Config struct {
	AppID      string
	AppSecret  string
	CustomerID int64
	CorpusID   int64

	AuthURL     string
	ServingURL  string
	IndexingURL string
	RerankerID  int64
	Timeout     time.Duration
}

// Client talks to one customer's corpus.
type Client struct {
	cfg        Config
	httpClient *http.Client
	oauth      *clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// NewClient creates a client, filling unset endpoints with the public defaults.
func NewClient(cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL(cfg.CustomerID)
	}
	if cfg.ServingURL == "" {
		cfg.ServingURL = DefaultServingURL
	}
	if cfg.IndexingURL == "" {
		cfg.IndexingURL = DefaultIndexingURL
	}
	if cfg.RerankerID == 0 {
		cfg.RerankerID = DefaultRerankerID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		oauth: &clientcredentials.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			TokenURL:     strings.TrimRight(cfg.AuthURL, "/") + "/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
	}
}

// CustomerID returns the customer the client is bound to.
func (c *Client) CustomerID() int64 {
	return c.cfg.CustomerID
}

// CorpusID returns the corpus the client searches.
func (c *Client) CorpusID() int64 {
	return c.cfg.CorpusID
}

// Authenticate returns a bearer token, fetching a new one with the client
// credentials grant when the cached one has expired. Failures are returned
// as *AuthError and are not retried.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Token(ctx)
	if err != nil {
		metrics.VectaraAuthFailures.Inc()
		return "", newAuthError(err)
	}

	c.token = token
	return token.AccessToken, nil
}

// SearchParams describes one search.
type SearchParams struct {
	Query      string
	NumResults int
	Rerank     bool
	Filters    []string
}

// BuildQuery builds the request envelope for p. Reranking always asks for a
// full page starting at zero, whatever count was requested.
func (c *Client) BuildQuery(p SearchParams) *QueryRequest {
	q := Query{
		Query:      p.Query,
		NumResults: p.NumResults,
		CorpusKey: []CorpusKey{{
			CustomerID: c.cfg.CustomerID,
			CorpusID:   c.cfg.CorpusID,
		}},
	}

	if p.Rerank {
		start := 0
		q.RerankingConfig = &RerankingConfig{RerankerID: c.cfg.RerankerID}
		q.Start = &start
		q.NumResults = rerankPageSize
	}

	if len(p.Filters) > 0 {
		q.CorpusKey[0].MetadataFilter = strings.Join(p.Filters, " AND ")
	}

	return &QueryRequest{Query: []Query{q}}
}

// Search runs a query and returns the request that was sent together with
// the decoded response. The response shape is not validated.
func (c *Client) Search(ctx context.Context, p SearchParams) (*QueryRequest, *QueryResponse, error) {
	req := c.BuildQuery(p)

	resp, body, err := c.post(ctx, "query", c.cfg.ServingURL+"/v1/query", req)
	if err != nil {
		return req, nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Vectara query returned non-200 status",
			"status_code", resp.StatusCode,
			"body", string(body))
	}

	var result QueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return req, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return req, &result, nil
}

// IndexParams describes one document upload.
type IndexParams struct {
	CustomerID int64
	CorpusID   int64
	Text       string
	ID         string
	Title      string
	Metadata   any
}

// IndexMessage uploads a single-section document. A non-200 answer is
// logged and reported as false; only transport failures return an error.
func (c *Client) IndexMessage(ctx context.Context, p IndexParams) (bool, error) {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document metadata: %w", err)
	}

	req := IndexRequest{
		CustomerID: p.CustomerID,
		CorpusID:   p.CorpusID,
		Document: IndexDocument{
			DocumentID:   p.ID,
			Title:        p.Title,
			MetadataJSON: string(metadataJSON),
			Section:      []Section{{Text: p.Text}},
		},
	}

	resp, body, err := c.post(ctx, "index", c.cfg.IndexingURL+"/v1/index", req)
	if err != nil {
		return false, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("REST upload failed",
			"status_code", resp.StatusCode,
			"reason", http.StatusText(resp.StatusCode),
			"body", string(body),
			"document_id", p.ID)
		return false, nil
	}

	return true, nil
}

func (c *Client) post(ctx context.Context, operation, url string, payload any) (*http.Response, []byte, error) {
	start := time.Now()
	defer func() {
		metrics.VectaraAPICallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	token, err := c.Authenticate(ctx)
	if err != nil {
		metrics.VectaraAPICalls.WithLabelValues(operation, "auth_error").Inc()
		return nil, nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("customer-id", strconv.FormatInt(c.cfg.CustomerID, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.VectaraAPICalls.WithLabelValues(operation, "error").Inc()
		return nil, nil, fmt.Errorf("failed to call Vectara %s API: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.VectaraAPICalls.WithLabelValues(operation, "error").Inc()
		return nil, nil, fmt.Errorf("failed to read Vectara %s response: %w", operation, err)
	}

	metrics.VectaraAPICalls.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, body, nil
}
