// Package search keeps a full-text Elasticsearch index of loaded documents
// next to the relational store.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	unga "github.com/carlohamalainen/un-ga-documents-go"
)

const DefaultIndex = "unga-documents"

// Document is the indexed shape of a documents row.
type Document struct {
	Symbol   string `json:"symbol"`
	DocType  string `json:"doc_type"`
	Session  int    `json:"session,omitempty"`
	Title    string `json:"title,omitempty"`
	Date     string `json:"date,omitempty"`
	BodyText string `json:"body_text,omitempty"`
}

type Hit struct {
	Document
	Score float64 `json:"score"`
}

type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

type Client struct {
	es    *elasticsearch.Client
	index string
}

func New(addresses []string, index string) (*Client, error) {
	if index == "" {
		index = DefaultIndex
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: index}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

func errorBody(res *esapi.Response) string {
	body, _ := io.ReadAll(res.Body)
	return strings.TrimSpace(string(body))
}

// IndexDocument writes doc under its filename-safe symbol, replacing any
// earlier version.
func (c *Client) IndexDocument(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: unga.SymbolFilename(doc.Symbol),
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.Symbol, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index %s failed: %s", doc.Symbol, errorBody(res))
	}

	slog.Debug("indexed", "symbol", doc.Symbol, "index", c.index)
	return nil
}

// Search runs a multi_match over title and body text.
func (c *Client) Search(ctx context.Context, q string, size int) (*Result, error) {
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}

	body := map[string]any{
		"size":             size,
		"track_total_hits": true,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"title^2", "body_text", "symbol"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", errorBody(res))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &Result{Total: parsed.Hits.Total.Value, Hits: make([]Hit, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	return out, nil
}
