// Package elastic indexes expenses into Elasticsearch for ad-hoc search
// and dashboards.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/sinks"
)

var _ sinks.Sink = (*Client)(nil)

const (
	flushBytes  = 2048
	bulkWorkers = 4
	maxRetries  = 5
)

const mapping = `{
  "mappings": {
    "properties": {
      "userId":      {"type": "keyword"},
      "id":          {"type": "keyword"},
      "name":        {"type": "text"},
      "category":    {"type": "keyword"},
      "date":        {"type": "date", "format": "yyyy-MM-dd"},
      "month":       {"type": "keyword"},
      "amountCents": {"type": "long"},
      "amount":      {"type": "scaled_float", "scaling_factor": 100}
    }
  }
}`

type Client struct {
	es     *elasticsearch.Client
	index  string
	logger *applog.Logger
}

// New builds a client that retries 429 and 5xx gateway statuses with
// exponential backoff.
func New(addresses []string, index string, logger *applog.Logger) (*Client, error) {
	if len(addresses) == 0 {
		addresses = []string{"http://localhost:9200"}
	}
	retryBackoff := backoff.NewExponentialBackOff()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     addresses,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: index, logger: logger.WithComponent(applog.ComponentSinks)}, nil
}

func (c *Client) Name() string { return "elasticsearch" }

// EnsureIndex creates the index with its mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
		c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return checkResponse(res, "create index")
}

func (c *Client) Append(ctx context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	body, err := json.Marshal(sinks.NewDocument(userID, e))
	if err != nil {
		return err
	}
	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithDocumentID(sinks.DocumentID(userID, e.ID)),
		c.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index expense: %w", err)
	}
	return checkResponse(res, "index expense")
}

func (c *Client) Delete(ctx context.Context, userID, expenseID string) error {
	res, err := c.es.Delete(c.index, sinks.DocumentID(userID, expenseID), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete expense")
}

// Resync drops the user's documents and bulk indexes records.
func (c *Client) Resync(ctx context.Context, userID string, records []core.Expense) error {
	query, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"userId": userID}},
	})
	if err != nil {
		return err
	}
	res, err := c.es.DeleteByQuery([]string{c.index}, bytes.NewReader(query),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true))
	if err != nil {
		return fmt.Errorf("delete user documents: %w", err)
	}
	if err := checkResponse(res, "delete user documents"); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         c.index,
		Client:        c.es,
		NumWorkers:    bulkWorkers,
		FlushBytes:    flushBytes,
		FlushInterval: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	for _, e := range records {
		data, err := json.Marshal(sinks.NewDocument(userID, e))
		if err != nil {
			return err
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: sinks.DocumentID(userID, e.ID),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					c.logger.ErrorContext(ctx, "Bulk index failed", applog.FieldError, err, applog.FieldExpenseID, item.DocumentID)
					return
				}
				c.logger.ErrorContext(ctx, "Bulk index failed",
					applog.FieldExpenseID, item.DocumentID,
					"type", res.Error.Type,
					"reason", res.Error.Reason)
			},
		})
		if err != nil {
			return fmt.Errorf("queue bulk item: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}
	stats := bi.Stats()
	if stats.NumFailed > 0 {
		return fmt.Errorf("failed indexing %d of %d documents", stats.NumFailed, len(records))
	}
	c.logger.InfoContext(ctx, "Index resynced", applog.FieldUserID, userID, applog.FieldCount, int64(stats.NumFlushed))
	return nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(res.Body)
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Type == "" {
		return fmt.Errorf("%s: %s", op, res.Status())
	}
	return errors.New(op + ": " + e.Error.Type + ": " + e.Error.Reason)
}
