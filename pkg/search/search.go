package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
)

type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
}

// Index is the full-text side of the catalog. Hits carry ids only; rows are re-read from the database.
type Index interface {
	Index(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, from, size int) (int64, []string, error)
}

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

type ESIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}

	return client, nil
}

func NewESIndex(client *elasticsearch.Client, index string) *ESIndex {
	return &ESIndex{es: client, index: index}
}

func (i *ESIndex) Index(ctx context.Context, doc Document) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("elasticsearch: encode: %w", err)
	}

	res, err := i.es.Index(i.index, &buf,
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(doc.ID),
		i.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: index %s: %s", doc.ID, res.Status())
	}
	return nil
}

func (i *ESIndex) Delete(ctx context.Context, id string) error {
	res, err := i.es.Delete(i.index, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: delete %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("elasticsearch: delete %s: %s", id, res.Status())
	}
	return nil
}

func (i *ESIndex) Search(ctx context.Context, query string, from, size int) (int64, []string, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "category", "brand"},
				"fuzziness": "AUTO",
			},
		},
		"_source": false,
		"from":    from,
		"size":    size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: encode query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("elasticsearch: search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: decode: %w", err)
	}

	ids := make([]string, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		ids[n] = hit.ID
	}
	return r.Hits.Total.Value, ids, nil
}
