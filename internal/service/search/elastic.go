package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/repo"
)

const maxHits = 100

type document struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Elastic searches an Elasticsearch index and loads the hits from the database,
// so results always reflect the stored rows.
type Elastic struct {
	Client *elasticsearch.Client
	Index  string
	Repo   *repo.GormRepo
}

func (e *Elastic) Search(ctx context.Context, text string) ([]models.Product, error) {
	body := map[string]any{
		"query": map[string]any{
			"wildcard": map[string]any{
				"name.keyword": map[string]any{
					"value":            "*" + escapeWildcard(text) + "*",
					"case_insensitive": true,
				},
			},
		},
		"_source": false,
		"size":    maxHits,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(e.Index),
		e.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search: %s: %s", res.Status(), msg)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("search decode: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return e.Repo.ProductsByIDs(ctx, ids)
}

func (e *Elastic) IndexProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(document{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price})
	if err != nil {
		return err
	}
	res, err := e.Client.Index(e.Index, bytes.NewReader(data),
		e.Client.Index.WithContext(ctx),
		e.Client.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index product: %s", res.Status())
	}
	return nil
}

func (e *Elastic) DeleteProduct(ctx context.Context, id uint) error {
	res, err := e.Client.Delete(e.Index, strconv.FormatUint(uint64(id), 10), e.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete product: %s", res.Status())
	}
	return nil
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "name":        {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
      "description": {"type": "text"},
      "price":       {"type": "double"}
    }
  }
}`

// EnsureIndex creates the index with a name.keyword subfield when it does not
// exist yet. Search matches on that subfield.
func (e *Elastic) EnsureIndex(ctx context.Context) error {
	res, err := e.Client.Indices.Exists([]string{e.Index}, e.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("index exists: %s", res.Status())
	}

	res, err = e.Client.Indices.Create(e.Index,
		e.Client.Indices.Create.WithContext(ctx),
		e.Client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index: %s: %s", res.Status(), msg)
	}
	return nil
}

// Backfill bulk-indexes every stored product. Products written while the
// index was unreachable are picked up on the next start.
func (e *Elastic) Backfill(ctx context.Context) (int, error) {
	products, err := e.Repo.AllProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range products {
		meta := map[string]any{"index": map[string]any{"_id": strconv.FormatUint(uint64(p.ID), 10)}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(document{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price}); err != nil {
			return 0, err
		}
	}

	res, err := e.Client.Bulk(&buf,
		e.Client.Bulk.WithContext(ctx),
		e.Client.Bulk.WithIndex(e.Index),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("bulk index: %s: %s", res.Status(), msg)
	}

	var r struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, fmt.Errorf("bulk decode: %w", err)
	}
	if r.Errors {
		return 0, fmt.Errorf("bulk index: some products were rejected")
	}
	return len(products), nil
}

// Sync prepares the index and backfills it from the database.
func (e *Elastic) Sync(ctx context.Context) error {
	if err := e.EnsureIndex(ctx); err != nil {
		return err
	}
	n, err := e.Backfill(ctx)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("es_backfilled", "index", e.Index, "products", n)
	return nil
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}
