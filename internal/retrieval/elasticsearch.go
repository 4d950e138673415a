package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/logger"
)

// ElasticsearchRetriever searches a knowledge-base index with a multi-match
// query over title and content.
type ElasticsearchRetriever struct {
	client *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

// NewElasticsearchRetriever creates a retriever over the given index.
func NewElasticsearchRetriever(client *database.ElasticsearchClient, index string, log logger.Logger) *ElasticsearchRetriever {
	return &ElasticsearchRetriever{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"retriever": "elasticsearch", "index": index}),
	}
}

func (r *ElasticsearchRetriever) Search(ctx context.Context, query string, k int) ([]RetrievedPassage, error) {
	if k <= 0 {
		k = 5
	}

	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	es := r.client.GetClient()
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(r.index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string  `json:"_id"`
				Score  float64 `json:"_score"`
				Source struct {
					Title   string `json:"title"`
					Content string `json:"content"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	passages := make([]RetrievedPassage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		passages = append(passages, RetrievedPassage{
			ID:      hit.ID,
			Title:   hit.Source.Title,
			Content: hit.Source.Content,
			Score:   hit.Score,
		})
	}

	r.logger.Debug("search completed", map[string]interface{}{
		"query": query,
		"hits":  len(passages),
	})

	return passages, nil
}

// AddDocuments indexes documents via the bulk API.
func (r *ElasticsearchRetriever) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": r.index,
				"_id":    doc.ID,
			},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		docLine, err := json.Marshal(map[string]interface{}{
			"title":    doc.Title,
			"content":  doc.Content,
			"metadata": doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	es := r.client.GetClient()
	res, err := es.Bulk(
		strings.NewReader(buf.String()),
		es.Bulk.WithContext(ctx),
		es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk error: %s", res.Status())
	}

	r.logger.Info("documents indexed", map[string]interface{}{"count": len(docs)})
	return nil
}
