package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/ashwinyue/next-agent/internal/config"
	es8indexer "github.com/cloudwego/eino-ext/components/indexer/es8"
	es8retriever "github.com/cloudwego/eino-ext/components/retriever/es8"
	"github.com/cloudwego/eino-ext/components/retriever/es8/search_mode"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	contentField = "content"
	vectorField  = "content_vector"
)

// VectorStore 向量存储
type VectorStore interface {
	// Reset 删除并重建集合
	Reset(ctx context.Context) error
	Store(ctx context.Context, docs []*schema.Document) ([]string, error)
	Search(ctx context.Context, query string, topK int) ([]*schema.Document, error)
}

// NewESClient 创建 ES8 客户端
func NewESClient(cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Host},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return client, nil
}

// ESStore 基于 eino-ext es8 indexer/retriever 的向量存储
type ESStore struct {
	client     *elasticsearch.Client
	index      string
	dimensions int
	indexer    *es8indexer.Indexer
	retriever  *es8retriever.Retriever
}

// NewESStore 创建 ES 向量存储
func NewESStore(ctx context.Context, client *elasticsearch.Client, index string, dimensions int, embedder embedding.Embedder) (*ESStore, error) {
	indexer, err := es8indexer.NewIndexer(ctx, &es8indexer.IndexerConfig{
		Client:    client,
		Index:     index,
		BatchSize: 10,
		Embedding: embedder,
		DocumentToFields: func(ctx context.Context, doc *schema.Document) (map[string]es8indexer.FieldValue, error) {
			fields := map[string]es8indexer.FieldValue{
				contentField: {Value: doc.Content, EmbedKey: vectorField},
			}
			for k, v := range doc.MetaData {
				fields[k] = es8indexer.FieldValue{Value: v}
			}
			return fields, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES8 indexer: %w", err)
	}

	ret, err := es8retriever.NewRetriever(ctx, &es8retriever.RetrieverConfig{
		Client:     client,
		Index:      index,
		TopK:       4,
		SearchMode: search_mode.SearchModeDenseVectorSimilarity(search_mode.DenseVectorSimilarityTypeCosineSimilarity, vectorField),
		Embedding:  embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES8 retriever: %w", err)
	}

	return &ESStore{
		client:     client,
		index:      index,
		dimensions: dimensions,
		indexer:    indexer,
		retriever:  ret,
	}, nil
}

// Reset 删除索引后按向量映射重建
func (s *ESStore) Reset(ctx context.Context) error {
	res, err := esapi.IndicesDeleteRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete index: %s", res.String())
	}
	return s.EnsureIndex(ctx)
}

// EnsureIndex 索引不存在时创建
func (s *ESStore) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	dims := s.dimensions
	if dims == 0 {
		dims = 1024
	}
	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				contentField: map[string]any{"type": "text"},
				vectorField: map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				"source": map[string]any{"type": "keyword"},
				"type":   map[string]any{"type": "keyword"},
			},
		},
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = esapi.IndicesCreateRequest{Index: s.index, Body: bytes.NewReader(body)}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	log.Printf("Index %s created with %d dimensions", s.index, dims)
	return nil
}

// Store 写入文档
func (s *ESStore) Store(ctx context.Context, docs []*schema.Document) ([]string, error) {
	return s.indexer.Store(ctx, docs)
}

// Search 向量相似度检索
func (s *ESStore) Search(ctx context.Context, query string, topK int) ([]*schema.Document, error) {
	return s.retriever.Retrieve(ctx, query, retriever.WithTopK(topK))
}
