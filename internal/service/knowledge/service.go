package knowledge

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ashwinyue/next-agent/internal/config"
	"github.com/cloudwego/eino/schema"
)

// UploadResult 上传结果
type UploadResult struct {
	Message      string `json:"message"`
	NumDocuments int    `json:"num_documents"`
}

// Service 知识库服务
type Service struct {
	store VectorStore
	cfg   config.AdmissionConfig
}

// NewService 创建知识库服务
func NewService(store VectorStore, cfg config.AdmissionConfig) *Service {
	return &Service{store: store, cfg: cfg}
}

// Upload 解析上传的文件，清空集合后重新索引
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	ext, err := Ext(filename)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "admission-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	docs, err := s.load(ctx, tmp.Name(), ext)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.MetaData == nil {
			d.MetaData = map[string]any{}
		}
		d.MetaData["source"] = filename
		d.MetaData["type"] = "admission_data"
	}

	chunks, err := Split(ctx, docs, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	if err := s.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset collection: %w", err)
	}
	if len(chunks) > 0 {
		if _, err := s.store.Store(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to store documents: %w", err)
		}
	}

	log.Printf("Indexed %d admission chunks from %s", len(chunks), filename)
	return &UploadResult{
		Message:      "Admission data uploaded and processed successfully",
		NumDocuments: len(chunks),
	}, nil
}

func (s *Service) load(ctx context.Context, path, ext string) ([]*schema.Document, error) {
	p, err := NewParser(ctx, ext)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	docs, err := p.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("parser failed: %w", err)
	}
	return docs, nil
}

// Retrieve 检索与问题最相关的片段
func (s *Service) Retrieve(ctx context.Context, query string) ([]*schema.Document, error) {
	return s.store.Search(ctx, query, s.cfg.TopK)
}
