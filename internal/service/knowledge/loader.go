// Package knowledge 招生知识库：文档解析、分块、向量存储与检索
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// ErrUnsupportedFileType 不支持的文件类型
var ErrUnsupportedFileType = errors.New("unsupported file type")

// SupportedExtensions 可上传的文件扩展名
var SupportedExtensions = []string{".txt", ".md", ".pdf", ".docx", ".html"}

// Ext 返回小写扩展名，不支持时返回 ErrUnsupportedFileType
func Ext(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if e == ext {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
}

// NewParser 按扩展名创建解析器
func NewParser(ctx context.Context, ext string) (einoparser.Parser, error) {
	switch ext {
	case ".pdf":
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	case ".docx":
		return docx.NewDocxParser(ctx, &docx.Config{
			IncludeHeaders: true,
			IncludeTables:  true,
		})
	case ".html":
		body := "body"
		return html.NewParser(ctx, &html.Config{Selector: &body})
	case ".txt", ".md":
		return &textParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// textParser 纯文本解析器，整个文件作为一个文档
type textParser struct{}

func (p *textParser) Parse(_ context.Context, reader io.Reader, _ ...einoparser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, nil
	}
	return []*schema.Document{{Content: string(content), MetaData: map[string]any{}}}, nil
}

// Split 递归切分文档
func Split(ctx context.Context, docs []*schema.Document, chunkSize, overlap int) ([]*schema.Document, error) {
	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Separators:  []string{"\n\n", "\n", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	chunks, err := splitter.Transform(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("splitter failed: %w", err)
	}
	return chunks, nil
}
