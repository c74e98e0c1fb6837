package handler

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-agent/internal/service/knowledge"
)

// Uploader 招生资料导入
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*knowledge.UploadResult, error)
}

// AdmissionHandler 招生知识库处理器
type AdmissionHandler struct {
	uploader Uploader
}

// NewAdmissionHandler 创建招生知识库处理器
// uploader 为 nil 表示知识库未启用
func NewAdmissionHandler(uploader Uploader) *AdmissionHandler {
	return &AdmissionHandler{uploader: uploader}
}

// Upload 上传并重建招生资料索引
// POST /api/v1/admission/upload-admission-data
func (h *AdmissionHandler) Upload(c *gin.Context) {
	if h.uploader == nil {
		ServiceUnavailable(c, "Admission knowledge base is not enabled")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		UnprocessableEntity(c, "file is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		log.Printf("Failed to open upload %s: %v", fh.Filename, err)
		InternalServerError(c, "Failed to read uploaded file")
		return
	}
	defer f.Close()

	result, err := h.uploader.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		if errors.Is(err, knowledge.ErrUnsupportedFileType) {
			BadRequest(c, "Unsupported file type")
			return
		}
		log.Printf("Failed to process admission data %s: %v", fh.Filename, err)
		InternalServerError(c, err.Error())
		return
	}

	Success(c, result)
}
